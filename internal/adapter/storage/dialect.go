package storage

import "github.com/pressly/goose/v3"

// Dialect captures the SQL differences between the supported engines.
// Queries are written with '?' placeholders and rebound by sqlx.
type Dialect struct {
	name          string
	goose         goose.Dialect
	migrationsDir string

	// lockClause is appended to SELECTs that must lock the row.
	lockClause string

	insertUser    string
	upsertHolding string

	// returningID is set when the driver cannot report LastInsertId.
	returningID bool
}

func (d Dialect) String() string {
	return d.name
}

var (
	// SQLite serialises writers through a single connection, so row locks
	// are implicit.
	SQLite = Dialect{
		name:          "sqlite",
		goose:         goose.DialectSQLite3,
		migrationsDir: "sqlite",
		lockClause:    "",
		insertUser:    `INSERT INTO users (id, balance) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
		upsertHolding: `INSERT INTO holdings (user_id, item_id, quantity) VALUES (?, ?, 1)
			ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = holdings.quantity + 1`,
	}

	MySQL = Dialect{
		name:          "mysql",
		goose:         goose.DialectMySQL,
		migrationsDir: "mysql",
		lockClause:    " FOR UPDATE",
		// INSERT IGNORE would leave a shared lock on an existing row;
		// ON DUPLICATE KEY UPDATE takes it exclusively.
		insertUser:    `INSERT INTO users (id, balance) VALUES (?, ?) ON DUPLICATE KEY UPDATE id = id`,
		upsertHolding: `INSERT INTO holdings (user_id, item_id, quantity) VALUES (?, ?, 1)
			ON DUPLICATE KEY UPDATE quantity = quantity + 1`,
	}

	Postgres = Dialect{
		name:          "postgres",
		goose:         goose.DialectPostgres,
		migrationsDir: "postgres",
		lockClause:    " FOR UPDATE",
		insertUser:    `INSERT INTO users (id, balance) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
		upsertHolding: `INSERT INTO holdings (user_id, item_id, quantity) VALUES (?, ?, 1)
			ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = holdings.quantity + 1`,
		returningID: true,
	}
)
