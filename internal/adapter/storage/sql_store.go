package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/port"
)

//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

const (
	selectUser  = `SELECT id, balance FROM users WHERE id = ?`
	selectItem  = `SELECT id, name, price, stock, artwork_ref FROM items WHERE id = ?`
	selectItems = `SELECT id, name, price, stock, artwork_ref FROM items ORDER BY id`
	insertItem  = `INSERT INTO items (name, price, stock, artwork_ref) VALUES (?, ?, ?, ?)`

	selectHoldings = `
		SELECT h.item_id, i.name, i.artwork_ref, h.quantity
		FROM holdings h
		JOIN items i ON i.id = h.item_id
		WHERE h.user_id = ?
		ORDER BY h.item_id`
)

// SQLStore implements port.LedgerRepository on top of a relational database.
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewSQLStore wraps an already opened connection. The schema is not touched
// until Migrate is called.
func NewSQLStore(db *sqlx.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *SQLStore) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationsFS, "migrations/"+s.dialect.migrationsDir)
	if err != nil {
		return fmt.Errorf("migrations for %s: %w", s.dialect, err)
	}

	provider, err := goose.NewProvider(s.dialect.goose, s.db.DB, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *SQLStore) EnsureUser(ctx context.Context, userID domain.UserID, startingBalance int64) (domain.User, error) {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(s.dialect.insertUser), int64(userID), startingBalance); err != nil {
		return domain.User{}, domain.Unavailable("insert user", err)
	}

	var user domain.User
	if err := s.db.GetContext(ctx, &user, s.db.Rebind(selectUser), int64(userID)); err != nil {
		return domain.User{}, domain.Unavailable("select user", err)
	}
	return user, nil
}

// GetUser reads a user without provisioning it; nil when absent.
func (s *SQLStore) GetUser(ctx context.Context, userID domain.UserID) (*domain.User, error) {
	var user domain.User
	err := s.db.GetContext(ctx, &user, s.db.Rebind(selectUser), int64(userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Unavailable("select user", err)
	}
	return &user, nil
}

func (s *SQLStore) CreateItem(ctx context.Context, item domain.NewItem) (domain.ItemID, error) {
	if s.dialect.returningID {
		var id int64
		query := s.db.Rebind(insertItem + ` RETURNING id`)
		if err := s.db.QueryRowxContext(ctx, query, item.Name, item.Price, item.Stock, item.ArtworkRef).Scan(&id); err != nil {
			return 0, domain.Unavailable("insert item", err)
		}
		return domain.ItemID(id), nil
	}

	result, err := s.db.ExecContext(ctx, s.db.Rebind(insertItem), item.Name, item.Price, item.Stock, item.ArtworkRef)
	if err != nil {
		return 0, domain.Unavailable("insert item", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, domain.Unavailable("item id", err)
	}
	return domain.ItemID(id), nil
}

func (s *SQLStore) GetItem(ctx context.Context, itemID domain.ItemID) (*domain.Item, error) {
	var item domain.Item
	err := s.db.GetContext(ctx, &item, s.db.Rebind(selectItem), int64(itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Unavailable("select item", err)
	}
	return &item, nil
}

func (s *SQLStore) ListItems(ctx context.Context) ([]domain.Item, error) {
	items := []domain.Item{}
	if err := s.db.SelectContext(ctx, &items, selectItems); err != nil {
		return nil, domain.Unavailable("list items", err)
	}
	return items, nil
}

func (s *SQLStore) ListHoldings(ctx context.Context, userID domain.UserID) ([]domain.HoldingView, error) {
	holdings := []domain.HoldingView{}
	if err := s.db.SelectContext(ctx, &holdings, s.db.Rebind(selectHoldings), int64(userID)); err != nil {
		return nil, domain.Unavailable("list holdings", err)
	}
	return holdings, nil
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Unavailable("begin tx", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &sqlTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.Unavailable("commit tx", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ port.LedgerRepository = (*SQLStore)(nil)
