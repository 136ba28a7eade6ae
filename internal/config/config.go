package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Redis   RedisConfig
	Market  MarketConfig
	Artwork ArtworkConfig
	Admin   AdminConfig
	Log     LogConfig
}

type ServerConfig struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr        string        `envconfig:"GRPC_ADDR" default:":50051"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// StoreConfig selects and configures the ledger database.
type StoreConfig struct {
	Driver     string `envconfig:"STORE_DRIVER" default:"sqlite"` // sqlite, mysql or postgres
	SQLitePath string `envconfig:"STORE_SQLITE_PATH" default:"./data/market.db"`

	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT"` // 0 selects the driver default
	Name     string `envconfig:"STORE_DB_NAME" default:"giftmarket"`
	User     string `envconfig:"STORE_DB_USER" default:"root"`
	Password string `envconfig:"STORE_DB_PASS" default:""`
	SSLMode  string `envconfig:"STORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STORE_MAX_OPEN_CONNS" default:"50"`
	MaxIdleConns    int           `envconfig:"STORE_MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"STORE_CONN_MAX_LIFETIME" default:"5m"`
}

func (s *StoreConfig) port() int {
	switch {
	case s.Port != 0:
		return s.Port
	case s.Driver == DriverPostgres:
		return 5432
	default:
		return 3306
	}
}

// MySQLDSN returns the go-sql-driver data source name.
func (s *StoreConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.User, s.Password, s.Host, s.port(), s.Name)
}

// PostgresDSN returns the lib/pq connection URL.
func (s *StoreConfig) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.User, s.Password),
		Host:     fmt.Sprintf("%s:%d", s.Host, s.port()),
		Path:     s.Name,
		RawQuery: "sslmode=" + url.QueryEscape(s.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Enabled  bool          `envconfig:"REDIS_ENABLED" default:"false"`
	Addr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string        `envconfig:"REDIS_PASSWORD" default:""`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize int           `envconfig:"REDIS_POOL_SIZE" default:"100"`
	DedupTTL time.Duration `envconfig:"DEDUP_TTL" default:"24h"`
}

type MarketConfig struct {
	StartingBalance int64         `envconfig:"MARKET_STARTING_BALANCE" default:"2000000"`
	TxTimeout       time.Duration `envconfig:"MARKET_TX_TIMEOUT" default:"5s"`
}

type ArtworkConfig struct {
	Dir        string   `envconfig:"ARTWORK_DIR" default:"static/uploads"`
	URLPrefix  string   `envconfig:"ARTWORK_URL_PREFIX" default:"/static/uploads"`
	MaxBytes   int64    `envconfig:"ARTWORK_MAX_BYTES" default:"16777216"`
	Extensions []string `envconfig:"ARTWORK_EXTENSIONS" default:".tgs"`
}

// AdminConfig lists the callers allowed to manage the catalog.
type AdminConfig struct {
	UserIDs []int64 `envconfig:"ADMIN_USER_IDS"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Market.StartingBalance < 0 {
		return fmt.Errorf("MARKET_STARTING_BALANCE must not be negative")
	}
	if c.Market.TxTimeout <= 0 {
		return fmt.Errorf("MARKET_TX_TIMEOUT must be positive")
	}
	if len(c.Artwork.Extensions) == 0 {
		return fmt.Errorf("ARTWORK_EXTENSIONS must not be empty")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
