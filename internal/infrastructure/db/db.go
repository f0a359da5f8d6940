// Package db manages the PostgreSQL connection pool and schema for the
// engine's write-behind persistence.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Config holds database connection configuration.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	Enabled         bool          `yaml:"enabled"`
}

// DefaultConfig returns reasonable defaults. Persistence is opt-in: the
// engine is fully functional from memory alone.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
		Enabled:         false,
	}
}

// Schema mirrors the in-memory model. Scores and magnitudes are stored as
// decimal text: they are arbitrary-precision integers and must survive the
// round trip exactly.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	address     TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	banned      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS accounts_name_uniq
	ON accounts (name) WHERE name <> '';

CREATE TABLE IF NOT EXISTS fields (
	address  TEXT PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS scores (
	account   TEXT NOT NULL,
	field     TEXT NOT NULL,
	score     TEXT NOT NULL,
	upvotes   BIGINT NOT NULL DEFAULT 0,
	downvotes BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (account, field)
);

CREATE TABLE IF NOT EXISTS targets (
	address            TEXT PRIMARY KEY,
	author             TEXT NOT NULL,
	field              TEXT NOT NULL,
	parent             TEXT NOT NULL DEFAULT '',
	posted_level       INT NOT NULL,
	vote_ledger        TEXT NOT NULL,
	min_comment_level  INT NOT NULL DEFAULT 0,
	upvotes            BIGINT NOT NULL DEFAULT 0,
	downvotes          BIGINT NOT NULL DEFAULT 0,
	content_ref        TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS targets_field_idx ON targets (field, parent);

CREATE TABLE IF NOT EXISTS votes (
	voter      TEXT NOT NULL,
	target     TEXT NOT NULL,
	direction  SMALLINT NOT NULL,
	magnitude  TEXT NOT NULL,
	PRIMARY KEY (voter, target)
);
`

// Manager owns the pooled connection.
type Manager struct {
	db     *sqlx.DB
	config Config
}

// NewManager opens the pool, verifies connectivity and installs the schema.
func NewManager(config Config) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config}, nil
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when persistence is enabled")
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to install schema: %w", err)
	}

	return &Manager{db: db, config: config}, nil
}

// DB returns the pool, or nil when persistence is disabled.
func (m *Manager) DB() *sqlx.DB { return m.db }

// QueryTimeout returns the per-statement timeout.
func (m *Manager) QueryTimeout() time.Duration { return m.config.QueryTimeout }

// IsEnabled reports whether a live connection exists.
func (m *Manager) IsEnabled() bool { return m.config.Enabled && m.db != nil }

// Ping verifies the connection for health checks.
func (m *Manager) Ping(ctx context.Context) error {
	if !m.IsEnabled() {
		return nil
	}
	return m.db.PingContext(ctx)
}

// Close releases the pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
