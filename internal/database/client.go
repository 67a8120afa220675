// Package database opens and migrates the engine's Postgres store. It
// mirrors the teacher's pkg/database/client.go shape (pgx-backed
// *sql.DB, golang-migrate with embedded SQL files, a pool-stats health
// check) but drops the ent.Client wiring: this engine's persistence is
// hand-written pgx/sqlx repositories (internal/snapshot, servicemap,
// telemetry, job, audit), not generated ent code.
package database

import (
	stdsql "database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// Client wraps the shared connection pool used by every repository.
type Client struct {
	db *sqlx.DB
}

// DB returns the sqlx handle repositories query through.
func (c *Client) DB() *sqlx.DB { return c.db }

// SQLDB returns the raw *sql.DB, for health checks and golang-migrate.
func (c *Client) SQLDB() *stdsql.DB { return c.db.DB }

// Close releases the pool.
func (c *Client) Close() error { return c.db.Close() }

// NewClient opens a pool against cfg.URL, applies the connection-pool
// settings, verifies connectivity, and runs pending migrations.
func NewClient(cfg Config) (*Client, error) {
	sqlDB, err := stdsql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Client{db: sqlx.NewDb(sqlDB, "pgx")}, nil
}
