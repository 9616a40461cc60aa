// Package sqlite opens an embedded SQLite database for single-node
// deployments.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Client wraps a SQLite connection pool.
type Client struct {
	db *sqlx.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database on a single connection.
func Open(path string) (*Client, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	memory := path == ":memory:" || strings.HasPrefix(path, "file::memory:")
	if memory {
		dsn = path
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer; one connection also keeps an in-memory
	// database alive for the life of the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Client{db: db}, nil
}

// DB returns the underlying pool.
func (c *Client) DB() *sqlx.DB { return c.db }

// Migrate runs idempotent schema statements.
func (c *Client) Migrate(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Health pings the database.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the pool.
func (c *Client) Close() error {
	return c.db.Close()
}
