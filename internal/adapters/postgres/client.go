package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // database/sql driver

	"oracle/internal/adapters/config"
	"oracle/pkg/errors"
)

const connectTimeout = 5 * time.Second

// Client owns the report store connection pool
type Client struct {
	db *sqlx.DB
}

// NewClient opens the report database and verifies it is reachable before
// any trigger can fire. The pool idles small: writes come in short bursts
// around a report run and the service is quiet the rest of the day.
func NewClient(cfg config.PostgresConfig) (*Client, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return &Client{db: db}, nil
}

// DB exposes the pool to the repositories
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// Close closes the pool
func (c *Client) Close() error {
	return c.db.Close()
}

// Health reports connectivity for the health endpoint
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
