// Package source reads changed rows and hydrated film works from Postgres.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	_ "github.com/lib/pq"
)

// sqlOpen is a variable to allow mocking in tests.
var sqlOpen = sql.Open

// ErrNotConnected is returned when no pool has been opened yet.
var ErrNotConnected = errors.New("postgres not connected")

// Client owns one connection pool to the source database.
type Client struct {
	dsn string

	mu     sync.RWMutex
	db     *sql.DB
	broken atomic.Bool
}

// NewClient creates a client for dsn. The pool is opened by the first Reconnect.
func NewClient(dsn string) *Client {
	return &Client{dsn: dsn}
}

// NewClientForDB wraps an open pool. Reconnect only pings it.
func NewClientForDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// Healthy implements resilience.Connection.
func (c *Client) Healthy(_ context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db != nil && !c.broken.Load()
}

// Reconnect implements resilience.Connection. The old pool is closed once the
// new one answers a ping.
func (c *Client) Reconnect(ctx context.Context) error {
	if c.dsn == "" {
		c.mu.RLock()
		db := c.db
		c.mu.RUnlock()
		if db == nil {
			return ErrNotConnected
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		c.broken.Store(false)
		return nil
	}

	db, err := sqlOpen("postgres", c.dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	c.mu.Lock()
	old := c.db
	c.db = db
	c.broken.Store(false)
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// DB returns the current pool.
func (c *Client) DB() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, ErrNotConnected
	}
	return c.db, nil
}

// observe marks the pool broken after a connection-class failure.
func (c *Client) observe(err error) error {
	if err != nil && isConnectionError(err) {
		c.broken.Store(true)
	}
	return err
}

// Close closes the pool.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
