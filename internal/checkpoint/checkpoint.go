// Package checkpoint persists per-pipeline watermarks.
package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Checkpoint is the watermark of one pipeline, bound to its key.
// Commit is the only write path and never moves the watermark backwards.
type Checkpoint struct {
	key    string
	store  Store
	logger *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// New creates a Checkpoint for key.
func New(store Store, key string, logger *slog.Logger) *Checkpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checkpoint{
		key:    key,
		store:  store,
		logger: logger.With("component", "checkpoint", "key", key),
		last:   MinWatermark,
	}
}

// Key returns the store key.
func (c *Checkpoint) Key() string { return c.key }

// Load reads the stored watermark. An absent key yields MinWatermark and
// nothing is written.
func (c *Checkpoint) Load(ctx context.Context) (time.Time, error) {
	st, err := c.store.Get(ctx, c.key)
	if err != nil {
		return time.Time{}, fmt.Errorf("load checkpoint %s: %w", c.key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if st == nil {
		c.logger.Info("no checkpoint yet, starting from the beginning")
		c.last = MinWatermark
	} else {
		c.last = st.UpdatedAt
		c.logger.Info("checkpoint loaded", "updated_at", c.last)
	}
	return c.last, nil
}

// Commit persists t if it is newer than the last known watermark.
// An older value is logged and skipped; an equal one is not rewritten.
func (c *Checkpoint) Commit(ctx context.Context, t time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !t.After(c.last) {
		if t.Before(c.last) {
			c.logger.Warn("refusing to move checkpoint backwards", "current", c.last, "requested", t)
		}
		return false, nil
	}

	if err := c.store.Set(ctx, c.key, State{UpdatedAt: t}); err != nil {
		return false, fmt.Errorf("commit checkpoint %s: %w", c.key, err)
	}
	c.last = t
	c.logger.Info("checkpoint committed", "updated_at", t)
	return true, nil
}

// Last returns the last loaded or committed watermark.
func (c *Checkpoint) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
