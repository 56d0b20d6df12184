package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Connection is a remote client that can report and repair its own health.
type Connection interface {
	// Healthy reports whether the connection is believed usable.
	Healthy(ctx context.Context) bool

	// Reconnect re-establishes the connection synchronously.
	Reconnect(ctx context.Context) error
}

// Classifier reports whether an error is a recoverable transport failure.
type Classifier func(error) bool

// RetryHook observes every scheduled retry.
type RetryHook func(op string, err error, delay time.Duration)

// GuardOptions configures a Guard.
type GuardOptions struct {
	// Name identifies the wrapped client in logs, e.g. "postgres".
	Name string

	// Conn is checked before every attempt. May be nil.
	Conn Connection

	Policy Policy

	// Recoverable decides which errors are retried. Defaults to IsTransient.
	Recoverable Classifier

	Logger *slog.Logger

	// NewTimer overrides the timer used between attempts (tests).
	NewTimer func() backoff.Timer

	OnRetry RetryHook
}

// Guard composes the reconnect-guard and the backoff-retry policies around a call.
type Guard struct {
	name        string
	conn        Connection
	policy      Policy
	recoverable Classifier
	logger      *slog.Logger
	newTimer    func() backoff.Timer
	onRetry     RetryHook
}

// NewGuard creates a new Guard.
func NewGuard(opts GuardOptions) *Guard {
	recoverable := opts.Recoverable
	if recoverable == nil {
		recoverable = IsTransient
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Guard{
		name:        opts.Name,
		conn:        opts.Conn,
		policy:      opts.Policy.normalized(),
		recoverable: recoverable,
		logger:      logger.With("component", "resilience", "client", opts.Name),
		newTimer:    opts.NewTimer,
		onRetry:     opts.OnRetry,
	}
}

// Do runs fn until it succeeds, fails with an unrecoverable error, or ctx ends.
// Recoverable failures are retried indefinitely.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := func() error {
		if g.conn != nil && !g.conn.Healthy(ctx) {
			g.logger.Warn("lost connection, reconnecting", "op", op)
			if err := g.conn.Reconnect(ctx); err != nil {
				return g.classify(ctx, err)
			}
			g.logger.Info("connection re-established", "op", op)
		}

		if err := fn(ctx); err != nil {
			return g.classify(ctx, err)
		}
		return nil
	}

	notify := func(err error, delay time.Duration) {
		g.logger.Error("call failed, backing off",
			"op", op,
			"error", err,
			"retry_in", delay,
		)
		if g.onRetry != nil {
			g.onRetry(op, err, delay)
		}
	}

	var timer backoff.Timer
	if g.newTimer != nil {
		timer = g.newTimer()
	}

	b := backoff.WithContext(NewBackoff(g.policy), ctx)
	return backoff.RetryNotifyWithTimer(attempt, b, notify, timer)
}

func (g *Guard) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return backoff.Permanent(err)
	}
	if g.recoverable(err) {
		return err
	}
	return backoff.Permanent(err)
}

// Call is Do for calls that return a value.
func Call[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
