package checkpoint

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/syntrixbase/searchsync/internal/resilience"
)

// Store persists checkpoint states by key.
type Store interface {
	// Exists reports whether key holds a state.
	Exists(ctx context.Context, key string) (bool, error)

	// Get returns the state at key, or nil if none was ever written.
	Get(ctx context.Context, key string) (*State, error)

	// Set overwrites the state at key.
	Set(ctx context.Context, key string, s State) error

	// Close releases the backend connection.
	Close(ctx context.Context) error
}

// ErrNotConnected is returned by a remote store that has no live client.
// It is recoverable: the guard reconnects and retries.
var ErrNotConnected = errors.New("checkpoint store not connected")

// redisTransientPrefixes are server replies that clear on their own.
var redisTransientPrefixes = []string{"LOADING", "READONLY", "MASTERDOWN", "TRYAGAIN", "CLUSTERDOWN"}

// IsRecoverable reports whether a checkpoint backend error is worth retrying.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConnected) || resilience.IsTransient(err) {
		return true
	}

	// MongoDB
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	// NATS
	if errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionReconnecting) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, nats.ErrTimeout) {
		return true
	}

	// Redis
	if errors.Is(err, redis.ErrClosed) {
		return true
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		for _, prefix := range redisTransientPrefixes {
			if strings.HasPrefix(redisErr.Error(), prefix) {
				return true
			}
		}
	}
	return false
}

// health tracks whether a remote client is believed usable.
type health struct {
	broken atomic.Bool
}

// observe marks the client broken when err is connection-class and returns err.
func (h *health) observe(err error) error {
	if err != nil && IsRecoverable(err) {
		h.broken.Store(true)
	}
	return err
}

type resilientStore struct {
	store Store
	guard *resilience.Guard
}

// Resilient wraps every call of store with guard.
func Resilient(store Store, guard *resilience.Guard) Store {
	return &resilientStore{store: store, guard: guard}
}

func (r *resilientStore) Exists(ctx context.Context, key string) (bool, error) {
	return resilience.Call(ctx, r.guard, "checkpoint.exists", func(ctx context.Context) (bool, error) {
		return r.store.Exists(ctx, key)
	})
}

func (r *resilientStore) Get(ctx context.Context, key string) (*State, error) {
	return resilience.Call(ctx, r.guard, "checkpoint.get", func(ctx context.Context) (*State, error) {
		return r.store.Get(ctx, key)
	})
}

func (r *resilientStore) Set(ctx context.Context, key string, s State) error {
	return r.guard.Do(ctx, "checkpoint.set", func(ctx context.Context) error {
		return r.store.Set(ctx, key, s)
	})
}

func (r *resilientStore) Close(ctx context.Context) error {
	return r.store.Close(ctx)
}
