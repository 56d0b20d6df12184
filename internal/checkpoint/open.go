package checkpoint

import (
	"fmt"

	"github.com/syntrixbase/searchsync/internal/config"
	"github.com/syntrixbase/searchsync/internal/resilience"
)

// Open creates the store selected by cfg.Backend, wrapped in a guard built from
// opts. Remote backends connect lazily on their first guarded call.
func Open(cfg config.CheckpointConfig, opts resilience.GuardOptions) (Store, error) {
	var (
		store Store
		conn  resilience.Connection
	)

	switch cfg.Backend {
	case config.CheckpointMemory:
		return NewMemoryStore(), nil
	case config.CheckpointRedis:
		s := NewRedisStore(cfg.Redis.URL)
		store, conn = s, s
	case config.CheckpointMongoDB:
		s := NewMongoStore(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Collection)
		store, conn = s, s
	case config.CheckpointNATS:
		s := NewKVStore(cfg.NATS.URL, cfg.NATS.Bucket)
		store, conn = s, s
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}

	if opts.Name == "" {
		opts.Name = cfg.Backend
	}
	opts.Conn = conn
	opts.Recoverable = IsRecoverable
	return Resilient(store, resilience.NewGuard(opts)), nil
}
