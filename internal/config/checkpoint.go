package config

import (
	"errors"
	"fmt"
	"os"
)

// Checkpoint backends.
const (
	CheckpointRedis   = "redis"
	CheckpointMongoDB = "mongodb"
	CheckpointNATS    = "nats"
	CheckpointMemory  = "memory"
)

// CheckpointConfig selects and configures the watermark store.
type CheckpointConfig struct {
	// Backend type: "redis", "mongodb", "nats" or "memory"
	Backend string `yaml:"backend"`

	Redis   RedisConfig   `yaml:"redis"`
	MongoDB MongoDBConfig `yaml:"mongodb"`
	NATS    NATSConfig    `yaml:"nats"`
}

// RedisConfig holds Redis checkpoint settings.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// MongoDBConfig holds MongoDB checkpoint settings.
type MongoDBConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// NATSConfig holds NATS JetStream key-value checkpoint settings.
type NATSConfig struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`
}

// DefaultCheckpointConfig returns default checkpoint settings.
func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		Backend: CheckpointRedis,
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		MongoDB: MongoDBConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "searchsync",
			Collection: "checkpoints",
		},
		NATS: NATSConfig{
			URL:    "nats://localhost:4222",
			Bucket: "searchsync_checkpoints",
		},
	}
}

// ApplyDefaults fills in missing values with defaults
func (c *CheckpointConfig) ApplyDefaults() {
	defaults := DefaultCheckpointConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.MongoDB.Database == "" {
		c.MongoDB.Database = defaults.MongoDB.Database
	}
	if c.MongoDB.Collection == "" {
		c.MongoDB.Collection = defaults.MongoDB.Collection
	}
	if c.NATS.Bucket == "" {
		c.NATS.Bucket = defaults.NATS.Bucket
	}
}

// ApplyEnvOverrides applies CHECKPOINT_BACKEND, REDIS_DSN, MONGO_URI and NATS_URL.
func (c *CheckpointConfig) ApplyEnvOverrides() {
	if val := os.Getenv("CHECKPOINT_BACKEND"); val != "" {
		c.Backend = val
	}
	if val := os.Getenv("REDIS_DSN"); val != "" {
		c.Redis.URL = val
	}
	if val := os.Getenv("MONGO_URI"); val != "" {
		c.MongoDB.URI = val
	}
	if val := os.Getenv("NATS_URL"); val != "" {
		c.NATS.URL = val
	}
}

// ResolvePaths is a no-op; checkpoint stores have no paths.
func (c *CheckpointConfig) ResolvePaths(_ string) {}

// Validate validates the configuration
func (c *CheckpointConfig) Validate() error {
	switch c.Backend {
	case CheckpointRedis:
		if c.Redis.URL == "" {
			return errors.New("checkpoint.redis.url is required")
		}
	case CheckpointMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("checkpoint.mongodb.uri is required")
		}
	case CheckpointNATS:
		if c.NATS.URL == "" {
			return errors.New("checkpoint.nats.url is required")
		}
	case CheckpointMemory:
	default:
		return fmt.Errorf("checkpoint.backend must be one of redis, mongodb, nats, memory; got %q", c.Backend)
	}
	return nil
}
