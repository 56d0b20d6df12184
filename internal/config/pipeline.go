package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Commit policies.
const (
	// CommitDeferred commits a watermark once a batch of the next window arrives.
	CommitDeferred = "deferred"
	// CommitEager commits a watermark as soon as its window is fully loaded.
	CommitEager = "eager"
)

// PipelineConfig holds the change-propagation settings shared by all instances.
type PipelineConfig struct {
	// Entities to run, one instance each: film_work, genre, person
	Entities []string `yaml:"entities"`

	// WindowSize is the number of change rows fetched per producer round-trip
	WindowSize int `yaml:"window_size"`

	// ExtractChunk bounds enrich pages and hydrated batches
	ExtractChunk int `yaml:"extract_chunk"`

	// LoadChunk bounds bulk upsert sub-batches
	LoadChunk int `yaml:"load_chunk"`

	// PollInterval is the sleep between two producer scans
	PollInterval time.Duration `yaml:"poll_interval"`

	// CommitPolicy: "deferred" or "eager"
	CommitPolicy string `yaml:"commit_policy"`

	Backoff BackoffConfig `yaml:"backoff"`

	// envErr records an environment override that could not be parsed.
	envErr error
}

// BackoffConfig configures the retry delay of every remote call.
type BackoffConfig struct {
	Start   time.Duration `yaml:"start"`
	Factor  float64       `yaml:"factor"`
	Ceiling time.Duration `yaml:"ceiling"`
}

// DefaultPipelineConfig returns default pipeline settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Entities:     []string{"film_work", "genre", "person"},
		WindowSize:   500,
		ExtractChunk: 100,
		LoadChunk:    500,
		PollInterval: 2500 * time.Millisecond,
		CommitPolicy: CommitDeferred,
		Backoff: BackoffConfig{
			Start:   100 * time.Millisecond,
			Factor:  2,
			Ceiling: 10 * time.Second,
		},
	}
}

// ApplyDefaults fills in missing values with defaults
func (c *PipelineConfig) ApplyDefaults() {
	defaults := DefaultPipelineConfig()
	if len(c.Entities) == 0 {
		c.Entities = defaults.Entities
	}
	if c.WindowSize == 0 {
		c.WindowSize = defaults.WindowSize
	}
	if c.ExtractChunk == 0 {
		c.ExtractChunk = defaults.ExtractChunk
	}
	if c.LoadChunk == 0 {
		c.LoadChunk = defaults.LoadChunk
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.CommitPolicy == "" {
		c.CommitPolicy = defaults.CommitPolicy
	}
	if c.Backoff.Start == 0 {
		c.Backoff.Start = defaults.Backoff.Start
	}
	if c.Backoff.Factor == 0 {
		c.Backoff.Factor = defaults.Backoff.Factor
	}
	if c.Backoff.Ceiling == 0 {
		c.Backoff.Ceiling = defaults.Backoff.Ceiling
	}
}

// ApplyEnvOverrides applies EXTRACT_CHUNK and LOAD_CHUNK. A value that is
// not an integer is reported by Validate.
func (c *PipelineConfig) ApplyEnvOverrides() {
	c.envErr = nil
	if val := os.Getenv("EXTRACT_CHUNK"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			c.envErr = errors.Join(c.envErr, fmt.Errorf("EXTRACT_CHUNK: %q is not an integer", val))
		} else {
			c.ExtractChunk = n
		}
	}
	if val := os.Getenv("LOAD_CHUNK"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			c.envErr = errors.Join(c.envErr, fmt.Errorf("LOAD_CHUNK: %q is not an integer", val))
		} else {
			c.LoadChunk = n
		}
	}
}

// ResolvePaths is a no-op.
func (c *PipelineConfig) ResolvePaths(_ string) {}

// Validate validates the configuration
func (c *PipelineConfig) Validate() error {
	if c.envErr != nil {
		return c.envErr
	}
	if len(c.Entities) == 0 {
		return errors.New("pipeline.entities must have at least one entity")
	}
	seen := make(map[string]bool, len(c.Entities))
	for i, e := range c.Entities {
		if e == "" {
			return fmt.Errorf("pipeline.entities[%d] is empty", i)
		}
		if seen[e] {
			return fmt.Errorf("pipeline.entities[%d]: duplicate entity %q", i, e)
		}
		seen[e] = true
	}

	if c.WindowSize <= 0 {
		return errors.New("pipeline.window_size must be positive")
	}
	if c.ExtractChunk <= 0 {
		return errors.New("pipeline.extract_chunk must be positive")
	}
	if c.LoadChunk <= 0 {
		return errors.New("pipeline.load_chunk must be positive")
	}
	if c.PollInterval < 0 {
		return errors.New("pipeline.poll_interval must not be negative")
	}
	if c.CommitPolicy != CommitDeferred && c.CommitPolicy != CommitEager {
		return fmt.Errorf("pipeline.commit_policy must be 'deferred' or 'eager', got %q", c.CommitPolicy)
	}

	if c.Backoff.Start <= 0 {
		return errors.New("pipeline.backoff.start must be positive")
	}
	if c.Backoff.Factor < 1 {
		return errors.New("pipeline.backoff.factor must be at least 1")
	}
	if c.Backoff.Ceiling < c.Backoff.Start {
		return errors.New("pipeline.backoff.ceiling must not be below start")
	}
	return nil
}
