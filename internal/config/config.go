package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigDir is where LoadConfig looks for config.yml and config.local.yml.
const DefaultConfigDir = "config"

// Config holds the application configuration
type Config struct {
	Logging       LoggingConfig       `yaml:"logging"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Checkpoint    CheckpointConfig    `yaml:"checkpoint"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		Logging:       DefaultLoggingConfig(),
		Postgres:      DefaultPostgresConfig(),
		Checkpoint:    DefaultCheckpointConfig(),
		Elasticsearch: DefaultElasticsearchConfig(),
		Pipeline:      DefaultPipelineConfig(),
		Observability: DefaultObservabilityConfig(),
	}
}

// LoadConfig loads configuration from configDir and environment variables.
// Order: defaults -> config.yml -> config.local.yml -> ApplyDefaults -> ApplyEnvOverrides -> ResolvePaths -> Validate
func LoadConfig(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir
	}

	// 1. Start with default values (so YAML can override them, including bool fields)
	cfg := Default()

	// 2. Load config.yml (overrides defaults)
	if err := loadFile(filepath.Join(configDir, "config.yml"), cfg); err != nil {
		return nil, err
	}

	// 3. Load config.local.yml (overrides config.yml)
	if err := loadFile(filepath.Join(configDir, "config.local.yml"), cfg); err != nil {
		return nil, err
	}

	// 4. Apply the section lifecycle
	if err := ApplyServiceConfigs(configDir, cfg.sections()...); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return cfg, nil
}

func (c *Config) sections() []ServiceConfig {
	return []ServiceConfig{
		&c.Logging,
		&c.Postgres,
		&c.Checkpoint,
		&c.Elasticsearch,
		&c.Pipeline,
		&c.Observability,
	}
}

// loadFile merges a YAML file into cfg. A missing file is not an error.
func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		slog.Warn("failed to read config file", "file", filename, "error", err)
		return nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return nil
}
