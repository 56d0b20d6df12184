package config

import (
	"errors"
	"os"
	"strings"
)

// ElasticsearchConfig holds the destination index settings.
type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Index     string   `yaml:"index"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
}

// DefaultElasticsearchConfig returns default index settings.
func DefaultElasticsearchConfig() ElasticsearchConfig {
	return ElasticsearchConfig{
		Addresses: []string{"http://localhost:9200"},
		Index:     "movies",
	}
}

// ApplyDefaults fills in missing values with defaults
func (c *ElasticsearchConfig) ApplyDefaults() {
	if c.Index == "" {
		c.Index = "movies"
	}
}

// ApplyEnvOverrides applies ELK_DSN (comma separated) and ELK_INDEX.
func (c *ElasticsearchConfig) ApplyEnvOverrides() {
	if val := os.Getenv("ELK_DSN"); val != "" {
		c.Addresses = splitList(val)
	}
	if val := os.Getenv("ELK_INDEX"); val != "" {
		c.Index = val
	}
}

// ResolvePaths is a no-op.
func (c *ElasticsearchConfig) ResolvePaths(_ string) {}

// Validate validates the configuration
func (c *ElasticsearchConfig) Validate() error {
	if len(c.Addresses) == 0 {
		return errors.New("elasticsearch.addresses must have at least one address")
	}
	if c.Index == "" {
		return errors.New("elasticsearch.index is required")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
