package config

// ObservabilityConfig configures the optional health and metrics listener.
type ObservabilityConfig struct {
	// Address to serve /health and /metrics on. Empty disables the listener.
	Address string `yaml:"address"`
}

// DefaultObservabilityConfig returns the listener disabled.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{}
}

// ApplyDefaults is a no-op; an empty address is meaningful.
func (c *ObservabilityConfig) ApplyDefaults() {}

// ApplyEnvOverrides is a no-op.
func (c *ObservabilityConfig) ApplyEnvOverrides() {}

// ResolvePaths is a no-op.
func (c *ObservabilityConfig) ResolvePaths(_ string) {}

// Validate accepts any address; net/http reports bad ones on listen.
func (c *ObservabilityConfig) Validate() error { return nil }
