// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config values can be written as "1s",
// "500ms", and so on.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// SimulationConfig is the root configuration for the fleet simulation.
// It is loaded once at startup and never mutated afterwards.
type SimulationConfig struct {
	TargetHost       string   `yaml:"target_host"`
	TargetPort       int      `yaml:"target_port"`
	PacketSizeBytes  int      `yaml:"packet_size_bytes"`
	PacketsPerDevice int      `yaml:"packets_per_device"`
	SendInterval     Duration `yaml:"send_interval"`
	DeviceCount      int      `yaml:"device_count"`
	StartStagger     Duration `yaml:"start_stagger"`
	WindowStart      Duration `yaml:"window_start"`
	WindowStop       Duration `yaml:"window_stop"`
	Horizon          Duration `yaml:"horizon"`
	IOTimeout        Duration `yaml:"io_timeout"`
}

// DefaultIOTimeout bounds each attempt's resolve, connect, and socket
// I/O when io_timeout is not configured.
const DefaultIOTimeout = 5 * time.Second

// Load reads YAML config from configPath, validates it against the CUE
// schema at cueSchemaPath (skipped if empty), applies defaults, and
// checks the invariants the fleet depends on.
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SimulationConfig) applyDefaults() {
	if c.IOTimeout <= 0 {
		c.IOTimeout = Duration(DefaultIOTimeout)
	}
	if c.WindowStop <= 0 {
		c.WindowStop = c.Horizon
	}
}

// Validate checks the invariants that must hold before the fleet is
// constructed. Violations are fatal: the scheduler must not start.
func (c *SimulationConfig) Validate() error {
	switch {
	case c.TargetHost == "":
		return &ConfigurationError{Field: "target_host", Reason: "must not be empty"}
	case c.TargetPort < 1 || c.TargetPort > 65535:
		return &ConfigurationError{Field: "target_port", Reason: "must be in 1-65535"}
	case c.PacketSizeBytes <= 0:
		return &ConfigurationError{Field: "packet_size_bytes", Reason: "must be positive"}
	case c.PacketsPerDevice < 0:
		return &ConfigurationError{Field: "packets_per_device", Reason: "must not be negative"}
	case c.SendInterval <= 0:
		return &ConfigurationError{Field: "send_interval", Reason: "must be positive"}
	case c.DeviceCount <= 0:
		return &ConfigurationError{Field: "device_count", Reason: "must be positive"}
	case c.StartStagger < 0:
		return &ConfigurationError{Field: "start_stagger", Reason: "must not be negative"}
	case c.Horizon <= 0:
		return &ConfigurationError{Field: "horizon", Reason: "must be positive"}
	case c.IOTimeout <= 0:
		return &ConfigurationError{Field: "io_timeout", Reason: "must be positive"}
	}
	return nil
}

// ConfigurationError reports an invalid configuration value. It is the
// only fatal error kind: it aborts startup before any virtual time
// advances.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
