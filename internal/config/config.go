// Package config loads the mapping coordinator's runtime configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the mapping coordinator.
type Config struct {
	Log struct {
		// Env selects the logger preset: "dev" (console, colored) or "prod" (JSON).
		Env string `yaml:"env"`
		// Level is the minimum log level: debug|info|warn|error.
		Level string `yaml:"level"`
	} `yaml:"log"`

	Queue struct {
		// BufferSize bounds the single-writer task channel before submit blocks.
		BufferSize int `yaml:"buffer_size"`
		// DefaultAckTimeout is loaded and defaulted here but not read by any
		// component: the facade applies only a PutMappingRequest's own
		// AckTimeout, and a request without one waits for acknowledgement
		// with no deadline.
		DefaultAckTimeout time.Duration `yaml:"default_ack_timeout"`
	} `yaml:"queue"`

	Mapping struct {
		// LegacyPositionBoundary marks the version string below which a
		// missing template column position is tolerated rather than a
		// hard error (see ColumnPositionPopulator's legacy exception).
		LegacyPositionBoundary string `yaml:"legacy_position_boundary"`
	} `yaml:"mapping"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Load reads and parses a YAML config file, applying defaults for any
// fields left unset.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	return &c, nil
}

// Default returns a Config populated entirely with defaults, useful for
// tests and the demo command when no file is supplied.
func Default() *Config {
	var c Config
	applyDefaults(&c)
	return &c
}

func applyDefaults(c *Config) {
	if c.Log.Env == "" {
		c.Log.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Queue.BufferSize == 0 {
		c.Queue.BufferSize = 256
	}
	if c.Queue.DefaultAckTimeout == 0 {
		c.Queue.DefaultAckTimeout = 30 * time.Second
	}
	if c.Mapping.LegacyPositionBoundary == "" {
		c.Mapping.LegacyPositionBoundary = "5.1.0"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9102"
	}
}
