package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the daemon.
type Config struct {
	// Listen is the address the RPC listener binds to.
	Listen string `yaml:"listen"`

	// MetricsListen is the address the metrics endpoint binds to.
	MetricsListen string `yaml:"metrics_listen"`

	// UpdateIntervalSeconds is the period of component update timers.
	UpdateIntervalSeconds int `yaml:"update_interval_seconds"`

	// LogLevels are per-package log level entries.
	// Format: ["info"], or ["default=info", "wire.*=debug"].
	LogLevels []string `yaml:"log_levels"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Listen:                "127.0.0.1:58846",
		MetricsListen:         "127.0.0.1:9118",
		UpdateIntervalSeconds: 1,
		LogLevels:             []string{"info"},
	}
}

// Load reads a YAML config file over the defaults using Koanf.
//
// Error cases: file not found or unreadable, invalid YAML syntax,
// validation failure.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed for %q: %w", path, err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.MetricsListen == "" {
		return fmt.Errorf("metrics_listen address must not be empty")
	}
	if c.UpdateIntervalSeconds < 1 {
		return fmt.Errorf("update_interval_seconds must be at least 1")
	}
	return nil
}

// UpdateInterval returns the component update period as a duration.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}
