package manager

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds lock manager settings.
type Config struct {
	// DefaultTimeout is the lease length applied when a request asks for
	// the default (zero duration).
	DefaultTimeout time.Duration

	// MaxTimeout caps requested lease lengths. Zero disables the cap.
	MaxTimeout time.Duration

	// EnableSweeper starts a background goroutine that eagerly finalizes
	// expired leases. Correctness never depends on it; expiry is
	// re-checked on every read.
	EnableSweeper bool

	// SweepInterval is the sweeper period.
	SweepInterval time.Duration
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: DefaultTimeout,
		MaxTimeout:     DefaultMaxTimeout,
		SweepInterval:  DefaultSweepInterval,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("manager: default timeout must be positive, got %v", c.DefaultTimeout)
	}
	if c.MaxTimeout < 0 {
		return fmt.Errorf("manager: max timeout must not be negative, got %v", c.MaxTimeout)
	}
	if c.MaxTimeout > 0 && c.DefaultTimeout > c.MaxTimeout {
		return fmt.Errorf("manager: default timeout %v exceeds max timeout %v", c.DefaultTimeout, c.MaxTimeout)
	}
	if c.EnableSweeper && c.SweepInterval <= 0 {
		return fmt.Errorf("manager: sweep interval must be positive, got %v", c.SweepInterval)
	}
	return nil
}

// fileConfig is the YAML shape of a config file. Durations are whole
// seconds, matching the Second-N timeout convention.
type fileConfig struct {
	DefaultTimeoutSeconds int  `yaml:"default_timeout_seconds"`
	MaxTimeoutSeconds     int  `yaml:"max_timeout_seconds"`
	EnableSweeper         bool `yaml:"enable_sweeper"`
	SweepIntervalSeconds  int  `yaml:"sweep_interval_seconds"`
}

// LoadConfig reads a YAML config file. Unset fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("manager: read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("manager: parse config: %w", err)
	}

	cfg := DefaultConfig()
	if fc.DefaultTimeoutSeconds > 0 {
		cfg.DefaultTimeout = time.Duration(fc.DefaultTimeoutSeconds) * time.Second
	}
	if fc.MaxTimeoutSeconds > 0 {
		cfg.MaxTimeout = time.Duration(fc.MaxTimeoutSeconds) * time.Second
	}
	cfg.EnableSweeper = fc.EnableSweeper
	if fc.SweepIntervalSeconds > 0 {
		cfg.SweepInterval = time.Duration(fc.SweepIntervalSeconds) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
