// Package config loads spgt settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"spgt/internal/grounding"
)

// Config holds all spgt configuration.
type Config struct {
	Name string `yaml:"name"`

	// Grounding settings
	Grounding GroundingConfig `yaml:"grounding"`

	// Where compiled programs go
	Output OutputConfig `yaml:"output"`

	// Compiled program cache and run history
	Cache CacheConfig `yaml:"cache"`

	// Mangle kernel used by inspect
	Mangle MangleConfig `yaml:"mangle"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Watch mode
	Watch WatchConfig `yaml:"watch"`
}

// GroundingConfig configures the translator.
type GroundingConfig struct {
	CompactUnary bool `yaml:"compact_unary"`
	Workers      int  `yaml:"workers"` // 0 means GOMAXPROCS
}

// OutputConfig configures program output.
type OutputConfig struct {
	Path string `yaml:"path"` // empty writes to stdout
}

// CacheConfig configures the SQLite program cache.
type CacheConfig struct {
	Path string `yaml:"path"` // empty disables caching and run history
}

// WatchConfig configures recompilation on file changes.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "spgt",

		Grounding: GroundingConfig{
			CompactUnary: true,
		},

		Mangle: MangleConfig{
			FactLimit:    1000000,
			QueryTimeout: "30s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		Watch: WatchConfig{
			Debounce: "200ms",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if level := os.Getenv("SPGT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("SPGT_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if path := os.Getenv("SPGT_AUDIT_FILE"); path != "" {
		c.Logging.AuditFile = path
	}
	if path := os.Getenv("SPGT_CACHE"); path != "" {
		c.Cache.Path = path
	}
	if path := os.Getenv("SPGT_OUTPUT"); path != "" {
		c.Output.Path = path
	}
	if workers := os.Getenv("SPGT_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("invalid SPGT_WORKERS %q: %w", workers, err)
		}
		c.Grounding.Workers = n
	}
	return nil
}

// GetDebounce returns the watch debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// GroundingOptions returns the translator options for this configuration.
func (c *Config) GroundingOptions() []grounding.Option {
	opts := []grounding.Option{grounding.WithUnaryCompaction(c.Grounding.CompactUnary)}
	if c.Grounding.Workers > 0 {
		opts = append(opts, grounding.WithWorkers(c.Grounding.Workers))
	}
	return opts
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidLogFormats lists the accepted logging encodings.
var ValidLogFormats = []string{"console", "json"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if !contains(ValidLogFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidLogFormats)
	}
	if c.Grounding.Workers < 0 {
		return fmt.Errorf("grounding.workers must not be negative, got %d", c.Grounding.Workers)
	}
	if c.Mangle.FactLimit < 0 {
		return fmt.Errorf("mangle.fact_limit must not be negative, got %d", c.Mangle.FactLimit)
	}
	if _, err := time.ParseDuration(c.Mangle.QueryTimeout); err != nil {
		return fmt.Errorf("invalid mangle.query_timeout %q: %w", c.Mangle.QueryTimeout, err)
	}
	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return fmt.Errorf("invalid watch.debounce %q: %w", c.Watch.Debounce, err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
