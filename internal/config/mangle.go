package config

import (
	"time"

	"spgt/internal/mangle"
)

// MangleConfig configures the Mangle kernel.
type MangleConfig struct {
	FactLimit    int    `yaml:"fact_limit"`
	QueryTimeout string `yaml:"query_timeout"`
	RulesPath    string `yaml:"rules_path"` // extra rules loaded by inspect
}

// GetQueryTimeout returns the Mangle query timeout as a duration.
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Mangle.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// KernelConfig returns the engine configuration for this section.
func (c *Config) KernelConfig() mangle.Config {
	cfg := mangle.DefaultConfig()
	cfg.FactLimit = c.Mangle.FactLimit
	cfg.QueryTimeout = int(c.GetQueryTimeout() / time.Second)
	return cfg
}
