package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("logging and output", func(t *testing.T) {
		t.Setenv("SPGT_LOG_LEVEL", "debug")
		t.Setenv("SPGT_LOG_FORMAT", "json")
		t.Setenv("SPGT_AUDIT_FILE", "audit.jsonl")
		t.Setenv("SPGT_OUTPUT", "program.lp")
		t.Setenv("SPGT_CACHE", "cache/spgt.db")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())

		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)
		assert.Equal(t, "audit.jsonl", cfg.Logging.AuditFile)
		assert.Equal(t, "program.lp", cfg.Output.Path)
		assert.Equal(t, "cache/spgt.db", cfg.Cache.Path)
	})

	t.Run("workers", func(t *testing.T) {
		t.Setenv("SPGT_WORKERS", "6")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, 6, cfg.Grounding.Workers)
	})

	t.Run("bad workers", func(t *testing.T) {
		t.Setenv("SPGT_WORKERS", "many")

		cfg := DefaultConfig()
		assert.ErrorContains(t, cfg.applyEnvOverrides(), "SPGT_WORKERS")
	})

	t.Run("empty values leave config alone", func(t *testing.T) {
		t.Setenv("SPGT_LOG_LEVEL", "")
		t.Setenv("SPGT_OUTPUT", "")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Empty(t, cfg.Output.Path)
	})
}

func TestEnvOverridesFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spgt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  path: from-file.lp\n"), 0644))
	t.Setenv("SPGT_OUTPUT", "from-env.lp")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.lp", cfg.Output.Path)
}
