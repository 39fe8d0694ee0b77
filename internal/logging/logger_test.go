package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, o Options) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core), o)
	t.Cleanup(func() { Use(zap.NewNop(), Options{}) })
	return logs
}

func TestGetBeforeInitializeIsNoop(t *testing.T) {
	Use(zap.NewNop(), Options{})
	assert.NotPanics(t, func() {
		Get(CategoryGrounding).Info("grounding %d actions", 3)
		Kernel("loaded")
		Sync()
	})
}

func TestCategoriesAreNamed(t *testing.T) {
	logs := observe(t, Options{})

	Boot("booting %s", "spgt")
	GroundingDebug("candidates: %v", []string{"position"})
	Emit("wrote %d facts", 12)
	KernelDebug("query %s", "touched")
	WatchWarn("watcher error: %v", "boom")

	entries := logs.All()
	require.Len(t, entries, 5)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.LoggerName
	}
	assert.Equal(t, []string{"boot", "grounding", "emit", "kernel", "watch"}, names)
	assert.Equal(t, "wrote 12 facts", entries[2].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[4].Level)
}

func TestCategoryToggle(t *testing.T) {
	logs := observe(t, Options{Categories: map[string]bool{"kernel": false, "emit": true}})

	assert.False(t, IsCategoryEnabled(CategoryKernel))
	assert.True(t, IsCategoryEnabled(CategoryEmit))
	assert.True(t, IsCategoryEnabled(CategoryWatch), "unlisted categories stay enabled")

	Kernel("suppressed")
	Emit("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestWithRunID(t *testing.T) {
	logs := observe(t, Options{})

	WithRunID(CategoryGrounding, "run-1").Info("grounded")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, map[string]interface{}{"run": "run-1"}, logs.All()[0].ContextMap())
}

func TestInitialize(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spgt.log")
	t.Cleanup(func() { Use(zap.NewNop(), Options{}) })

	require.NoError(t, Initialize(Options{Level: "debug", Format: "json", OutputPaths: []string{out}}))
	Grounding("grounded %d actions", 5)
	Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"grounding"`)
	assert.Contains(t, string(data), "grounded 5 actions")
}

func TestInitialize_Errors(t *testing.T) {
	t.Cleanup(func() { Use(zap.NewNop(), Options{}) })

	err := Initialize(Options{Level: "loud"})
	assert.Error(t, err)

	err = Initialize(Options{Format: "xml"})
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "xml"))
}
