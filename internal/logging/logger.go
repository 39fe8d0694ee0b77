// Package logging provides config-driven categorized logging for spgt.
// Every category is a named child of one zap logger. Until Initialize is
// called all loggers are no-ops, so library code can log unconditionally.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config loading
	CategoryGrounding Category = "grounding" // Invariant detection, action instantiation
	CategoryEmit      Category = "emit"      // Fact program serialization
	CategoryKernel    Category = "kernel"    // Mangle kernel operations
	CategoryWatch     Category = "watch"     // File watching and recompilation
	CategoryStore     Category = "store"     // Program cache and run history
)

// Options mirrors config.LoggingConfig to avoid circular imports.
type Options struct {
	Level  string
	Format string // "console" or "json"
	// Categories disables individual categories when mapped to false.
	Categories map[string]bool
	// OutputPaths defaults to stderr.
	OutputPaths []string
}

// Logger is a category logger with printf-style methods.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	opts    Options
	loggers = make(map[Category]*Logger)
)

// Initialize builds the root zap logger from opts and installs it. Loggers
// handed out before the call stay no-ops; fetch them again afterwards.
func Initialize(o Options) error {
	root, err := Build(o)
	if err != nil {
		return err
	}
	Use(root, o)
	Get(CategoryBoot).Debug("logging initialized (level=%s, format=%s)", o.Level, o.Format)
	return nil
}

// Build constructs a zap logger from opts without installing it.
func Build(o Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if o.Level != "" {
		l, err := zapcore.ParseLevel(o.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", o.Level, err)
		}
		level = l
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	switch o.Format {
	case "", "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	case "json":
		cfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("invalid log format %q", o.Format)
	}
	if len(o.OutputPaths) > 0 {
		cfg.OutputPaths = o.OutputPaths
	} else {
		cfg.OutputPaths = []string{"stderr"}
	}

	root, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return root, nil
}

// Use installs an existing zap logger as the root, e.g. one built by the
// CLI or zaptest.
func Use(root *zap.Logger, o Options) {
	mu.Lock()
	defer mu.Unlock()
	base = root
	opts = o
	loggers = make(map[Category]*Logger)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	return !exists || enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// WithRunID returns a logger for category tagging every entry with the
// compile run id.
func WithRunID(category Category, runID string) *Logger {
	l := Get(category)
	return &Logger{category: category, sugar: l.sugar.With("run", runID)}
}

// Sugar exposes the underlying zap logger for components that take one.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.sugar }

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Sync flushes the root logger (call at shutdown)
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Grounding logs to the grounding category
func Grounding(format string, args ...interface{}) {
	Get(CategoryGrounding).Info(format, args...)
}

// GroundingDebug logs debug to the grounding category
func GroundingDebug(format string, args ...interface{}) {
	Get(CategoryGrounding).Debug(format, args...)
}

// Emit logs to the emit category
func Emit(format string, args ...interface{}) {
	Get(CategoryEmit).Info(format, args...)
}

// Kernel logs to the kernel category
func Kernel(format string, args ...interface{}) {
	Get(CategoryKernel).Info(format, args...)
}

// KernelDebug logs debug to the kernel category
func KernelDebug(format string, args ...interface{}) {
	Get(CategoryKernel).Debug(format, args...)
}

// Watch logs to the watch category
func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

// WatchWarn logs warning to the watch category
func WatchWarn(format string, args ...interface{}) {
	Get(CategoryWatch).Warn(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}
