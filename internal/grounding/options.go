package grounding

import (
	"runtime"

	"go.uber.org/zap"

	"spgt/internal/logging"
)

type options struct {
	compactUnary bool
	workers      int
	log          *zap.SugaredLogger
}

func defaultOptions() options {
	return options{
		compactUnary: true,
		workers:      runtime.GOMAXPROCS(0),
		log:          logging.Get(logging.CategoryGrounding).Sugar(),
	}
}

// Option configures a Translator.
type Option func(*options)

// WithUnaryCompaction toggles collapsing single-valued unary predicates
// into multi-valued variables. Enabled by default.
func WithUnaryCompaction(enabled bool) Option {
	return func(o *options) { o.compactUnary = enabled }
}

// WithWorkers bounds how many lifted actions are instantiated at once.
// Values below one mean one.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.workers = n
	}
}

// WithLogger replaces the grounding category logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
