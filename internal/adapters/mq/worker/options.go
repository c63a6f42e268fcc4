package worker

import (
	"time"

	"github.com/okian/sickbay/internal/adapters/cache"
	"github.com/okian/sickbay/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithCache sets the validation cache.
func WithCache(c cache.ValidationCache) Option {
	return func(w *InMemoryWorker) {
		if c != nil {
			w.cache = c
		}
	}
}

// WithSink sets the result callback.
func WithSink(s Sink) Option {
	return func(w *InMemoryWorker) {
		if s != nil {
			w.sink = s
		}
	}
}

// WithRunTime fixes the time used for cache keys and return dates.
func WithRunTime(t time.Time) Option {
	return func(w *InMemoryWorker) {
		w.runAt = t
	}
}
