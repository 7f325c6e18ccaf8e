package matching

import (
	"log/slog"
	"time"

	"github.com/mmynk/tablemates/internal/metrics"
)

type options struct {
	now     func() time.Time
	logger  *slog.Logger
	metrics metrics.Collector
}

func defaultOptions() options {
	return options{
		now:     time.Now,
		logger:  slog.Default(),
		metrics: metrics.NewNop(),
	}
}

// Option configures a Selector or Finalizer.
type Option func(*options)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(o *options) {
		if c != nil {
			o.metrics = c
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
