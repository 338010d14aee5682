package layercache

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Keksclan/layercache/cache"
	"github.com/Keksclan/layercache/tracing"
)

// Option configures Build.
type Option func(*buildOptions)

// buildOptions holds the settings assembled via functional options.
type buildOptions struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	metrics    bool
	tracing    *tracing.Config
	observers  []cache.Observer
	cacheOpts  []cache.Option
}

// WithLogger sets the logger used for build messages and, when the
// configuration enables log_events, for per-event debug logs.
func WithLogger(l *slog.Logger) Option {
	return func(o *buildOptions) {
		o.logger = l
	}
}

// WithMetrics exports cache events as Prometheus series registered with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *buildOptions) {
		o.metrics = true
		o.registerer = reg
	}
}

// WithTracing wraps every tier in spans from cfg, whether or not the
// configuration file enables tracing.
func WithTracing(cfg *tracing.Config) Option {
	return func(o *buildOptions) {
		if cfg == nil {
			cfg = &tracing.Config{}
		}
		o.tracing = cfg
	}
}

// WithObserver adds an observer after the built-in ones.
func WithObserver(obs cache.Observer) Option {
	return func(o *buildOptions) {
		o.observers = append(o.observers, obs)
	}
}

// WithCacheOptions passes extra options to cache.New, e.g. cache.WithClock.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *buildOptions) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}
