// Package metrics exports cache events as Prometheus series.
//
// A [Collector] is a cache.Observer; install it with cache.WithObserver or
// layercache.WithMetrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Keksclan/layercache/cache"
)

// Result label values.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultExpired = "expired"
	ResultError   = "error"
	ResultSuccess = "success"
)

// Config configures a Collector.
type Config struct {
	// Registerer receives the series. Nil means prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Namespace prefixes every series. Defaults to "layercache".
	Namespace string

	// ConstLabels are attached to every series, e.g. the cache name when a
	// process runs several stacks.
	ConstLabels prometheus.Labels

	// Buckets for the tier lookup histogram. Nil uses sub-millisecond to
	// one-second buckets.
	Buckets []float64
}

// Collector counts tier lookups, back-fills, fallbacks and sets.
type Collector struct {
	tierRequests *prometheus.CounterVec
	tierDuration *prometheus.HistogramVec
	backfills    *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	fallbackDur  prometheus.Histogram
	sets         *prometheus.CounterVec
}

// NewCollector registers the series with cfg.Registerer. It panics if they
// are already registered there, like promauto.
func NewCollector(cfg Config) *Collector {
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "layercache"
	}
	if cfg.Buckets == nil {
		cfg.Buckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1}
	}

	factory := promauto.With(cfg.Registerer)
	return &Collector{
		tierRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   cfg.Namespace,
				Name:        "tier_requests_total",
				Help:        "Tier lookups by outcome.",
				ConstLabels: cfg.ConstLabels,
			},
			[]string{"tier", "result"},
		),
		tierDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   cfg.Namespace,
				Name:        "tier_get_duration_seconds",
				Help:        "Duration of tier lookups in seconds.",
				Buckets:     cfg.Buckets,
				ConstLabels: cfg.ConstLabels,
			},
			[]string{"tier"},
		),
		backfills: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   cfg.Namespace,
				Name:        "backfills_total",
				Help:        "Writes into tiers that missed a lookup.",
				ConstLabels: cfg.ConstLabels,
			},
			[]string{"tier", "result"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   cfg.Namespace,
				Name:        "fallbacks_total",
				Help:        "Producer calls after a full miss.",
				ConstLabels: cfg.ConstLabels,
			},
			[]string{"result"},
		),
		fallbackDur: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   cfg.Namespace,
				Name:        "fallback_duration_seconds",
				Help:        "Duration of producer calls in seconds.",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: cfg.ConstLabels,
			},
		),
		sets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   cfg.Namespace,
				Name:        "sets_total",
				Help:        "Unconditional writes by tier and outcome.",
				ConstLabels: cfg.ConstLabels,
			},
			[]string{"tier", "result"},
		),
	}
}

// Observe implements cache.Observer.
func (c *Collector) Observe(_ context.Context, ev cache.Event) {
	switch ev.Kind {
	case cache.EventHit:
		c.lookup(ev, ResultHit)
	case cache.EventMiss:
		c.lookup(ev, ResultMiss)
	case cache.EventExpired:
		c.lookup(ev, ResultExpired)
	case cache.EventTierError:
		c.lookup(ev, ResultError)
	case cache.EventBackfill:
		c.backfills.WithLabelValues(ev.TierName, ResultSuccess).Inc()
	case cache.EventBackfillError:
		c.backfills.WithLabelValues(ev.TierName, ResultError).Inc()
	case cache.EventFallback:
		c.fallbacks.WithLabelValues(ResultSuccess).Inc()
		c.fallbackDur.Observe(ev.Duration.Seconds())
	case cache.EventFallbackError:
		c.fallbacks.WithLabelValues(ResultError).Inc()
		c.fallbackDur.Observe(ev.Duration.Seconds())
	case cache.EventSet:
		c.sets.WithLabelValues(ev.TierName, ResultSuccess).Inc()
	case cache.EventSetError:
		c.sets.WithLabelValues(ev.TierName, ResultError).Inc()
	}
}

func (c *Collector) lookup(ev cache.Event, result string) {
	c.tierRequests.WithLabelValues(ev.TierName, result).Inc()
	c.tierDuration.WithLabelValues(ev.TierName).Observe(ev.Duration.Seconds())
}

// Handler serves the series gathered by g. A nil g serves the default
// registry through promhttp.Handler.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
