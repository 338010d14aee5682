// Package layercache assembles a multi-tier read-through cache from a
// declarative configuration.
//
//	cfg, err := config.Load("cache.yaml")
//	if err != nil {
//		return err
//	}
//	stack, err := layercache.Build[User](cfg, layercache.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer stack.Close()
//
//	u, err := stack.Get(ctx, "user:42", loadUser, cache.After[User](time.Minute))
//
// The returned Stack embeds *cache.Layered, so every cache operation is
// available on it directly. Lower-level composition is done with package
// cache and the tier packages.
package layercache

import (
	"errors"
	"fmt"
	"log/slog"

	gomemcache "github.com/bradfitz/gomemcache/memcache"

	"github.com/Keksclan/layercache/breaker"
	"github.com/Keksclan/layercache/cache"
	"github.com/Keksclan/layercache/codec"
	"github.com/Keksclan/layercache/config"
	"github.com/Keksclan/layercache/metrics"
	"github.com/Keksclan/layercache/tier/freecache"
	"github.com/Keksclan/layercache/tier/guard"
	"github.com/Keksclan/layercache/tier/memcache"
	"github.com/Keksclan/layercache/tier/memory"
	"github.com/Keksclan/layercache/tier/redis"
	"github.com/Keksclan/layercache/tier/ristretto"
	"github.com/Keksclan/layercache/tracing"
)

// ErrNilConfig is returned by Build when cfg is nil.
var ErrNilConfig = errors.New("layercache: nil config")

// Stack is a built cache together with the backend clients it owns.
type Stack[T any] struct {
	*cache.Layered[T]

	names   []string
	metrics *metrics.Collector
	closers []func() error
}

// TierNames returns the tier labels in cascade order.
func (s *Stack[T]) TierNames() []string {
	return append([]string(nil), s.names...)
}

// Metrics returns the Prometheus collector, or nil without WithMetrics.
func (s *Stack[T]) Metrics() *metrics.Collector {
	return s.metrics
}

// Close releases backend clients in reverse construction order and joins
// their errors. The cache must not be used afterwards.
func (s *Stack[T]) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Build validates cfg and assembles its tiers, fastest first. Byte-oriented
// tiers serialise T as JSON ([]byte is stored as is), snappy-compressed when
// cfg.Compression says so.
func Build[T any](cfg *config.Config, opts ...Option) (*Stack[T], error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg.Adjust()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("layercache: %w", err)
	}

	var o buildOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracing == nil && cfg.Tracing {
		o.tracing = &tracing.Config{}
	}

	s := &Stack[T]{}
	vc := valueCodec[T](cfg.Compression)
	tiers := make([]cache.Tier[T], 0, len(cfg.Tiers))

	for i, tc := range cfg.Tiers {
		t, closer, err := buildTier(tc, vc)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("layercache: tier %d (%s): %w", i, tc.Name, err)
		}
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
		if g := tc.Guard; g != nil {
			t = guardTier(t, g)
		}
		if o.tracing != nil {
			t = tracing.WrapTier(t, o.tracing)
		}
		tiers = append(tiers, t)
		s.names = append(s.names, tc.Name)
	}

	var observers []cache.Observer
	if cfg.LogEvents {
		observers = append(observers, cache.LogObserver(o.logger, slog.LevelDebug))
	}
	if o.metrics {
		s.metrics = metrics.NewCollector(metrics.Config{Registerer: o.registerer})
		observers = append(observers, s.metrics)
	}
	observers = append(observers, o.observers...)

	mode, _ := cache.ParseBackfillMode(cfg.Backfill)
	cacheOpts := append([]cache.Option{
		cache.WithObserver(cache.Observers(observers...)),
		cache.WithBackfill(mode),
	}, o.cacheOpts...)

	lc, err := cache.New(tiers, cacheOpts...)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("layercache: %w", err)
	}
	s.Layered = lc

	o.logger.Info("layercache: stack built",
		slog.Any("tiers", s.names),
		slog.String("backfill", mode.String()),
		slog.String("compression", cfg.Compression),
		slog.Bool("tracing", o.tracing != nil),
	)
	return s, nil
}

func buildTier[T any](tc config.TierCfg, vc codec.Codec[T]) (cache.Tier[T], func() error, error) {
	switch tc.Kind {
	case config.KindMemory:
		return memory.New[T](tc.Name), nil, nil

	case config.KindRistretto:
		t, err := ristretto.New[T](tc.Name, tc.MaxCost)
		if err != nil {
			return nil, nil, err
		}
		return t, t.Close, nil

	case config.KindFreecache:
		return freecache.New(freecache.Config[T]{Name: tc.Name, SizeBytes: tc.SizeBytes, Codec: vc}), nil, nil

	case config.KindRedis:
		rc := tc.Redis
		rdb := redis.NewClient(rc.Addr, rc.Password, rc.DB)
		t := redis.New(rdb, redis.Config[T]{Name: tc.Name, Prefix: rc.Prefix, Codec: vc})
		return t, rdb.Close, nil

	case config.KindMemcache:
		mc := gomemcache.New(tc.Memcache.Servers...)
		mc.Timeout = tc.Memcache.Timeout
		t := memcache.NewWithClient(mc, memcache.Config[T]{Name: tc.Name, Prefix: tc.Memcache.Prefix, Codec: vc})
		return t, t.Close, nil
	}
	return nil, nil, fmt.Errorf("%w %q", config.ErrUnknownKind, tc.Kind)
}

func guardTier[T any](t cache.Tier[T], g *config.GuardCfg) cache.Tier[T] {
	opts := []guard.Option{guard.WithBreaker(breaker.Config{
		FailureThreshold:   g.FailureThreshold,
		OpenTimeout:        g.OpenTimeout,
		HalfOpenMaxSuccess: g.HalfOpenMaxSuccess,
	})}
	if g.RPS > 0 {
		opts = append(opts, guard.WithRateLimit(g.RPS, g.Burst))
	}
	return guard.Wrap(t, opts...)
}

// valueCodec picks the serialisation for byte-oriented tiers.
func valueCodec[T any](compression string) codec.Codec[T] {
	var c codec.Codec[T] = codec.JSON[T]{}
	if raw, ok := any(codec.Raw{}).(codec.Codec[T]); ok {
		c = raw
	}
	if compression == config.CompressionSnappy {
		c = codec.NewSnappy(c)
	}
	return c
}
