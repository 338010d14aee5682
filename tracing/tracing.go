// Package tracing wraps cache tiers and producers in OpenTelemetry spans. It
// is optional: nothing in the cache core depends on it.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Keksclan/layercache/cache"
)

const instrumentation = "github.com/Keksclan/layercache/tracing"

// Span attribute keys.
const (
	AttrTier = attribute.Key("cache.tier")
	AttrKey  = attribute.Key("cache.key")
	AttrHit  = attribute.Key("cache.hit")
)

// Config holds the OpenTelemetry setup shared by the wrappers.
type Config struct {
	// TracerProvider supplies the Tracer. When nil the global
	// otel.GetTracerProvider() is used.
	TracerProvider trace.TracerProvider

	// OmitKeys drops the cache.key attribute, for keys that carry
	// identifiers which must not leave the process.
	OmitKeys bool
}

func (c *Config) tracer() trace.Tracer {
	tp := otel.GetTracerProvider()
	if c != nil && c.TracerProvider != nil {
		tp = c.TracerProvider
	}
	return tp.Tracer(instrumentation)
}

func (c *Config) keyAttrs(key string) []attribute.KeyValue {
	if c != nil && c.OmitKeys {
		return nil
	}
	return []attribute.KeyValue{AttrKey.String(key)}
}

// Tier wraps a cache tier so that each call runs in a client span named
// layercache.tier.<op>.
type Tier[T any] struct {
	inner  cache.Tier[T]
	name   string
	cfg    *Config
	tracer trace.Tracer
}

// WrapTier returns inner instrumented with cfg. A nil cfg uses the global
// tracer provider. The wrapper keeps the label of inner; spans of an unnamed
// tier carry no cache.tier attribute.
func WrapTier[T any](inner cache.Tier[T], cfg *Config) *Tier[T] {
	return &Tier[T]{
		inner:  inner,
		name:   cache.NameOf(inner),
		cfg:    cfg,
		tracer: cfg.tracer(),
	}
}

// Name returns the label of the wrapped tier, or "" when it has none.
func (t *Tier[T]) Name() string { return t.name }

func (t *Tier[T]) start(ctx context.Context, op, key string) (context.Context, trace.Span) {
	attrs := append(t.tierAttrs(), t.cfg.keyAttrs(key)...)
	return t.tracer.Start(ctx, "layercache.tier."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (t *Tier[T]) tierAttrs() []attribute.KeyValue {
	if t.name == "" {
		return nil
	}
	return []attribute.KeyValue{AttrTier.String(t.name)}
}

// Get records whether the lookup found the key in cache.hit. Expiry is
// judged by the orchestrator, so an expired item still counts as found here.
func (t *Tier[T]) Get(ctx context.Context, key string) (cache.Item[T], bool, error) {
	ctx, span := t.start(ctx, "get", key)
	defer span.End()

	it, ok, err := t.inner.Get(ctx, key)
	span.SetAttributes(AttrHit.Bool(ok && err == nil))
	record(span, err)
	return it, ok, err
}

// Add stores item in the inner tier under a layercache.tier.add span.
func (t *Tier[T]) Add(ctx context.Context, key string, item cache.Item[T]) error {
	ctx, span := t.start(ctx, "add", key)
	defer span.End()

	err := t.inner.Add(ctx, key, item)
	record(span, err)
	return err
}

// Remove deletes key from the inner tier under a layercache.tier.remove span.
func (t *Tier[T]) Remove(ctx context.Context, key string) error {
	ctx, span := t.start(ctx, "remove", key)
	defer span.End()

	err := t.inner.Remove(ctx, key)
	record(span, err)
	return err
}

// Clear empties the inner tier under a layercache.tier.clear span. The span
// carries no key.
func (t *Tier[T]) Clear(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "layercache.tier.clear",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.tierAttrs()...),
	)
	defer span.End()

	err := t.inner.Clear(ctx)
	record(span, err)
	return err
}

// Producer wraps p in a layercache.fallback span. The span is a child of
// whatever span ctx carries when the cache calls p.
func Producer[T any](p cache.Producer[T], cfg *Config) cache.Producer[T] {
	tracer := cfg.tracer()
	return func(ctx context.Context) (T, error) {
		ctx, span := tracer.Start(ctx, "layercache.fallback")
		defer span.End()

		v, err := p(ctx)
		record(span, err)
		return v, err
	}
}

func record(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
