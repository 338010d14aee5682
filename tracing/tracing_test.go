package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Keksclan/layercache/cache"
	"github.com/Keksclan/layercache/tier/flaky"
	"github.com/Keksclan/layercache/tier/memory"
)

// newTestConfig returns a Config backed by an in-memory span recorder.
func newTestConfig(t *testing.T) (*Config, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return &Config{TracerProvider: tp}, rec
}

func TestTier_GetMissAndHit(t *testing.T) {
	cfg, rec := newTestConfig(t)
	tier := WrapTier[string](memory.New[string]("l1"), cfg)

	if _, ok, err := tier.Get(t.Context(), "k"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := tier.Add(t.Context(), "k", cache.NewItem("v", cache.NoExpiry)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, ok, _ := tier.Get(t.Context(), "k"); !ok {
		t.Fatal("expected hit")
	}

	spans := rec.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	names := []string{"layercache.tier.get", "layercache.tier.add", "layercache.tier.get"}
	for i, s := range spans {
		if s.Name() != names[i] {
			t.Fatalf("span %d: expected %q, got %q", i, names[i], s.Name())
		}
		if s.SpanKind() != trace.SpanKindClient {
			t.Fatalf("span %d: expected SpanKindClient, got %v", i, s.SpanKind())
		}
		assertAttr(t, s.Attributes(), AttrTier, "l1")
		assertAttr(t, s.Attributes(), AttrKey, "k")
	}
	assertAttr(t, spans[0].Attributes(), AttrHit, "false")
	assertAttr(t, spans[2].Attributes(), AttrHit, "true")
}

func TestTier_RecordsError(t *testing.T) {
	cfg, rec := newTestConfig(t)
	down := flaky.Wrap[int](memory.New[int]("l2"), flaky.Config{})
	down.SetDown(true)
	tier := WrapTier[int](down, cfg)

	if _, _, err := tier.Get(t.Context(), "k"); !errors.Is(err, flaky.ErrInjected) {
		t.Fatalf("expected ErrInjected, got %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected Error status, got %v", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Fatal("expected the error to be recorded as a span event")
	}
	if tier.Name() != "flaky:l2" {
		t.Fatalf("expected wrapped label, got %q", tier.Name())
	}
}

func TestTier_OmitKeys(t *testing.T) {
	cfg, rec := newTestConfig(t)
	cfg.OmitKeys = true
	tier := WrapTier[int](memory.New[int]("l1"), cfg)

	_ = tier.Remove(t.Context(), "user:42")
	_ = tier.Clear(t.Context())

	for _, s := range rec.Ended() {
		for _, kv := range s.Attributes() {
			if kv.Key == AttrKey {
				t.Fatalf("span %q carries the key", s.Name())
			}
		}
	}
}

type anonTier[T any] struct{ cache.Tier[T] }

func TestTier_UnnamedInnerHasNoTierAttr(t *testing.T) {
	cfg, rec := newTestConfig(t)
	tier := WrapTier[int](anonTier[int]{memory.New[int]("hidden")}, cfg)
	if tier.Name() != "" {
		t.Fatalf("Name = %q, want empty", tier.Name())
	}

	_, _, _ = tier.Get(t.Context(), "k")
	_ = tier.Clear(t.Context())

	for _, s := range rec.Ended() {
		for _, kv := range s.Attributes() {
			if kv.Key == AttrTier {
				t.Fatalf("span %q carries cache.tier=%q", s.Name(), kv.Value.Emit())
			}
		}
	}
}

func TestProducer_SpanIsChildOfCaller(t *testing.T) {
	cfg, rec := newTestConfig(t)
	tier := WrapTier[int](memory.New[int]("l1"), cfg)
	lc, err := cache.New([]cache.Tier[int]{tier})
	if err != nil {
		t.Fatal(err)
	}

	ctx, parent := cfg.tracer().Start(t.Context(), "request")
	v, err := lc.Get(ctx, "k", Producer(func(context.Context) (int, error) { return 7, nil }, cfg), cache.After[int](time.Minute))
	parent.End()
	if err != nil || v != 7 {
		t.Fatalf("Get = %d, %v", v, err)
	}

	var fallback sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.Name() == "layercache.fallback" {
			fallback = s
		}
	}
	if fallback == nil {
		t.Fatal("no fallback span recorded")
	}
	if fallback.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Fatal("fallback span is not a child of the caller span")
	}
	// request, tier get, fallback, back-fill add.
	if n := len(rec.Ended()); n != 4 {
		t.Fatalf("expected 4 spans, got %d", n)
	}
}

func TestProducer_RecordsError(t *testing.T) {
	cfg, rec := newTestConfig(t)
	boom := errors.New("origin down")

	_, err := Producer(func(context.Context) (string, error) { return "", boom }, cfg)(t.Context())
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one errored span, got %d", len(spans))
	}
}

func TestNilConfigUsesGlobalProvider(t *testing.T) {
	tier := WrapTier[int](memory.New[int]("l1"), nil)
	if _, _, err := tier.Get(t.Context(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertAttr checks that attrs contains key with the expected value.
func assertAttr(t *testing.T, attrs []attribute.KeyValue, key attribute.Key, want string) {
	t.Helper()
	for _, a := range attrs {
		if a.Key == key {
			if got := a.Value.Emit(); got != want {
				t.Fatalf("attribute %q: expected %q, got %q", key, want, got)
			}
			return
		}
	}
	t.Fatalf("attribute %q not found", key)
}
