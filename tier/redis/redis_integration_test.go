package redis

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Keksclan/layercache/cache"
	"github.com/Keksclan/layercache/tier/ristretto"
)

func liveRedis(t *testing.T) *Tier[[]byte] {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}
	client := NewClient(addr, "", 0)
	t.Cleanup(func() { _ = client.Close() })

	l2 := New[[]byte](client, Config[[]byte]{Prefix: "layercache:test:"})
	if err := l2.Ping(t.Context()); err != nil {
		t.Fatalf("cannot reach Redis at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = l2.Clear(context.Background()) })
	return l2
}

func mustRistretto(t *testing.T) *ristretto.Tier[[]byte] {
	t.Helper()
	l1, err := ristretto.New[[]byte]("l1", 1000)
	if err != nil {
		t.Fatalf("ristretto.New: %v", err)
	}
	t.Cleanup(func() { _ = l1.Close() })
	return l1
}

func TestLive_L1_L2_Loader(t *testing.T) {
	l2 := liveRedis(t)
	l1 := mustRistretto(t)
	lc, err := cache.New([]cache.Tier[[]byte]{l1, l2})
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	ctx := t.Context()

	key := "tiered:" + t.Name()

	var calls atomic.Int32
	loader := func(_ context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("from-loader"), nil
	}

	// First call: loader invoked, stored in L1 and L2.
	v, err := lc.Get(ctx, key, loader, cache.After[[]byte](30*time.Second))
	if err != nil {
		t.Fatalf("Get 1: %v", err)
	}
	if string(v) != "from-loader" {
		t.Fatalf("got %q, want %q", v, "from-loader")
	}

	// Second call: served from L1, loader not called.
	if _, err := lc.Get(ctx, key, loader, cache.After[[]byte](30*time.Second)); err != nil {
		t.Fatalf("Get 2: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("loader called %d times, want 1", n)
	}

	// Fresh L1, value should come from L2 and be back-filled.
	l1Fresh := mustRistretto(t)
	lc2, _ := cache.New([]cache.Tier[[]byte]{l1Fresh, l2})

	v, err = lc2.Get(ctx, key, loader, cache.After[[]byte](30*time.Second))
	if err != nil {
		t.Fatalf("Get 3 (L2 hit): %v", err)
	}
	if string(v) != "from-loader" {
		t.Fatalf("got %q, want %q", v, "from-loader")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("loader called %d times, want 1", n)
	}
	if _, ok, _ := l1Fresh.Get(ctx, key); !ok {
		t.Fatal("expected L1 to be back-filled from L2")
	}
}

func TestLive_UnreachableRedisFallsThrough(t *testing.T) {
	if os.Getenv("REDIS_ADDR") == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}
	// Connect to a bogus address; the cascade must fall through to the loader.
	client := NewClient("localhost:1", "", 0)
	t.Cleanup(func() { _ = client.Close() })
	bogus := New[[]byte](client, Config[[]byte]{})

	lc, _ := cache.New([]cache.Tier[[]byte]{bogus})

	ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
	defer cancel()

	v, err := lc.Get(ctx, "no-such-key", func(context.Context) ([]byte, error) {
		return []byte("fallback"), nil
	}, cache.After[[]byte](time.Second))
	if err != nil {
		t.Fatalf("expected nil error on unreachable Redis, got: %v", err)
	}
	if string(v) != "fallback" {
		t.Fatalf("got %q, want %q", v, "fallback")
	}
}
