// Package flaky wraps a cache tier with injected latency and failures. It
// stands in for a slow or unreliable remote store in tests and demos.
package flaky

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Keksclan/layercache/cache"
)

// ErrInjected is returned for every failure the wrapper injects.
var ErrInjected = errors.New("flaky: injected failure")

// Config controls the injected behaviour.
type Config struct {
	// Delay is added before every operation. The delay is interrupted by
	// context cancellation.
	Delay time.Duration

	// FailureRate is the probability in [0, 1] that an operation fails with
	// ErrInjected instead of reaching the inner tier.
	FailureRate float64

	// Seed makes the failure sequence reproducible. Zero uses a fixed seed of 1.
	Seed int64
}

// Tier wraps another tier.
type Tier[T any] struct {
	inner cache.Tier[T]
	cfg   Config

	mu  sync.Mutex
	rnd *rand.Rand

	down  atomic.Bool
	calls atomic.Int64
}

// Wrap returns inner decorated with cfg.
func Wrap[T any](inner cache.Tier[T], cfg Config) *Tier[T] {
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &Tier[T]{
		inner: inner,
		cfg:   cfg,
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Name returns the inner tier's name prefixed with "flaky:", or "" when the
// inner tier has no name.
func (t *Tier[T]) Name() string {
	name := cache.NameOf(t.inner)
	if name == "" {
		return ""
	}
	return "flaky:" + name
}

// SetDown makes every operation fail (true) or restores normal behaviour.
func (t *Tier[T]) SetDown(down bool) { t.down.Store(down) }

// Calls returns how many operations reached the wrapper.
func (t *Tier[T]) Calls() int64 { return t.calls.Load() }

// Get forwards to the inner tier unless a failure is injected.
func (t *Tier[T]) Get(ctx context.Context, key string) (cache.Item[T], bool, error) {
	if err := t.before(ctx); err != nil {
		return cache.Item[T]{}, false, err
	}
	return t.inner.Get(ctx, key)
}

// Add forwards to the inner tier unless a failure is injected.
func (t *Tier[T]) Add(ctx context.Context, key string, item cache.Item[T]) error {
	if err := t.before(ctx); err != nil {
		return err
	}
	return t.inner.Add(ctx, key, item)
}

// Remove forwards to the inner tier unless a failure is injected.
func (t *Tier[T]) Remove(ctx context.Context, key string) error {
	if err := t.before(ctx); err != nil {
		return err
	}
	return t.inner.Remove(ctx, key)
}

// Clear forwards to the inner tier unless a failure is injected.
func (t *Tier[T]) Clear(ctx context.Context) error {
	if err := t.before(ctx); err != nil {
		return err
	}
	return t.inner.Clear(ctx)
}

func (t *Tier[T]) before(ctx context.Context) error {
	t.calls.Add(1)

	if t.cfg.Delay > 0 {
		timer := time.NewTimer(t.cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if t.down.Load() || t.fail() {
		return ErrInjected
	}
	return nil
}

func (t *Tier[T]) fail() bool {
	if t.cfg.FailureRate <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rnd.Float64() < t.cfg.FailureRate
}

var _ cache.Tier[int] = (*Tier[int])(nil)
