// Package guard shields a remote cache tier behind a circuit breaker and a
// rate limiter. While the breaker is open, or the limiter is exhausted, calls
// fail fast instead of reaching the backend; the Layered cache treats those
// failures as misses and moves on to the next tier.
package guard

import (
	"context"
	"errors"

	"github.com/Keksclan/layercache/breaker"
	"github.com/Keksclan/layercache/cache"
	"github.com/Keksclan/layercache/ratelimit"
)

var (
	// ErrOpen is returned while the breaker rejects calls.
	ErrOpen = errors.New("guard: circuit open")

	// ErrThrottled is returned when the rate limiter rejects a call.
	ErrThrottled = errors.New("guard: rate limit exceeded")
)

// Tier wraps another tier.
type Tier[T any] struct {
	inner   cache.Tier[T]
	breaker *breaker.Breaker
	limiter *ratelimit.Limiter
}

// Option configures a guard.
type Option func(*options)

type options struct {
	breaker *breaker.Breaker
	limiter *ratelimit.Limiter
}

// WithBreaker guards the tier with a breaker built from cfg.
func WithBreaker(cfg breaker.Config) Option {
	return func(o *options) {
		o.breaker = breaker.New(cfg)
	}
}

// WithRateLimit caps calls into the tier at rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.limiter = ratelimit.NewLimiter(rps, burst)
	}
}

// Wrap decorates inner. Without options the wrapper only forwards calls.
func Wrap[T any](inner cache.Tier[T], opts ...Option) *Tier[T] {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return &Tier[T]{inner: inner, breaker: o.breaker, limiter: o.limiter}
}

// Name returns the inner tier's name, or "" when it has none.
func (t *Tier[T]) Name() string {
	return cache.NameOf(t.inner)
}

// State returns the breaker state, or Closed when no breaker is configured.
func (t *Tier[T]) State() breaker.State {
	if t.breaker == nil {
		return breaker.Closed
	}
	return t.breaker.State()
}

// Get forwards to the inner tier when the guard allows it. A miss counts as
// a success for the breaker.
func (t *Tier[T]) Get(ctx context.Context, key string) (cache.Item[T], bool, error) {
	if err := t.admit(); err != nil {
		return cache.Item[T]{}, false, err
	}
	it, ok, err := t.inner.Get(ctx, key)
	t.record(err)
	return it, ok, err
}

// Add forwards to the inner tier when the guard allows it.
func (t *Tier[T]) Add(ctx context.Context, key string, item cache.Item[T]) error {
	if err := t.admit(); err != nil {
		return err
	}
	err := t.inner.Add(ctx, key, item)
	t.record(err)
	return err
}

// Remove forwards to the inner tier when the guard allows it.
func (t *Tier[T]) Remove(ctx context.Context, key string) error {
	if err := t.admit(); err != nil {
		return err
	}
	err := t.inner.Remove(ctx, key)
	t.record(err)
	return err
}

// Clear forwards to the inner tier. Clear is administrative and bypasses the
// rate limiter, but not an open breaker.
func (t *Tier[T]) Clear(ctx context.Context) error {
	if t.breaker != nil && !t.breaker.Allow() {
		return ErrOpen
	}
	err := t.inner.Clear(ctx)
	t.record(err)
	return err
}

func (t *Tier[T]) admit() error {
	if t.breaker != nil && !t.breaker.Allow() {
		return ErrOpen
	}
	if !t.limiter.Allow() {
		return ErrThrottled
	}
	return nil
}

// record feeds the outcome to the breaker. Context cancellation is the
// caller's doing and is not held against the tier.
func (t *Tier[T]) record(err error) {
	if t.breaker == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	t.breaker.Record(err)
}

var _ cache.Tier[int] = (*Tier[int])(nil)
