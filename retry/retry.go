// Package retry re-runs a failing fallback with exponential back-off. It is
// meant for producers that hit flaky origins; the cache core never retries
// tier calls on its own.
package retry

import (
	"context"
	"errors"
	"slices"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Keksclan/layercache/cache"
)

// Config controls [Do].
type Config struct {
	// MaxAttempts is the total number of calls, the first included. Values
	// below 2 disable retries.
	MaxAttempts int

	// BaseDelay is the wait before the first retry; each further retry
	// doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the back-off. Zero means uncapped.
	MaxDelay time.Duration

	// Jitter spreads every delay by ±Jitter of itself (0.2 = ±20 %).
	Jitter float64

	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool

	// RetryCodes marks errors carrying one of these gRPC status codes as
	// retryable, in addition to Retryable.
	RetryCodes []codes.Code
}

// DefaultConfig retries Unavailable and ResourceExhausted statuses three
// times in total, starting at 50ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
		Jitter:      0.2,
		RetryCodes:  []codes.Code{codes.Unavailable, codes.ResourceExhausted},
	}
}

func (c Config) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if c.Retryable != nil && c.Retryable(err) {
		return true
	}
	if len(c.RetryCodes) == 0 {
		return false
	}
	st, ok := status.FromError(err)
	return ok && slices.Contains(c.RetryCodes, st.Code())
}

// Do calls fn until it succeeds, returns a non-retryable error or runs out of
// attempts. The last error is returned as is. A done ctx stops the wait
// between attempts and its error is returned.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(cfg.MaxAttempts, 1)

	for i := 0; ; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if i == attempts-1 || !cfg.retryable(err) {
			return zero, err
		}

		timer := time.NewTimer(cfg.delay(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// Producer wraps p so that every fallback call goes through [Do].
func Producer[T any](p cache.Producer[T], cfg Config) cache.Producer[T] {
	return func(ctx context.Context) (T, error) {
		return Do[T](ctx, cfg, p)
	}
}
