// Package ratelimit provides a token-bucket limiter backed by
// golang.org/x/time/rate, used to cap the call rate into a remote cache tier.
package ratelimit

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter that decides whether a call may go
// through. A nil *Limiter allows everything.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter that permits rps calls per second with the
// given burst size. A non-positive rps disables limiting; a burst below 1
// becomes ceil(rps), since a zero bucket would refuse every call.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return &Limiter{lim: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = max(1, int(math.Ceil(rps)))
	}
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow reports whether a single call may proceed now.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.lim.Allow()
}

// Wait blocks until a call may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.lim.Wait(ctx)
}
