// Package cache provides a read-through cache orchestrator over an ordered
// list of storage tiers.
//
// Tiers are consulted in the order they were given to [New], which should be
// from fastest/cheapest to slowest/most authoritative. The first tier holding
// a non-expired item answers the lookup; every tier that missed before it is
// back-filled with that item. When no tier can answer, the caller-supplied
// [Producer] computes the value and every tier is back-filled.
//
//	lc, err := cache.New([]cache.Tier[User]{l1, l2})
//	if err != nil {
//		return err
//	}
//	u, err := lc.Get(ctx, "user:42", loadUser, cache.After[User](time.Minute))
package cache

import (
	"context"
	"time"
)

// Producer computes a value on a full cascade miss.
type Producer[T any] func(ctx context.Context) (T, error)

// Expiry computes the absolute expiration instant of a freshly produced
// value. It is evaluated exactly once, after the value is produced.
type Expiry[T any] func(v T) time.Time

// At returns an Expiry that always yields t.
func At[T any](t time.Time) Expiry[T] {
	return func(T) time.Time { return t }
}

// After returns an Expiry that yields d from the moment it is evaluated.
func After[T any](d time.Duration) Expiry[T] {
	return func(T) time.Time { return time.Now().Add(d) }
}
