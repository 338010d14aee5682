package cache

import "time"

// NoExpiry is an expiration instant far enough in the future to never be
// reached. Tiers with a native "no TTL" setting map it to that setting.
var NoExpiry = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Item is a cached value together with its absolute expiration instant.
// Items are values: once built they are never mutated, a new value needs a
// new Item.
type Item[T any] struct {
	Value     T
	ExpiresAt time.Time
}

// NewItem wraps v so that it expires at expiresAt.
func NewItem[T any](v T, expiresAt time.Time) Item[T] {
	return Item[T]{Value: v, ExpiresAt: expiresAt}
}

// Expired reports whether the item has expired at the current wall-clock time.
func (i Item[T]) Expired() bool {
	return i.ExpiredAt(time.Now())
}

// ExpiredAt reports whether the item has expired at now.
func (i Item[T]) ExpiredAt(now time.Time) bool {
	return i.ExpiresAt.Before(now)
}

// NeverExpires reports whether the item carries [NoExpiry].
func (i Item[T]) NeverExpires() bool {
	return !i.ExpiresAt.Before(NoExpiry)
}

// TTL returns the time left before the item expires at now, or zero once it
// has expired.
func (i Item[T]) TTL(now time.Time) time.Duration {
	if d := i.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
