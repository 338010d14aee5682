// Package ristretto provides a TTL-aware in-process cache tier backed by
// ristretto. Entries are admitted and evicted by ristretto's TinyLFU policy,
// so a successful Add does not guarantee a later hit once the tier is full.
package ristretto

import (
	"context"
	"errors"
	"time"

	"github.com/Keksclan/layercache/cache"
	"github.com/dgraph-io/ristretto/v2"
)

// ErrDropped is returned by Add when ristretto refuses the write, for
// example when its set buffer is full or the cache is closed.
var ErrDropped = errors.New("ristretto: write dropped")

// Tier is an in-process tier backed by ristretto.
type Tier[T any] struct {
	name    string
	rc      *ristretto.Cache[string, cache.Item[T]]
	nowFunc func() time.Time
}

// New creates a ristretto tier. maxCost controls the maximum number of
// entries the tier can hold (each entry has a cost of 1).
func New[T any](name string, maxCost int64) (*Tier[T], error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, cache.Item[T]]{
		NumCounters:        maxCost * 10,
		MaxCost:            maxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Tier[T]{
		name:    name,
		rc:      rc,
		nowFunc: time.Now,
	}, nil
}

// Name returns the label given to New.
func (t *Tier[T]) Name() string { return t.name }

// Get retrieves the item stored under key.
func (t *Tier[T]) Get(_ context.Context, key string) (cache.Item[T], bool, error) {
	it, ok := t.rc.Get(key)
	return it, ok, nil
}

// Add stores item with a TTL derived from its expiry. Items that already
// expired are not stored and any previous entry for key is dropped.
func (t *Tier[T]) Add(_ context.Context, key string, item cache.Item[T]) error {
	var ttl time.Duration
	if !item.NeverExpires() {
		ttl = item.TTL(t.nowFunc())
		if ttl <= 0 {
			t.rc.Del(key)
			return nil
		}
	}
	if !t.rc.SetWithTTL(key, item, 1, ttl) {
		return ErrDropped
	}
	t.rc.Wait()
	return nil
}

// Remove deletes key.
func (t *Tier[T]) Remove(_ context.Context, key string) error {
	t.rc.Del(key)
	return nil
}

// Clear drops every entry.
func (t *Tier[T]) Clear(_ context.Context) error {
	t.rc.Clear()
	return nil
}

// Close stops ristretto's background goroutines.
func (t *Tier[T]) Close() error {
	t.rc.Close()
	return nil
}

var _ cache.Tier[int] = (*Tier[int])(nil)
