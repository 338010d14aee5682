// Package freecache provides an off-heap, zero-GC-overhead cache tier backed
// by github.com/coocood/freecache. Expiry granularity is one second and the
// backend evicts entries LRU-style when full.
package freecache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Keksclan/layercache/cache"
	"github.com/Keksclan/layercache/codec"
	"github.com/coocood/freecache"
)

// Config holds the tier parameters.
type Config[T any] struct {
	// Name labels the tier in events. Defaults to "freecache".
	Name string

	// SizeBytes is the arena size; freecache enforces a 512KB minimum.
	SizeBytes int

	// Codec serialises values. Defaults to codec.JSON[T].
	Codec codec.Codec[T]
}

// Tier is a freecache-backed tier.
type Tier[T any] struct {
	fc      *freecache.Cache
	name    string
	codec   codec.Codec[T]
	nowFunc func() time.Time
}

// New creates a freecache tier.
func New[T any](cfg Config[T]) *Tier[T] {
	if cfg.Name == "" {
		cfg.Name = "freecache"
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.JSON[T]{}
	}
	return &Tier[T]{
		fc:      freecache.NewCache(cfg.SizeBytes),
		name:    cfg.Name,
		codec:   cfg.Codec,
		nowFunc: time.Now,
	}
}

// Name returns the configured label.
func (t *Tier[T]) Name() string { return t.name }

// Get retrieves and decodes the item stored under key.
func (t *Tier[T]) Get(_ context.Context, key string) (cache.Item[T], bool, error) {
	data, err := t.fc.Get([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return cache.Item[T]{}, false, nil
		}
		return cache.Item[T]{}, false, fmt.Errorf("freecache get %q: %w", key, err)
	}
	item, err := codec.DecodeItem(t.codec, data)
	if err != nil {
		return cache.Item[T]{}, false, fmt.Errorf("freecache decode %q: %w", key, err)
	}
	return item, true, nil
}

// Add stores item under key. The TTL is rounded up to whole seconds so the
// backend never drops an entry before its expiry.
func (t *Tier[T]) Add(_ context.Context, key string, item cache.Item[T]) error {
	seconds := 0
	if !item.NeverExpires() {
		ttl := item.TTL(t.nowFunc())
		if ttl <= 0 {
			t.fc.Del([]byte(key))
			return nil
		}
		seconds = int(min(math.Ceil(ttl.Seconds()), math.MaxInt32))
	}

	data, err := codec.EncodeItem(t.codec, item)
	if err != nil {
		return fmt.Errorf("freecache encode %q: %w", key, err)
	}
	// Errors here are ErrLargeKey / ErrLargeEntry.
	if err := t.fc.Set([]byte(key), data, seconds); err != nil {
		return fmt.Errorf("freecache set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (t *Tier[T]) Remove(_ context.Context, key string) error {
	t.fc.Del([]byte(key))
	return nil
}

// Clear drops every entry.
func (t *Tier[T]) Clear(_ context.Context) error {
	t.fc.Clear()
	return nil
}

// EntryCount returns the number of entries currently stored.
func (t *Tier[T]) EntryCount() int64 {
	return t.fc.EntryCount()
}

// HitRate returns the backend's ratio of hits to lookups.
func (t *Tier[T]) HitRate() float64 {
	return t.fc.HitRate()
}

var _ cache.Tier[int] = (*Tier[int])(nil)
