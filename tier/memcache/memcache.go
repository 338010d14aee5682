// Package memcache provides a memcached-backed cache tier using gomemcache.
//
// Expiry is passed to memcached as an absolute Unix timestamp, so entries
// expire server-side at the item's own instant. Keys that memcached would
// reject (too long, or containing spaces/control characters) are replaced by
// their xxh3-128 digest.
package memcache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Keksclan/layercache/cache"
	"github.com/Keksclan/layercache/codec"
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"
)

// maxKeyLen is memcached's key length limit.
const maxKeyLen = 250

// Config holds the tier parameters.
type Config[T any] struct {
	// Name labels the tier in events. Defaults to "memcache".
	Name string

	// Prefix namespaces every key written by the tier.
	Prefix string

	// Codec serialises values. Defaults to codec.JSON[T].
	Codec codec.Codec[T]
}

// Tier is a memcached-backed tier.
type Tier[T any] struct {
	mc      *memcache.Client
	name    string
	prefix  string
	codec   codec.Codec[T]
	nowFunc func() time.Time
}

// New creates a tier using the given servers with equal weight.
func New[T any](cfg Config[T], servers ...string) *Tier[T] {
	return NewWithClient(memcache.New(servers...), cfg)
}

// NewWithClient creates a tier on top of an existing client.
func NewWithClient[T any](mc *memcache.Client, cfg Config[T]) *Tier[T] {
	if cfg.Name == "" {
		cfg.Name = "memcache"
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.JSON[T]{}
	}
	return &Tier[T]{
		mc:      mc,
		name:    cfg.Name,
		prefix:  cfg.Prefix,
		codec:   cfg.Codec,
		nowFunc: time.Now,
	}
}

// Name returns the configured label.
func (t *Tier[T]) Name() string { return t.name }

// key maps a cache key to a memcached key.
func (t *Tier[T]) key(k string) string {
	full := t.prefix + k
	if validKey(full) {
		return full
	}
	sum := xxh3.HashString128(full).Bytes()
	return t.prefix + "h:" + hex.EncodeToString(sum[:])
}

func validKey(k string) bool {
	if len(k) == 0 || len(k) > maxKeyLen {
		return false
	}
	for i := 0; i < len(k); i++ {
		if c := k[i]; c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

// Get retrieves and decodes the item stored under key.
func (t *Tier[T]) Get(_ context.Context, key string) (cache.Item[T], bool, error) {
	mi, err := t.mc.Get(t.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return cache.Item[T]{}, false, nil
		}
		return cache.Item[T]{}, false, fmt.Errorf("memcache get %q: %w", key, err)
	}
	item, err := codec.DecodeItem(t.codec, mi.Value)
	if err != nil {
		return cache.Item[T]{}, false, fmt.Errorf("memcache decode %q: %w", key, err)
	}
	return item, true, nil
}

// Add stores item under key. Already-expired items delete the key instead.
func (t *Tier[T]) Add(ctx context.Context, key string, item cache.Item[T]) error {
	var exp int32
	if !item.NeverExpires() {
		if item.ExpiredAt(t.nowFunc()) {
			return t.Remove(ctx, key)
		}
		exp = expiration(item.ExpiresAt)
	}

	data, err := codec.EncodeItem(t.codec, item)
	if err != nil {
		return fmt.Errorf("memcache encode %q: %w", key, err)
	}
	err = t.mc.Set(&memcache.Item{
		Key:        t.key(key),
		Value:      data,
		Expiration: exp,
	})
	if err != nil {
		return fmt.Errorf("memcache set %q: %w", key, err)
	}
	return nil
}

// expiration converts an instant to memcached's absolute form, rounding up to
// the next second. Instants beyond the int32 range are stored without expiry.
func expiration(at time.Time) int32 {
	sec := at.Unix()
	if at.Nanosecond() > 0 {
		sec++
	}
	if sec > math.MaxInt32 {
		return 0
	}
	return int32(sec)
}

// Remove deletes key.
func (t *Tier[T]) Remove(_ context.Context, key string) error {
	err := t.mc.Delete(t.key(key))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("memcache delete %q: %w", key, err)
	}
	return nil
}

// Clear flushes the memcached servers. memcached has no prefix-scoped flush,
// so the servers must be dedicated to this tier.
func (t *Tier[T]) Clear(_ context.Context) error {
	if err := t.mc.FlushAll(); err != nil {
		return fmt.Errorf("memcache flush: %w", err)
	}
	return nil
}

// Ping checks that every server is reachable.
func (t *Tier[T]) Ping(_ context.Context) error {
	return t.mc.Ping()
}

// Close closes idle connections.
func (t *Tier[T]) Close() error {
	return t.mc.Close()
}

var _ cache.Tier[int] = (*Tier[int])(nil)
