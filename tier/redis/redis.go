// Package redis provides a Redis-backed cache tier. Items are stored as
// codec envelopes under a key prefix and expire natively through Redis TTLs.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Keksclan/layercache/cache"
	"github.com/Keksclan/layercache/codec"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is used when Config.Prefix is empty. Clear only removes keys
// carrying the tier's prefix.
const DefaultPrefix = "layercache:"

// scanBatch is the COUNT hint passed to SCAN during Clear.
const scanBatch = 256

// Config holds the tier parameters.
type Config[T any] struct {
	// Name labels the tier in events. Defaults to "redis".
	Name string

	// Prefix namespaces every key written by the tier.
	Prefix string

	// Codec serialises values. Defaults to codec.JSON[T].
	Codec codec.Codec[T]
}

// Tier is a Redis-backed tier. Errors from Redis are returned to the caller;
// the Layered cache treats a failed Get as a miss.
type Tier[T any] struct {
	rdb     redis.UniversalClient
	name    string
	prefix  string
	codec   codec.Codec[T]
	nowFunc func() time.Time
}

// New creates a tier on top of an existing client. The client is not closed
// by the tier.
func New[T any](rdb redis.UniversalClient, cfg Config[T]) *Tier[T] {
	if cfg.Name == "" {
		cfg.Name = "redis"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.JSON[T]{}
	}
	return &Tier[T]{
		rdb:     rdb,
		name:    cfg.Name,
		prefix:  cfg.Prefix,
		codec:   cfg.Codec,
		nowFunc: time.Now,
	}
}

// NewClient creates a go-redis client for addr.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Name returns the configured label.
func (t *Tier[T]) Name() string { return t.name }

func (t *Tier[T]) key(k string) string { return t.prefix + k }

// Get retrieves and decodes the item stored under key. A missing key returns
// (zero, false, nil).
func (t *Tier[T]) Get(ctx context.Context, key string) (cache.Item[T], bool, error) {
	data, err := t.rdb.Get(ctx, t.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cache.Item[T]{}, false, nil
		}
		return cache.Item[T]{}, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	item, err := codec.DecodeItem(t.codec, data)
	if err != nil {
		return cache.Item[T]{}, false, fmt.Errorf("redis decode %q: %w", key, err)
	}
	return item, true, nil
}

// Add stores item under key with a TTL derived from its expiry. An item that
// already expired deletes the key instead.
func (t *Tier[T]) Add(ctx context.Context, key string, item cache.Item[T]) error {
	var ttl time.Duration
	if !item.NeverExpires() {
		ttl = item.TTL(t.nowFunc())
		if ttl <= 0 {
			return t.Remove(ctx, key)
		}
	}

	data, err := codec.EncodeItem(t.codec, item)
	if err != nil {
		return fmt.Errorf("redis encode %q: %w", key, err)
	}
	if err := t.rdb.Set(ctx, t.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (t *Tier[T]) Remove(ctx context.Context, key string) error {
	if err := t.rdb.Del(ctx, t.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// globEscaper quotes the characters SCAN MATCH treats as pattern syntax.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }

// Clear deletes every key carrying the tier's prefix.
func (t *Tier[T]) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := t.rdb.Scan(ctx, cursor, escapeGlob(t.prefix)+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := t.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Ping checks the Redis connection.
func (t *Tier[T]) Ping(ctx context.Context) error {
	return t.rdb.Ping(ctx).Err()
}

var _ cache.Tier[int] = (*Tier[int])(nil)
