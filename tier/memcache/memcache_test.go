package memcache

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Keksclan/layercache/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_PassesValidKeysThrough(t *testing.T) {
	tier := New(Config[string]{Prefix: "app:"}, "127.0.0.1:1")
	assert.Equal(t, "app:user:42", tier.key("user:42"))
}

func TestKey_HashesInvalidKeys(t *testing.T) {
	tier := New(Config[string]{Prefix: "app:"}, "127.0.0.1:1")

	long := strings.Repeat("k", 300)
	for _, k := range []string{long, "has space", "tab\tkey", ""} {
		got := tier.key(k)
		assert.True(t, strings.HasPrefix(got, "app:h:"), "key %q mapped to %q", k, got)
		assert.LessOrEqual(t, len(got), maxKeyLen)
		assert.True(t, validKey(got))
	}

	// Stable and distinct.
	assert.Equal(t, tier.key("has space"), tier.key("has space"))
	assert.NotEqual(t, tier.key("has space"), tier.key("has  space"))
}

func TestExpiration(t *testing.T) {
	at := time.Unix(1_900_000_000, 0)
	assert.EqualValues(t, 1_900_000_000, expiration(at))
	assert.EqualValues(t, 1_900_000_001, expiration(at.Add(time.Millisecond)))
	assert.EqualValues(t, 0, expiration(cache.NoExpiry))
}

func liveMemcache(t *testing.T) *Tier[string] {
	t.Helper()
	addr := os.Getenv("MEMCACHE_ADDR")
	if addr == "" {
		t.Skip("MEMCACHE_ADDR not set, skipping memcached integration test")
	}
	tier := New(Config[string]{Prefix: "layercache:test:"}, addr)
	require.NoError(t, tier.Ping(t.Context()))
	t.Cleanup(func() { _ = tier.Close() })
	return tier
}

func TestLive_GetAddRemove(t *testing.T) {
	tier := liveMemcache(t)
	ctx := t.Context()

	_, ok, err := tier.Get(ctx, t.Name())
	require.NoError(t, err)
	assert.False(t, ok)

	exp := time.Now().Add(time.Minute)
	require.NoError(t, tier.Add(ctx, t.Name(), cache.NewItem("v", exp)))

	it, ok, err := tier.Get(ctx, t.Name())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", it.Value)
	assert.True(t, exp.Equal(it.ExpiresAt))

	require.NoError(t, tier.Remove(ctx, t.Name()))
	require.NoError(t, tier.Remove(ctx, t.Name()))
	_, ok, _ = tier.Get(ctx, t.Name())
	assert.False(t, ok)
}
