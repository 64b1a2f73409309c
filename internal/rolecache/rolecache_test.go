package rolecache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// both adapters must satisfy the same contract; run the shared suite
// against each.
func runCacheSuite(t *testing.T, cache Cache) {
	ctx := context.Background()

	t.Run("missing entry", func(t *testing.T) {
		roles, ok, err := cache.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, roles)
	})

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, "42", []string{"admin", "editor"}, time.Minute))

		roles, ok, err := cache.Get(ctx, "42")
		require.NoError(t, err)
		require.True(t, ok)
		assert.ElementsMatch(t, []string{"admin", "editor"}, roles)
	})

	t.Run("empty set is distinguishable from missing", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, "zero-roles", []string{}, time.Minute))

		roles, ok, err := cache.Get(ctx, "zero-roles")
		require.NoError(t, err)
		assert.True(t, ok, "entry exists")
		assert.Empty(t, roles)
	})

	t.Run("last writer wins", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, "7", []string{"viewer"}, time.Minute))
		require.NoError(t, cache.Put(ctx, "7", []string{"admin"}, time.Minute))

		roles, ok, err := cache.Get(ctx, "7")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []string{"admin"}, roles)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, "9", []string{"admin"}, time.Minute))
		require.NoError(t, cache.Delete(ctx, "9"))

		_, ok, err := cache.Get(ctx, "9")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, cache.Delete(ctx, "9"))
	})
}

func TestMemoryCache(t *testing.T) {
	cache, err := NewMemoryCache("auth:token:", 16)
	require.NoError(t, err)
	runCacheSuite(t, cache)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache, err := NewMemoryCache("", 16)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "42", []string{"admin"}, 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, ok, err := cache.Get(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok, "expired entries read as missing")
}

func TestRedisCache(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	runCacheSuite(t, NewRedisCacheWithClient(client, "auth:token:"))
}

func TestRedisCacheExpiry(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCacheWithClient(client, "")
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "42", []string{"admin"}, time.Second))

	// miniredis advances TTLs manually.
	srv.FastForward(2 * time.Second)

	_, ok, err := cache.Get(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheKeyPrefix(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCacheWithClient(client, "auth:token:")
	require.NoError(t, cache.Put(context.Background(), "42", []string{"admin"}, time.Minute))

	assert.True(t, srv.Exists("auth:token:42"), "entries live under the configured prefix")
}
