package rolecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache shares role sets across instances. Values are JSON arrays of
// role codes; an empty set is stored as "[]", which keeps it distinguishable
// from a missing key. Expiry is delegated to Redis TTLs.
type RedisCache struct {
	prefix string
	client *redis.Client
}

// NewRedisCache connects to the given redis:// URL and pings it so a
// misconfigured cache fails at startup rather than on the first login.
func NewRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse role cache url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping role cache: %w", err)
	}
	return &RedisCache{prefix: prefix, client: client}, nil
}

// NewRedisCacheWithClient wraps an existing client; used by tests.
func NewRedisCacheWithClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisCache{prefix: prefix, client: client}
}

// Get returns the cached role set; a missing key reports ok=false.
func (c *RedisCache) Get(ctx context.Context, uid string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+uid).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get role cache entry: %w", err)
	}

	var roles []string
	if err := json.Unmarshal([]byte(raw), &roles); err != nil {
		return nil, false, fmt.Errorf("decode role cache entry: %w", err)
	}
	if roles == nil {
		roles = []string{}
	}
	return roles, true, nil
}

// Put stores the role set with the given TTL.
func (c *RedisCache) Put(ctx context.Context, uid string, roles []string, ttl time.Duration) error {
	if roles == nil {
		roles = []string{}
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		return fmt.Errorf("encode role cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+uid, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set role cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry; deleting a missing key is a no-op.
func (c *RedisCache) Delete(ctx context.Context, uid string) error {
	if err := c.client.Del(ctx, c.prefix+uid).Err(); err != nil {
		return fmt.Errorf("delete role cache entry: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
