package rolecache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	roles     []string
	expiresAt time.Time
}

// MemoryCache is the in-process adapter: an LRU of bounded size with
// per-entry expiry checked on read. Suitable for single-instance
// deployments and tests; multi-instance deployments use the Redis adapter.
type MemoryCache struct {
	prefix  string
	entries *lru.Cache[string, memoryEntry]
}

// NewMemoryCache builds the adapter. size bounds the number of cached
// principals; an empty prefix falls back to DefaultKeyPrefix.
func NewMemoryCache(prefix string, size int) (*MemoryCache, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if size < 1 {
		size = 4096
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create role cache: %w", err)
	}
	return &MemoryCache{prefix: prefix, entries: entries}, nil
}

// Get returns the cached role set, dropping the entry when its TTL has
// passed. A stored empty set reports ok=true with zero roles.
func (c *MemoryCache) Get(_ context.Context, uid string) ([]string, bool, error) {
	key := c.prefix + uid
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.entries.Remove(key)
		return nil, false, nil
	}

	roles := make([]string, len(entry.roles))
	copy(roles, entry.roles)
	return roles, true, nil
}

// Put stores the role set under the prefixed uid key.
func (c *MemoryCache) Put(_ context.Context, uid string, roles []string, ttl time.Duration) error {
	stored := make([]string, len(roles))
	copy(stored, roles)
	c.entries.Add(c.prefix+uid, memoryEntry{roles: stored, expiresAt: time.Now().Add(ttl)})
	return nil
}

// Delete removes the entry; deleting a missing entry is a no-op.
func (c *MemoryCache) Delete(_ context.Context, uid string) error {
	c.entries.Remove(c.prefix + uid)
	return nil
}
