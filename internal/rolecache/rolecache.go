package rolecache

import (
	"context"
	"time"
)

// DefaultKeyPrefix is the cache key prefix when none is configured.
// Entries live at {prefix}{uid}.
const DefaultKeyPrefix = "auth:token:"

// Cache is the per-principal role-code cache consulted during enforcement.
// Entries are TTL-bounded (the access-token lifetime) and last-writer-wins.
// An empty role set is a valid entry and must stay distinguishable from a
// missing one: a principal with zero roles is not the same as an unknown
// principal.
type Cache interface {
	// Get returns the cached role set. ok is false when no entry exists.
	Get(ctx context.Context, uid string) (roles []string, ok bool, err error)
	Put(ctx context.Context, uid string, roles []string, ttl time.Duration) error
	Delete(ctx context.Context, uid string) error
}
