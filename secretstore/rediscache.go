package secretstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a read-through cache for secret values backed by Redis,
// bounding staleness with a short TTL (default 30s per SPEC_FULL §4.2).
// Grounded on the teacher's TTL-cache shape
// (_examples/goadesign-goa-ai/runtime/registry/cache.go), swapping the
// in-process map for a networked store shared across process instances of
// the same tenant's runtime.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache constructs a RedisCache. ttl defaults to 30s when zero.
func NewRedisCache(rdb *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key, value string) {
	// Best-effort: a cache-write failure must not fail the caller's request,
	// matching §4.7's "non-fatal on save" posture for ephemeral state.
	_ = c.rdb.Set(ctx, c.prefix+key, value, c.ttl).Err()
}
