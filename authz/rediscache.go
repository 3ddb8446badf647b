package authz

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a networked TTL cache for Check results, shared across
// process instances of the same tenant's runtime. Grounded on the teacher's
// TTL-cache shape (_examples/goadesign-goa-ai/runtime/registry/cache.go);
// enforces MaxCacheTTL regardless of the ttl passed in, per §4.3.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache constructs a RedisCache. ttl is clamped to (0, MaxCacheTTL],
// defaulting to MaxCacheTTL when zero or negative.
func NewRedisCache(rdb *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 || ttl > MaxCacheTTL {
		ttl = MaxCacheTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *RedisCache) cacheKey(actor string, relation Relation, object Object) string {
	return c.prefix + actor + "|" + string(relation) + "|" + object.key()
}

// Get implements Cache.
func (c *RedisCache) Get(actor string, relation Relation, object Object) (bool, bool) {
	ctx := context.Background()
	v, err := c.rdb.Get(ctx, c.cacheKey(actor, relation, object)).Result()
	if err != nil {
		return false, false
	}
	allowed, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return allowed, true
}

// Set implements Cache. Cache-write failures are swallowed: a cache miss on
// the next call simply re-checks against the backend.
func (c *RedisCache) Set(actor string, relation Relation, object Object, allowed bool) {
	ctx := context.Background()
	_ = c.rdb.Set(ctx, c.cacheKey(actor, relation, object), strconv.FormatBool(allowed), c.ttl).Err()
}
