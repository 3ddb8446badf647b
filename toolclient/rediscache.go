package toolclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyCache is a networked IdempotencyCache backed by Redis, so
// idempotency holds across process restarts and across the multiple runtime
// instances that may serve the same tenant (§4.4).
type RedisIdempotencyCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisIdempotencyCache constructs a RedisIdempotencyCache.
func NewRedisIdempotencyCache(rdb *redis.Client, prefix string) *RedisIdempotencyCache {
	return &RedisIdempotencyCache{rdb: rdb, prefix: prefix}
}

func (c *RedisIdempotencyCache) respKey(key string) string   { return c.prefix + "resp:" + key }
func (c *RedisIdempotencyCache) flightKey(key string) string { return c.prefix + "flight:" + key }

// Get implements IdempotencyCache.
func (c *RedisIdempotencyCache) Get(ctx context.Context, key string) (Response, bool) {
	raw, err := c.rdb.Get(ctx, c.respKey(key)).Bytes()
	if err != nil {
		return Response{}, false
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, false
	}
	return resp, true
}

// Set implements IdempotencyCache.
func (c *RedisIdempotencyCache) Set(ctx context.Context, key string, resp Response, ttl time.Duration) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.respKey(key), raw, ttl).Err()
}

// Reserve implements IdempotencyCache using SETNX, so concurrent callers
// across processes single-flight onto the first one holding the lock.
func (c *RedisIdempotencyCache) Reserve(ctx context.Context, key string) bool {
	ok, err := c.rdb.SetNX(ctx, c.flightKey(key), "1", 30*time.Second).Result()
	if err != nil {
		return false
	}
	return ok
}

// Release implements IdempotencyCache.
func (c *RedisIdempotencyCache) Release(ctx context.Context, key string) {
	_ = c.rdb.Del(ctx, c.flightKey(key)).Err()
}
