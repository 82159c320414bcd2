package cache

import (
	"context"
	"time"

	"github.com/go-redis/cache/v8"
	goredis "github.com/go-redis/redis/v8"

	"github.com/bnbbuilders/tbnb-faucet/internal/redis"
)

type redisCache struct {
	client *goredis.Client
	redis  *cache.Cache
}

// NewRedisCache returns a new cache based on Redis
func NewRedisCache(client *goredis.Client) Cache {
	myc := cache.New(&cache.Options{Redis: client})
	return &redisCache{client: client, redis: myc}
}

// Set sets a new entry in redis cache
func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	item := &cache.Item{
		Ctx:            ctx,
		Key:            key,
		Value:          value,
		TTL:            ttl,
		SkipLocalCache: true,
	}
	return c.redis.Set(item)
}

// Get returns an entry from redis and a boolean telling if the key has been found in redis
// value must be passed as reference as the cached value will be stored there
func (c *redisCache) Get(ctx context.Context, key string, value any) bool {
	return c.redis.Get(ctx, key, value) == nil
}

// Exists returns true if the key exists in redis
func (c *redisCache) Exists(ctx context.Context, key string) bool {
	return c.redis.Exists(ctx, key)
}

// Delete removes an entry from redis
func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.redis.Delete(ctx, key)
}

func (c *redisCache) Ping(ctx context.Context) error {
	return redis.Status(ctx, c.client)
}
