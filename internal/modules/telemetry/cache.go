package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const overviewKeyPrefix = "tripbench:telemetry:overview:"

// RedisCache stores rendered overviews for a short TTL.
type RedisCache struct {
	redis *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{redis: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.redis.Get(ctx, overviewKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.redis.Set(ctx, overviewKeyPrefix+key, value, ttl).Err()
}

func cacheKey(q Query) string {
	return fmt.Sprintf("%s|%s|%d", q.Source, q.Provider, q.WindowHours)
}
