package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache wraps go-redis v9 as the shared geocode cache.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache connects to Redis and verifies connectivity with a ping.
// Returns the connection error so the caller can fall back to memory.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	logger.Printf("✅ Redis connected: %s db=%d", addr, db)
	return &RedisCache{rdb: rdb}, nil
}

// Get returns the cached value for key. Misses and transport errors both
// read as absent; the caller re-resolves either way.
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Printf("⚠️ redis get %s: %v", key, err)
		}
		return "", false
	}
	return val, true
}

// Set stores value under key with the given TTL. Write failures are logged
// and swallowed: the cache is advisory.
func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		logger.Printf("⚠️ redis set %s: %v", key, err)
	}
}

// Close shuts down the underlying redis client.
func (r *RedisCache) Close() error {
	return r.rdb.Close()
}
