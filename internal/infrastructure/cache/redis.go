package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hotbags/backend/internal/domain"
)

// RedisCache stores metaobject resolutions as JSON strings without expiry.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a cache from a redis:// URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get retrieves an entry, returning domain.ErrCacheMiss when the key is absent.
func (c *RedisCache) Get(ctx context.Context, shop, typeHandle, normalizedLabel string) (*domain.MetaobjectCacheEntry, error) {
	raw, err := c.client.Get(ctx, Key(shop, typeHandle, normalizedLabel)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry domain.MetaobjectCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}
	return &entry, nil
}

// Upsert writes the entry; concurrent writers to one key resolve as last write wins.
func (c *RedisCache) Upsert(ctx context.Context, entry *domain.MetaobjectCacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := c.client.Set(ctx, Key(entry.Shop, entry.TypeHandle, entry.NormalizedLabel), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
