// internal/workers/shopping/scrape-page/cache.go
package scrapepage

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"shopping-assistant/internal/common/database"
)

const cacheKeyPrefix = "scrape:"

// Cache stores scraped page text by URL. It is advisory: a miss or a
// backend error simply means the page is fetched again.
type Cache interface {
	Get(ctx context.Context, url string) (string, bool)
	Set(ctx context.Context, url, text string)
}

// RedisCache shares scraped pages across replicas.
type RedisCache struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewRedisCache(client *database.RedisClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, url string) (string, bool) {
	value, found, err := c.client.GetString(ctx, cacheKeyPrefix+url)
	if err != nil || !found {
		return "", false
	}
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, url, text string) {
	_ = c.client.SetString(ctx, cacheKeyPrefix+url, text, c.ttl)
}

// LocalCache keeps scraped pages in process memory.
type LocalCache struct {
	cache *gocache.Cache
}

func NewLocalCache(ttl time.Duration) *LocalCache {
	return &LocalCache{cache: gocache.New(ttl, 2*ttl)}
}

func (c *LocalCache) Get(_ context.Context, url string) (string, bool) {
	v, ok := c.cache.Get(url)
	if !ok {
		return "", false
	}
	text, ok := v.(string)
	return text, ok
}

func (c *LocalCache) Set(_ context.Context, url, text string) {
	c.cache.SetDefault(url, text)
}

// NewCache returns a Redis-backed cache when redis is non-nil, an in-process
// cache otherwise, and nil when ttl disables caching.
func NewCache(redis *database.RedisClient, ttl time.Duration) Cache {
	if ttl <= 0 {
		return nil
	}
	if redis != nil {
		return NewRedisCache(redis, ttl)
	}
	return NewLocalCache(ttl)
}
