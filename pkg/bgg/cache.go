package bgg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/meeplestash/pkg/tracing"
)

// Cache is a Redis read-through cache for catalog entries. Redis trouble is
// never fatal: a failed read is a miss and a failed write is dropped.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger ectologger.Logger
}

// NewCache creates a catalog cache over an existing Redis client
func NewCache(client *redis.Client, ttl time.Duration, logger ectologger.Logger) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(bggID int64) string {
	return fmt.Sprintf("bgg:thing:%d", bggID)
}

// Get returns the cached entry for a catalog id, if present
func (c *Cache) Get(ctx context.Context, bggID int64) (*CatalogGame, bool) {
	ctx, span := tracing.StartSpan(ctx, "bgg.Cache.Get")
	defer span.End()

	data, err := c.client.Get(ctx, cacheKey(bggID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Catalog cache read failed")
		}
		return nil, false
	}

	var game CatalogGame
	if err := json.Unmarshal(data, &game); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Catalog cache entry is corrupt, dropping it")
		c.client.Del(ctx, cacheKey(bggID))
		return nil, false
	}

	return &game, true
}

// Set stores a catalog entry with the configured TTL
func (c *Cache) Set(ctx context.Context, game *CatalogGame) {
	ctx, span := tracing.StartSpan(ctx, "bgg.Cache.Set")
	defer span.End()

	data, err := json.Marshal(game)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, cacheKey(game.BGGID), data, c.ttl).Err(); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Catalog cache write failed")
	}
}
