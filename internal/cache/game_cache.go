// Package cache holds the Redis read-through projection of game records.
// The cache is advisory only: transitions always work from the store, and a
// cache failure degrades to a store read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guesswho-server/internal/interfaces"
	"guesswho-server/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ interfaces.GameCache = (*redisGameCache)(nil)

type redisGameCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisGameCache creates a Redis-backed GameCache with the given TTL.
func NewRedisGameCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) interfaces.GameCache {
	return &redisGameCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisGameCache"),
	}
}

func gameKey(gameID uuid.UUID) string {
	return fmt.Sprintf("game:%s", gameID)
}

// Get returns the cached game or models.ErrNotFound on a miss.
func (c *redisGameCache) Get(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	key := gameKey(gameID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.logger.Debug("Cache miss", zap.Stringer("gameID", gameID))
			return nil, models.ErrNotFound
		}
		c.logger.Error("Failed to read game from cache", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to read game from cache: %w", err)
	}

	game := &models.Game{}
	if err := json.Unmarshal(data, game); err != nil {
		// Corrupted entry; drop it so the next read repopulates.
		c.logger.Warn("Dropping corrupted cache entry", zap.String("key", key), zap.Error(err))
		c.client.Del(ctx, key)
		return nil, models.ErrNotFound
	}
	c.logger.Debug("Cache hit", zap.Stringer("gameID", gameID))
	return game, nil
}

func (c *redisGameCache) Set(ctx context.Context, game *models.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game for cache: %w", err)
	}
	key := gameKey(game.ID)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("Failed to write game to cache", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to write game to cache: %w", err)
	}
	c.logger.Debug("Game cached", zap.Stringer("gameID", game.ID), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *redisGameCache) Invalidate(ctx context.Context, gameID uuid.UUID) error {
	key := gameKey(gameID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error("Failed to invalidate cached game", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to invalidate cached game: %w", err)
	}
	c.logger.Debug("Cache invalidated", zap.Stringer("gameID", gameID))
	return nil
}
