package locator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/convotest/convotest/internal/models"
)

// RedisCache is a Cache backed by Redis, for deployments where multiple API
// replicas share one agent listing. Each entry is a single JSON value with a
// server-side TTL, so expiry needs no sweeping here either.
type RedisCache struct {
	client *redis.Client
	logger *zerolog.Logger
}

func NewRedisCache(client *redis.Client, logger *zerolog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		logger: logger,
	}
}

func redisKey(principal, scope string) string {
	return fmt.Sprintf("agents:%s:%s", principal, scope)
}

func (c *RedisCache) Lookup(ctx context.Context, principal, scope string) ([]models.AgentSummary, bool, error) {
	payload, err := c.client.Get(ctx, redisKey(principal, scope)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read agent cache entry: %w", err)
	}

	var agents []models.AgentSummary
	if err := json.Unmarshal([]byte(payload), &agents); err != nil {
		// A corrupt entry is a miss; the next discovery overwrites it.
		c.logger.Warn().Err(err).Str("principal", principal).Str("scope", scope).
			Msg("Dropping undecodable agent cache entry")
		return nil, false, nil
	}

	return agents, true, nil
}

func (c *RedisCache) Store(ctx context.Context, principal, scope string, agents []models.AgentSummary, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	payload, err := json.Marshal(agents)
	if err != nil {
		return fmt.Errorf("failed to encode agent cache entry: %w", err)
	}

	if err := c.client.Set(ctx, redisKey(principal, scope), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store agent cache entry: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, principal, scope string) error {
	if err := c.client.Del(ctx, redisKey(principal, scope)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate agent cache entry: %w", err)
	}
	return nil
}
