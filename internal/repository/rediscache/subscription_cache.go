package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"billing-service/internal/domain/subscription"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SubscriptionCache is a read-through cache of subscription aggregates
// in their wire JSON form. Cache failures are logged and treated as
// misses; Postgres stays the source of truth.
type SubscriptionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewSubscriptionCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SubscriptionCache {
	return &SubscriptionCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("subscription:%s", userID)
}

// Get returns the cached subscription or nil on a miss.
func (c *SubscriptionCache) Get(ctx context.Context, userID string) (*subscription.Subscription, error) {
	payload, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		c.logger.Warn("subscription cache read failed", zap.String("user_id", userID), zap.Error(err))
		return nil, nil
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(payload, &wire); err != nil {
		c.logger.Warn("corrupt cache entry dropped", zap.String("user_id", userID), zap.Error(err))
		_ = c.client.Del(ctx, cacheKey(userID)).Err()
		return nil, nil
	}

	sub, err := subscription.FromWire(wire)
	if err != nil {
		c.logger.Warn("corrupt cache entry dropped", zap.String("user_id", userID), zap.Error(err))
		_ = c.client.Del(ctx, cacheKey(userID)).Err()
		return nil, nil
	}
	return &sub, nil
}

func (c *SubscriptionCache) Set(ctx context.Context, sub subscription.Subscription) {
	payload, err := json.Marshal(sub.ToWire())
	if err != nil {
		c.logger.Warn("failed to marshal subscription for cache", zap.String("user_id", sub.UserID()), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, cacheKey(sub.UserID()), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("subscription cache write failed", zap.String("user_id", sub.UserID()), zap.Error(err))
	}
}

func (c *SubscriptionCache) Delete(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		c.logger.Warn("subscription cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
