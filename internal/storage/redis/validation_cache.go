package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const validationKeyPrefix = "validation:"

// ValidationCache keeps recent validation verdicts so the machine-facing
// validate endpoint does not hit Postgres on every heartbeat. Entries are
// dropped whenever the license mutates, so a short TTL is only a backstop.
type ValidationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewValidationCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ValidationCache {
	return &ValidationCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("ValidationCache"),
	}
}

func (c *ValidationCache) Get(ctx context.Context, cacheKey string) (*license.ValidationResult, bool) {
	data, err := c.client.Get(ctx, validationKeyPrefix+cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read validation cache", zap.Error(err))
		}
		return nil, false
	}

	var result license.ValidationResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("Dropping undecodable validation cache entry", zap.Error(err))
		return nil, false
	}
	return &result, true
}

func (c *ValidationCache) Set(ctx context.Context, cacheKey string, result *license.ValidationResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("Failed to encode validation result for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, validationKeyPrefix+cacheKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to write validation cache", zap.Error(err))
	}
}

// InvalidateLicenseKey removes every cached verdict for the given license
// key, regardless of the product it was validated against.
func (c *ValidationCache) InvalidateLicenseKey(ctx context.Context, licenseKey string) {
	pattern := fmt.Sprintf("%s%s|*", validationKeyPrefix, licenseKey)

	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0, 4)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("Failed to scan validation cache for invalidation", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Failed to delete validation cache entries", zap.Error(err))
	}
}
