// Package cache keeps computed dashboard statistics in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// StatsCache stores DashboardStats per organization and date range. Entries
// are invalidated by bumping a per-organization generation, so stale keys
// simply expire. A nil *StatsCache or a nil client is a no-op.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewStatsCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StatsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsCache{client: client, ttl: ttl, logger: logger}
}

func (c *StatsCache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Get returns the cached stats, or false on a miss or any Redis failure.
func (c *StatsCache) Get(ctx context.Context, orgID string, window domain.DateRange) (*domain.DashboardStats, bool) {
	if !c.enabled() {
		return nil, false
	}
	key, err := c.key(ctx, orgID, window)
	if err != nil {
		c.logger.Warn("stats cache unavailable", zap.Error(err))
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("stats cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var stats domain.DashboardStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

func (c *StatsCache) Set(ctx context.Context, orgID string, window domain.DateRange, stats *domain.DashboardStats) {
	if !c.enabled() {
		return
	}
	key, err := c.key(ctx, orgID, window)
	if err != nil {
		c.logger.Warn("stats cache unavailable", zap.Error(err))
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("stats cache write failed", zap.Error(err))
	}
}

// Invalidate drops every cached window for orgID.
func (c *StatsCache) Invalidate(ctx context.Context, orgID string) {
	if !c.enabled() {
		return
	}
	if err := c.client.Incr(ctx, generationKey(orgID)).Err(); err != nil {
		c.logger.Warn("stats cache invalidation failed", zap.Error(err), zap.String("organization_id", orgID))
	}
}

func (c *StatsCache) key(ctx context.Context, orgID string, window domain.DateRange) (string, error) {
	gen, err := c.client.Get(ctx, generationKey(orgID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return StatsKey(orgID, gen, window), nil
}

func generationKey(orgID string) string {
	return "stats:" + orgID + ":gen"
}

// StatsKey names the cache entry for one organization, generation and window.
func StatsKey(orgID string, generation int64, window domain.DateRange) string {
	return fmt.Sprintf("stats:%s:%d:%s:%s", orgID, generation, rangeBound(window.From), rangeBound(window.To))
}

func rangeBound(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("20060102")
}
