// Package cache keeps rating summaries in Redis, cache-aside, keyed by
// restaurant id.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dishlist-workers/internal/common/database"
	"dishlist-workers/internal/common/metrics"
	"dishlist-workers/internal/models"
)

const summaryKeyPrefix = "rating:summary:"

// SummaryKey is the Redis key of a restaurant's rating summary.
func SummaryKey(restaurantID string) string {
	return summaryKeyPrefix + restaurantID
}

// SummaryCache is safe to use with a nil client: every lookup misses and
// every write is a no-op.
type SummaryCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewSummaryCache(rdb redis.Cmdable, ttl time.Duration) *SummaryCache {
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached summaries of ids and the ids that missed, in input
// order.
func (c *SummaryCache) Get(ctx context.Context, ids []string) (map[string]models.RatingSummary, []string, error) {
	found := make(map[string]models.RatingSummary, len(ids))
	if c == nil || c.rdb == nil || len(ids) == 0 {
		return found, ids, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = SummaryKey(id)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return found, ids, fmt.Errorf("redis mget summaries: %w", err)
	}

	var missed []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missed = append(missed, ids[i])
			metrics.RecordCache("rating_summary", false)
			continue
		}
		var summary models.RatingSummary
		if err := json.Unmarshal([]byte(s), &summary); err != nil {
			missed = append(missed, ids[i])
			metrics.RecordCache("rating_summary", false)
			continue
		}
		found[ids[i]] = summary
		metrics.RecordCache("rating_summary", true)
	}
	return found, missed, nil
}

// Set stores every summary with the cache TTL.
func (c *SummaryCache) Set(ctx context.Context, summaries []models.RatingSummary) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	for _, s := range summaries {
		if err := database.SetJSON(ctx, c.rdb, SummaryKey(s.RestaurantID), s, c.ttl); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate drops the cached summaries of ids.
func (c *SummaryCache) Invalidate(ctx context.Context, ids ...string) error {
	if c == nil || c.rdb == nil || len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = SummaryKey(id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del summaries: %w", err)
	}
	return nil
}
