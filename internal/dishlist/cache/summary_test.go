package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dishlist-workers/internal/models"
)

func TestSummaryCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewSummaryCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, []models.RatingSummary{
		{RestaurantID: "a", AverageRating: 8.5, RatingCount: 2},
	}))

	found, missed, err := c.Get(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, missed)
	assert.Equal(t, 8.5, found["a"].AverageRating)
	assert.Equal(t, 2, found["a"].RatingCount)

	ttl := mr.TTL(SummaryKey("a"))
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	require.NoError(t, c.Invalidate(ctx, "a"))
	assert.False(t, mr.Exists(SummaryKey("a")))
}

func TestSummaryCache_CorruptEntryMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set(SummaryKey("a"), "not json"))
	c := NewSummaryCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	found, missed, err := c.Get(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Equal(t, []string{"a"}, missed)
}

func TestSummaryCache_RedisDown(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectMGet(SummaryKey("a"), SummaryKey("b")).SetErr(errors.New("connection refused"))

	c := NewSummaryCache(rdb, time.Minute)
	found, missed, err := c.Get(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Empty(t, found)
	assert.Equal(t, []string{"a", "b"}, missed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryCache_NilClient(t *testing.T) {
	c := NewSummaryCache(nil, time.Minute)
	ctx := context.Background()

	found, missed, err := c.Get(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Equal(t, []string{"a"}, missed)
	assert.NoError(t, c.Set(ctx, []models.RatingSummary{{RestaurantID: "a"}}))
	assert.NoError(t, c.Invalidate(ctx, "a"))
}
