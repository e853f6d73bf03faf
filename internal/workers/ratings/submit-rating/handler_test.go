package submitrating

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "dishlist-workers/internal/common/errors"
	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/dishlist/cache"
	"dishlist-workers/internal/dishlist/store"
	"dishlist-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, MaxReviewLength: 50}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

// fakeStore keeps one rating per (user, restaurant), like the unique index.
type fakeStore struct {
	restaurants map[string]bool
	ratings     map[string][]models.Rating
	upsertErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		restaurants: map[string]bool{"r1": true},
		ratings: map[string][]models.Rating{
			"r1": {{ID: "seed", RestaurantID: "r1", Score: 8, SourceTag: "google"}},
		},
	}
}

func (f *fakeStore) Restaurant(_ context.Context, id string) (*models.Restaurant, error) {
	if !f.restaurants[id] {
		return nil, fmt.Errorf("restaurant %s: %w", id, store.ErrNotFound)
	}
	return &models.Restaurant{ID: id}, nil
}

func (f *fakeStore) UpsertUserRating(_ context.Context, r models.Rating) (models.Rating, error) {
	if f.upsertErr != nil {
		return models.Rating{}, f.upsertErr
	}
	r.SourceTag = models.SourceUser
	rs := f.ratings[r.RestaurantID]
	for i, existing := range rs {
		if existing.UserID != nil && *existing.UserID == *r.UserID {
			r.ID = existing.ID
			rs[i] = r
			return r, nil
		}
	}
	r.ID = fmt.Sprintf("rating-%d", len(rs))
	f.ratings[r.RestaurantID] = append(rs, r)
	return r, nil
}

func (f *fakeStore) RestaurantRatings(_ context.Context, id string) ([]models.Rating, error) {
	return f.ratings[id], nil
}

func score(v float64) *float64 { return &v }

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_StoresAndSummarises(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set(cache.SummaryKey("r1"), `{"restaurantId":"r1","averageRating":8,"ratingCount":1}`))
	summaries := cache.NewSummaryCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	st := newFakeStore()
	h := NewHandler(createTestConfig(), st, summaries, createTestLogger(t))

	review := "Smash patties done right"
	out, err := h.Execute(context.Background(), &Input{UserID: "u1", RestaurantID: "r1", Score: score(10), ReviewText: &review})
	require.NoError(t, err)

	assert.Equal(t, models.SourceUser, out.Rating.SourceTag)
	assert.Equal(t, "u1", *out.Rating.UserID)
	assert.Equal(t, models.RatingSummary{RestaurantID: "r1", AverageRating: 9, RatingCount: 2}, out.Summary)
	assert.False(t, mr.Exists(cache.SummaryKey("r1")))
}

func TestHandler_Execute_ResubmissionReplacesScore(t *testing.T) {
	h := NewHandler(createTestConfig(), newFakeStore(), nil, createTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{UserID: "u1", RestaurantID: "r1", Score: score(10)})
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), &Input{UserID: "u1", RestaurantID: "r1", Score: score(6)})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Summary.RatingCount)
	assert.Equal(t, 7.0, out.Summary.AverageRating)
}

func TestHandler_Execute_ScoreBounds(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		ok    bool
	}{
		{name: "zero", score: 0, ok: true},
		{name: "ten", score: 10, ok: true},
		{name: "fractional", score: 7.5, ok: true},
		{name: "negative", score: -0.1, ok: false},
		{name: "above ten", score: 10.01, ok: false},
		{name: "nan", score: math.NaN(), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(createTestConfig(), newFakeStore(), nil, createTestLogger(t))

			_, err := h.Execute(context.Background(), &Input{UserID: "u1", RestaurantID: "r1", Score: score(tt.score)})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidScore)
		})
	}
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	long := strings.Repeat("x", 51)

	tests := []struct {
		name     string
		store    *fakeStore
		input    *Input
		sentinel error
		code     apperrors.ErrorCode
	}{
		{
			name:     "missing user",
			store:    newFakeStore(),
			input:    &Input{RestaurantID: "r1", Score: score(5)},
			sentinel: ErrInvalidInput,
			code:     apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "missing score",
			store:    newFakeStore(),
			input:    &Input{UserID: "u1", RestaurantID: "r1"},
			sentinel: ErrInvalidInput,
			code:     apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "review too long",
			store:    newFakeStore(),
			input:    &Input{UserID: "u1", RestaurantID: "r1", Score: score(5), ReviewText: &long},
			sentinel: ErrInvalidInput,
			code:     apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "score out of range",
			store:    newFakeStore(),
			input:    &Input{UserID: "u1", RestaurantID: "r1", Score: score(11)},
			sentinel: ErrInvalidScore,
			code:     apperrors.ErrCodeInvalidScore,
		},
		{
			name:     "unknown restaurant",
			store:    newFakeStore(),
			input:    &Input{UserID: "u1", RestaurantID: "nope", Score: score(5)},
			sentinel: ErrRestaurantNotFound,
			code:     apperrors.ErrCodeRestaurantNotFound,
		},
		{
			name:     "insert failure",
			store:    &fakeStore{restaurants: map[string]bool{"r1": true}, upsertErr: errors.New("deadlock detected")},
			input:    &Input{UserID: "u1", RestaurantID: "r1", Score: score(5)},
			sentinel: ErrDatabaseInsertFailed,
			code:     apperrors.ErrCodeDatabaseInsertFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(createTestConfig(), tt.store, nil, createTestLogger(t))

			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.code, apperrors.AsStandardError(toStandardError(tt.input, err)).Code)
		})
	}
}
