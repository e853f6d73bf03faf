package builddishlist100

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "dishlist-workers/internal/common/errors"
	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/dishlist/store"
	"dishlist-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:         5 * time.Second,
		DefaultCitySlug: "london",
		Threshold:       8.0,
		Limit:           100,
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

type fakeStore struct {
	categories  []models.Category
	byCategory  map[string][]models.Restaurant
	ratings     map[string][]models.Rating
	ratingsErr  error
	ratingCalls int
	requested   []string
}

func (f *fakeStore) CityBySlug(_ context.Context, slug string) (*models.City, error) {
	if slug != "london" {
		return nil, fmt.Errorf("city %q: %w", slug, store.ErrNotFound)
	}
	return &models.City{ID: "city-1", Name: "London", Slug: "london"}, nil
}

func (f *fakeStore) Categories(context.Context) ([]models.Category, error) {
	return f.categories, nil
}

func (f *fakeStore) CategoryRestaurants(_ context.Context, _, categoryID string) ([]models.Restaurant, error) {
	return f.byCategory[categoryID], nil
}

func (f *fakeStore) RatingsForRestaurants(_ context.Context, ids []string) (map[string][]models.Rating, error) {
	f.ratingCalls++
	f.requested = ids
	if f.ratingsErr != nil {
		return nil, f.ratingsErr
	}
	return f.ratings, nil
}

func scores(values ...float64) []models.Rating {
	out := make([]models.Rating, len(values))
	for i, v := range values {
		out[i] = models.Rating{Score: v}
	}
	return out
}

func londonStore() *fakeStore {
	fiveGuys := models.Restaurant{ID: "fiveguys", Name: "Five Guys"}
	return &fakeStore{
		categories: []models.Category{
			{ID: "burgers", Slug: "burgers"},
			{ID: "pizza", Slug: "pizza"},
			{ID: "ramen", Slug: "ramen"},
		},
		byCategory: map[string][]models.Restaurant{
			"burgers": {
				{ID: "bleecker", Name: "Bleecker"},
				fiveGuys,
				{ID: "mcd", Name: "McDonald's"},
			},
			"pizza": {
				{ID: "pilgrims", Name: "Pizza Pilgrims"},
				fiveGuys,
				{ID: "edge", Name: "Edge Case"},
				{ID: "new", Name: "Unrated Newcomer"},
			},
		},
		ratings: map[string][]models.Rating{
			"bleecker": scores(9.5, 9),
			"fiveguys": scores(9, 8.6),
			"mcd":      scores(6),
			"pilgrims": scores(9.6),
			"edge":     scores(8),
		},
	}
}

func ids(rows []models.RestaurantSummary) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.RestaurantID
	}
	return out
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_BuildsTopList(t *testing.T) {
	st := londonStore()
	h := NewHandler(createTestConfig(), st, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, "london", out.City.Slug)
	assert.Equal(t, 3, out.Categories)
	assert.Equal(t, 6, out.Candidates)
	assert.Equal(t, 8.0, out.Threshold)

	assert.Equal(t, []string{"pilgrims", "bleecker", "fiveguys", "edge"}, ids(out.Entries))
	for i, e := range out.Entries {
		assert.Equal(t, i+1, e.Rank)
	}

	assert.Equal(t, 1, st.ratingCalls)
	assert.Equal(t, []string{"bleecker", "fiveguys", "mcd", "pilgrims", "edge", "new"}, st.requested)
}

func TestHandler_Execute_Limit(t *testing.T) {
	cfg := createTestConfig()
	cfg.Limit = 2
	h := NewHandler(cfg, londonStore(), createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{CitySlug: "london"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pilgrims", "bleecker"}, ids(out.Entries))
}

func TestHandler_Execute_NothingQualifies(t *testing.T) {
	st := londonStore()
	st.ratings = map[string][]models.Rating{"mcd": scores(6)}
	h := NewHandler(createTestConfig(), st, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.NotNil(t, out.Entries)
	assert.Empty(t, out.Entries)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	t.Run("unknown city", func(t *testing.T) {
		h := NewHandler(createTestConfig(), londonStore(), createTestLogger(t))
		input := &Input{CitySlug: "paris"}

		_, err := h.Execute(context.Background(), input)
		assert.ErrorIs(t, err, ErrCityNotFound)
		assert.Equal(t, apperrors.ErrCodeCityNotFound, apperrors.AsStandardError(h.toStandardError(input, err)).Code)
	})

	t.Run("ratings query fails", func(t *testing.T) {
		st := londonStore()
		st.ratingsErr = errors.New("too many connections")
		h := NewHandler(createTestConfig(), st, createTestLogger(t))
		input := &Input{}

		_, err := h.Execute(context.Background(), input)
		assert.ErrorIs(t, err, ErrQueryExecutionFailed)
		assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.AsStandardError(h.toStandardError(input, err)).Code)
	})
}
