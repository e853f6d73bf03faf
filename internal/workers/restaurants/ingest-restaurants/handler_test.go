package ingestrestaurants

import (
	"context"
	"errors"
	"fmt"
	"sync"
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
	"dishlist-workers/internal/dishlist/chains"
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
		IndexName:       "restaurants",
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

type fakeStore struct {
	mu       sync.Mutex
	existing map[string]*chains.EntityHandle
	failOn   map[string]error
	lookErr  error
	saved    []chains.Result
}

func (f *fakeStore) CityBySlug(_ context.Context, slug string) (*models.City, error) {
	if f.lookErr != nil {
		return nil, f.lookErr
	}
	if slug != "london" {
		return nil, fmt.Errorf("city %q: %w", slug, store.ErrNotFound)
	}
	return &models.City{ID: "city-1", Name: "London", Slug: "london"}, nil
}

func (f *fakeStore) CategoryBySlug(_ context.Context, slug string) (*models.Category, error) {
	if slug != "burgers" {
		return nil, fmt.Errorf("category %q: %w", slug, store.ErrNotFound)
	}
	return &models.Category{ID: "cat-1", Name: "Burgers", Slug: "burgers"}, nil
}

func (f *fakeStore) Finder(string) chains.EntityFinder { return f }

func (f *fakeStore) FindExisting(_ context.Context, name string) (*chains.EntityHandle, error) {
	return f.existing[name], nil
}

func (f *fakeStore) SaveResult(_ context.Context, cityID, categoryID string, res chains.Result) (store.Saved, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failOn[res.Entity.Name]; err != nil {
		return store.Saved{}, err
	}
	f.saved = append(f.saved, res)

	if !res.Created {
		return store.Saved{RestaurantID: res.ExistingID, LocationsAdded: len(res.Entity.Locations)}, nil
	}
	return store.Saved{
		RestaurantID:   "r-" + res.Entity.Name,
		Created:        true,
		LocationsAdded: len(res.Entity.Locations),
		SeedsInserted:  len(res.SeedRatings),
	}, nil
}

func (f *fakeStore) Restaurant(_ context.Context, id string) (*models.Restaurant, error) {
	return &models.Restaurant{ID: id, Name: id, CityID: "city-1"}, nil
}

func (f *fakeStore) RestaurantLocations(context.Context, string) ([]models.Location, error) {
	return nil, nil
}

func (f *fakeStore) RestaurantCategories(context.Context, string) ([]models.Category, error) {
	return []models.Category{{ID: "cat-1", Slug: "burgers"}}, nil
}

func (f *fakeStore) RestaurantRatings(context.Context, string) ([]models.Rating, error) {
	return []models.Rating{{Score: 8}}, nil
}

type fakeIndexer struct {
	docs []models.RestaurantDocument
	err  error
}

func (f *fakeIndexer) IndexRestaurant(_ context.Context, index string, doc models.RestaurantDocument) error {
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, doc)
	return nil
}

func rated(name string, stars float64) models.PlaceRecord {
	return models.PlaceRecord{Name: name, RatingValue: &stars}
}

func burgerBatch() []models.PlaceRecord {
	return []models.PlaceRecord{
		rated("Five Guys Soho", 4.5),
		rated("Mildreds", 4.0),
		rated("Five Guys Camden", 3.5),
		rated("Byron Brixton", 4.0),
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_IngestsBatch(t *testing.T) {
	mr := miniredis.RunT(t)
	summaries := cache.NewSummaryCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	require.NoError(t, mr.Set(cache.SummaryKey("r-byron"), `{"restaurantId":"r-byron","averageRating":5}`))

	st := &fakeStore{existing: map[string]*chains.EntityHandle{
		"Byron": {ID: "r-byron", Name: "Byron", Neighbourhood: "Covent Garden", LocationCount: 1},
	}}
	idx := &fakeIndexer{}
	h := NewHandler(createTestConfig(), chains.NewConsolidator(chains.DefaultConfig()), st, idx, summaries, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		RunID:        "run-1",
		CategorySlug: "burgers",
		Restaurants:  burgerBatch(),
	})
	require.NoError(t, err)

	report := out.Report
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "london", report.CitySlug)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
	assert.Equal(t, 3, out.Succeeded)
	assert.Equal(t, 0, out.Failed)

	require.Len(t, report.Results, 3)
	assert.Equal(t, models.IngestResult{
		Name: "Five Guys", RestaurantID: "r-Five Guys", Success: true, Created: true, Locations: 2,
		Note: "chain created with 2 locations",
	}, report.Results[0])
	assert.Equal(t, models.IngestResult{
		Name: "Mildreds", RestaurantID: "r-Mildreds", Success: true, Created: true,
	}, report.Results[1])
	assert.Equal(t, models.IngestResult{
		Name: "Byron", RestaurantID: "r-byron", Success: true, Locations: 1,
		Note: "added 1 location to existing chain",
	}, report.Results[2])

	require.Len(t, st.saved, 3)
	require.NotNil(t, st.saved[0].Entity.Address)
	assert.Equal(t, "2 locations across London", *st.saved[0].Entity.Address)
	assert.Len(t, st.saved[0].SeedRatings, 2)
	assert.Nil(t, st.saved[2].Entity.Address)

	assert.False(t, mr.Exists(cache.SummaryKey("r-byron")))

	require.Len(t, idx.docs, 3)
	assert.Equal(t, "london", idx.docs[0].City)
	assert.Equal(t, []string{"burgers"}, idx.docs[0].Categories)
}

func TestHandler_Execute_RowFailuresAreReported(t *testing.T) {
	st := &fakeStore{failOn: map[string]error{"Mildreds": errors.New("unique violation")}}
	h := NewHandler(createTestConfig(), chains.NewConsolidator(chains.DefaultConfig()), st, nil, nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{CategorySlug: "burgers", Restaurants: burgerBatch()})
	require.NoError(t, err)

	assert.NotEmpty(t, out.Report.RunID)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)

	failed := out.Report.Results[1]
	assert.Equal(t, "Mildreds", failed.Name)
	assert.False(t, failed.Success)
	assert.Equal(t, "unique violation", failed.Error)
	assert.Empty(t, failed.RestaurantID)
}

func TestHandler_Execute_EmptyNameIsAFailedRow(t *testing.T) {
	st := &fakeStore{}
	h := NewHandler(createTestConfig(), chains.NewConsolidator(chains.DefaultConfig()), st, nil, nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		CategorySlug: "burgers",
		Restaurants:  []models.PlaceRecord{rated("  ", 4.0), rated("Mildreds", 4.0)},
	})
	require.NoError(t, err)

	require.Len(t, out.Report.Results, 2)
	assert.False(t, out.Report.Results[0].Success)
	assert.Equal(t, "restaurant name is empty", out.Report.Results[0].Error)
	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, st.saved, 1)
	assert.Equal(t, "Mildreds", st.saved[0].Entity.Name)
}

func TestHandler_Execute_IndexFailureIsNotFatal(t *testing.T) {
	st := &fakeStore{}
	idx := &fakeIndexer{err: errors.New("es unavailable")}
	h := NewHandler(createTestConfig(), chains.NewConsolidator(chains.DefaultConfig()), st, idx, nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{CategorySlug: "burgers", Restaurants: burgerBatch()[:2]})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Succeeded)
}

func TestHandler_Execute_EmptyBatch(t *testing.T) {
	h := NewHandler(createTestConfig(), chains.NewConsolidator(chains.DefaultConfig()), &fakeStore{}, nil, nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{CategorySlug: "burgers"})
	require.NoError(t, err)
	assert.Empty(t, out.Report.Results)
	assert.Zero(t, out.Succeeded)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		store    *fakeStore
		input    *Input
		sentinel error
		code     apperrors.ErrorCode
	}{
		{
			name:     "missing category",
			store:    &fakeStore{},
			input:    &Input{Restaurants: burgerBatch()},
			sentinel: ErrInvalidInput,
			code:     apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "unknown city",
			store:    &fakeStore{},
			input:    &Input{CitySlug: "paris", CategorySlug: "burgers"},
			sentinel: ErrCityNotFound,
			code:     apperrors.ErrCodeCityNotFound,
		},
		{
			name:     "unknown category",
			store:    &fakeStore{},
			input:    &Input{CategorySlug: "tacos"},
			sentinel: ErrCategoryNotFound,
			code:     apperrors.ErrCodeCategoryNotFound,
		},
		{
			name:     "database down",
			store:    &fakeStore{lookErr: errors.New("connection refused")},
			input:    &Input{CategorySlug: "burgers"},
			sentinel: ErrDatabaseFailure,
			code:     apperrors.ErrCodeDatabaseConnectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(createTestConfig(), chains.NewConsolidator(chains.DefaultConfig()), tt.store, nil, nil, createTestLogger(t))

			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			stdErr := apperrors.AsStandardError(h.toStandardError(tt.input, err))
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}
