package queryelasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "dishlist-workers/internal/common/errors"
	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/models"
	"dishlist-workers/internal/workers/data-access/query-elasticsearch/queries"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:      5 * time.Second,
		DefaultIndex: "restaurants",
		DefaultCity:  "london",
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

// fakeSearch answers every request with status and response, and keeps the
// last request it saw.
type fakeSearch struct {
	mu       sync.Mutex
	status   int
	response string
	path     string
	query    map[string][]string
	body     map[string]interface{}
}

func (f *fakeSearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.path = r.URL.Path
	f.query = r.URL.Query()
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		f.body = map[string]interface{}{}
		_ = json.Unmarshal(raw, &f.body)
	}

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(f.response))
}

func newTestHandler(t *testing.T, f *fakeSearch) *Handler {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewHandler(createTestConfig(), es, createTestLogger(t))
}

func floatPtr(f float64) *float64 { return &f }

const twoHits = `{
  "took": 3,
  "hits": {
    "total": {"value": 2, "relation": "eq"},
    "max_score": 7.5,
    "hits": [
      {"_id": "r1", "_score": 7.5, "_source": {"id": "r1", "name": "Five Guys", "neighbourhood": "Multiple Locations", "city": "london", "categories": ["burgers"], "locationCount": 3, "averageRating": 8.2, "ratingCount": 3}},
      {"_id": "r2", "_score": 2.1, "_source": {"id": "r2", "name": "Patty & Bun", "neighbourhood": "Soho", "city": "london", "categories": ["burgers"], "averageRating": 8.9, "ratingCount": 12}}
    ]
  }
}`

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_RestaurantSearch(t *testing.T) {
	f := &fakeSearch{status: http.StatusOK, response: twoHits}
	h := newTestHandler(t, f)

	out, err := h.Execute(context.Background(), &Input{
		QueryType:  string(models.SearchTypeRestaurant),
		Query:      "five guys",
		Category:   "burgers",
		Pagination: Pagination{Size: 500},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), out.TotalHits)
	assert.Equal(t, 7.5, out.MaxScore)
	require.Len(t, out.Data, 2)
	assert.Equal(t, "Five Guys", out.Data[0].Restaurant.Name)
	assert.Equal(t, 3, out.Data[0].Restaurant.LocationCount)
	assert.Nil(t, out.Data[0].DistanceKm)

	assert.Equal(t, "/restaurants/_search", f.path)
	assert.Equal(t, "100", f.query["size"][0])

	boolQuery := f.body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	must := boolQuery["must"].([]interface{})
	multi := must[0].(map[string]interface{})["multi_match"].(map[string]interface{})
	assert.Equal(t, "five guys", multi["query"])

	filter := boolQuery["filter"].([]interface{})
	require.Len(t, filter, 2)
	assert.Equal(t, "london", filter[0].(map[string]interface{})["term"].(map[string]interface{})["city"])
	assert.Equal(t, "burgers", filter[1].(map[string]interface{})["term"].(map[string]interface{})["categories"])

	sort := f.body["sort"].([]interface{})
	assert.Equal(t, "_score", sort[0])
}

func TestHandler_Execute_RestaurantSearchWithoutText(t *testing.T) {
	f := &fakeSearch{status: http.StatusOK, response: twoHits}
	h := newTestHandler(t, f)

	_, err := h.Execute(context.Background(), &Input{
		QueryType: string(models.SearchTypeRestaurant),
		CitySlug:  "manchester",
		MinRating: 8,
	})
	require.NoError(t, err)

	boolQuery := f.body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.NotContains(t, boolQuery, "must")

	filter := boolQuery["filter"].([]interface{})
	require.Len(t, filter, 2)
	assert.Equal(t, "manchester", filter[0].(map[string]interface{})["term"].(map[string]interface{})["city"])
	assert.Contains(t, filter[1], "range")

	sort := f.body["sort"].([]interface{})
	assert.Contains(t, sort[0], "averageRating")
}

func TestHandler_Execute_NearbyRestaurants(t *testing.T) {
	f := &fakeSearch{status: http.StatusOK, response: `{
	  "hits": {
	    "total": {"value": 1},
	    "max_score": null,
	    "hits": [
	      {"_id": "r1", "_score": null, "_source": {"id": "r1", "name": "Five Guys", "city": "london"}, "sort": [0.42]}
	    ]
	  }
	}`}
	h := newTestHandler(t, f)

	out, err := h.Execute(context.Background(), &Input{
		QueryType: string(models.SearchTypeNearby),
		Lat:       floatPtr(51.5136),
		Lon:       floatPtr(-0.1317),
		Distance:  "1km",
	})
	require.NoError(t, err)

	require.Len(t, out.Data, 1)
	require.NotNil(t, out.Data[0].DistanceKm)
	assert.InDelta(t, 0.42, *out.Data[0].DistanceKm, 1e-9)
	assert.Equal(t, 0.0, out.MaxScore)

	filter := f.body["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	geo := filter[len(filter)-1].(map[string]interface{})["geo_distance"].(map[string]interface{})
	assert.Equal(t, "1km", geo["distance"])

	sort := f.body["sort"].([]interface{})
	assert.Contains(t, sort[0], "_geo_distance")
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		input    *Input
		sentinel error
		code     apperrors.ErrorCode
	}{
		{
			name:     "unknown query type",
			status:   http.StatusOK,
			response: twoHits,
			input:    &Input{QueryType: "menu_index"},
			sentinel: ErrInvalidQueryType,
			code:     apperrors.ErrCodeInvalidQueryType,
		},
		{
			name:     "nearby without coordinates",
			status:   http.StatusOK,
			response: twoHits,
			input:    &Input{QueryType: string(models.SearchTypeNearby), Lat: floatPtr(51.5)},
			sentinel: ErrInvalidInput,
			code:     apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "missing index",
			status:   http.StatusNotFound,
			response: `{"error":{"type":"index_not_found_exception"},"status":404}`,
			input:    &Input{QueryType: string(models.SearchTypeRestaurant)},
			sentinel: ErrIndexNotFound,
			code:     apperrors.ErrCodeIndexNotFound,
		},
		{
			name:     "search failure",
			status:   http.StatusBadRequest,
			response: `{"error":{"type":"parsing_exception"},"status":400}`,
			input:    &Input{QueryType: string(models.SearchTypeRestaurant)},
			sentinel: ErrSearchQueryFailed,
			code:     apperrors.ErrCodeSearchQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &fakeSearch{status: tt.status, response: tt.response})

			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.code, apperrors.AsStandardError(h.toStandardError(tt.input, err)).Code)
		})
	}
}

func TestHandler_Execute_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{url}, DisableRetry: true})
	require.NoError(t, err)
	h := NewHandler(createTestConfig(), es, createTestLogger(t))

	input := &Input{QueryType: string(models.SearchTypeRestaurant)}
	_, err = h.Execute(context.Background(), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrElasticsearchConnectionFailed)

	stdErr := apperrors.AsStandardError(h.toStandardError(input, err))
	assert.Equal(t, apperrors.ErrCodeElasticsearchConnectionFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestBuildQuery_Pagination(t *testing.T) {
	tests := []struct {
		from, size         int
		wantFrom, wantSize int
	}{
		{from: 0, size: 0, wantFrom: 0, wantSize: queries.DefaultSize},
		{from: -5, size: 10, wantFrom: 0, wantSize: 10},
		{from: 40, size: 1000, wantFrom: 40, wantSize: queries.MaxSize},
	}

	for _, tt := range tests {
		req, err := queries.BuildQuery(queries.SearchQuery{
			Index:     "restaurants",
			QueryType: models.SearchTypeRestaurant,
			From:      tt.from,
			Size:      tt.size,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.wantFrom, *req.From)
		assert.Equal(t, tt.wantSize, *req.Size)
	}

	_, err := queries.BuildQuery(queries.SearchQuery{QueryType: models.SearchTypeRestaurant})
	assert.ErrorIs(t, err, queries.ErrMissingIndex)
}
