package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dishlist-workers/internal/models"
)

func f(v float64) *float64 { return &v }

func TestDocument_Chain(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := models.Restaurant{
		ID:            "r1",
		Name:          "Five Guys",
		Neighbourhood: models.MultipleLocations,
		UpdatedAt:     updated,
	}
	locations := []models.Location{
		{Name: "Five Guys Soho", Latitude: f(51.51), Longitude: f(-0.13)},
		{Name: "Five Guys Camden"},
		{Name: "Five Guys Islington", Latitude: f(51.54), Longitude: f(-0.10)},
	}
	cats := []models.Category{{Slug: "burgers"}, {Slug: "late-night"}}
	rs := []models.Rating{{Score: 8.2}, {Score: 9.4}}

	doc := Document(r, "london", cats, locations, rs)

	assert.Equal(t, "london", doc.City)
	assert.Equal(t, []string{"burgers", "late-night"}, doc.Categories)
	assert.Equal(t, 3, doc.LocationCount)
	assert.InDelta(t, 8.8, doc.AverageRating, 1e-9)
	assert.Equal(t, 2, doc.RatingCount)
	assert.Equal(t, updated, doc.UpdatedAt)

	require.Len(t, doc.Sites, 2)
	require.NotNil(t, doc.Location)
	assert.Equal(t, models.GeoPoint{Lat: 51.51, Lon: -0.13}, *doc.Location)
}

func TestDocument_IndependentWithoutCoordinates(t *testing.T) {
	doc := Document(models.Restaurant{ID: "r2", Name: "Dishoom"}, "london", nil, nil, nil)

	assert.Nil(t, doc.Location)
	assert.Empty(t, doc.Sites)
	assert.Equal(t, []string{}, doc.Categories)
	assert.Equal(t, 0.0, doc.AverageRating)
	assert.False(t, doc.UpdatedAt.IsZero())
}

func TestDocument_OwnPointComesFirst(t *testing.T) {
	r := models.Restaurant{ID: "r3", Name: "Bleecker", Latitude: f(51.49), Longitude: f(-0.14)}
	locs := []models.Location{{Latitude: f(51.52), Longitude: f(-0.08)}}

	doc := Document(r, "london", nil, locs, nil)
	assert.Equal(t, 51.49, doc.Location.Lat)
	assert.Len(t, doc.Sites, 2)
}
