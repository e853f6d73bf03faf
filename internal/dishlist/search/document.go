// Package search builds the search index representation of restaurants.
package search

import (
	"time"

	"dishlist-workers/internal/dishlist/ratings"
	"dishlist-workers/internal/models"
)

// Document assembles the indexed form of a restaurant. Sites holds the
// restaurant's own point followed by every located site; Location is the
// first of those.
func Document(r models.Restaurant, citySlug string, categories []models.Category, locations []models.Location, rs []models.Rating) models.RestaurantDocument {
	summary := ratings.Aggregate(rs)

	doc := models.RestaurantDocument{
		ID:            r.ID,
		Name:          r.Name,
		Neighbourhood: r.Neighbourhood,
		City:          citySlug,
		Categories:    make([]string, 0, len(categories)),
		LocationCount: len(locations),
		AverageRating: summary.AverageRating,
		RatingCount:   summary.Count,
		UpdatedAt:     r.UpdatedAt,
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	for _, c := range categories {
		doc.Categories = append(doc.Categories, c.Slug)
	}

	if p := point(r.Latitude, r.Longitude); p != nil {
		doc.Sites = append(doc.Sites, *p)
	}
	for _, l := range locations {
		if p := point(l.Latitude, l.Longitude); p != nil {
			doc.Sites = append(doc.Sites, *p)
		}
	}
	if len(doc.Sites) > 0 {
		first := doc.Sites[0]
		doc.Location = &first
	}
	return doc
}

func point(lat, lng *float64) *models.GeoPoint {
	if lat == nil || lng == nil {
		return nil
	}
	return &models.GeoPoint{Lat: *lat, Lon: *lng}
}
