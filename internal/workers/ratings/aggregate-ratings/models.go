package aggregateratings

import "dishlist-workers/internal/models"

type Input struct {
	RestaurantIDs []string `json:"restaurantIds"`
}

// Output lists one summary per distinct requested id, in request order.
// Restaurants without ratings have a zero summary.
type Output struct {
	Summaries   []models.RatingSummary `json:"summaries"`
	CacheHits   int                    `json:"cacheHits"`
	CacheMisses int                    `json:"cacheMisses"`
}
