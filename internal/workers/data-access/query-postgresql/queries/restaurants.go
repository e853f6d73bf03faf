package queries

import (
	"context"
	"errors"
	"time"

	"dishlist-workers/internal/dishlist/ratings"
	"dishlist-workers/internal/dishlist/store"
	"dishlist-workers/internal/models"
)

// DefaultTopRatings is how many ratings a restaurant detail carries.
const DefaultTopRatings = 10

// RestaurantDetails loads a restaurant with its sites, categories, the
// aggregate of its ratings and the highest ratings first. With a userId it
// also carries that user's own rating.
func RestaurantDetails(ctx context.Context, st Store, params map[string]interface{}) (interface{}, int, int64, error) {
	restaurantID, err := stringParam(params, "restaurantId")
	if err != nil {
		return nil, 0, 0, err
	}

	start := time.Now()

	r, err := st.Restaurant(ctx, restaurantID)
	if err != nil {
		return nil, 0, 0, err
	}
	locations, err := st.RestaurantLocations(ctx, restaurantID)
	if err != nil {
		return nil, 0, 0, err
	}
	categories, err := st.RestaurantCategories(ctx, restaurantID)
	if err != nil {
		return nil, 0, 0, err
	}
	all, err := st.RestaurantRatings(ctx, restaurantID)
	if err != nil {
		return nil, 0, 0, err
	}

	summary := ratings.Aggregate(all)
	details := models.RestaurantDetails{
		Restaurant:    *r,
		Categories:    categories,
		Locations:     locations,
		AverageRating: summary.AverageRating,
		RatingCount:   summary.Count,
		TopRatings:    ratings.TopRatings(all, topRatingsLimit(params)),
	}

	if userID, _ := params["userId"].(string); userID != "" {
		own, err := st.UserRating(ctx, userID, restaurantID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, 0, 0, err
		}
		details.UserRating = own
	}

	return details, 1, time.Since(start).Milliseconds(), nil
}

func topRatingsLimit(params map[string]interface{}) int {
	if n, ok := params["topRatingsLimit"].(int); ok && n > 0 {
		return n
	}
	return DefaultTopRatings
}

func Categories(ctx context.Context, st Store, _ map[string]interface{}) (interface{}, int, int64, error) {
	start := time.Now()

	categories, err := st.Categories(ctx)
	if err != nil {
		return nil, 0, 0, err
	}
	return categories, len(categories), time.Since(start).Milliseconds(), nil
}
