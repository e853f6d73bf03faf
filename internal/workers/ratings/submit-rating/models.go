package submitrating

import "dishlist-workers/internal/models"

type Input struct {
	UserID       string   `json:"userId"`
	RestaurantID string   `json:"restaurantId"`
	Score        *float64 `json:"score"`
	ReviewText   *string  `json:"reviewText,omitempty"`
}

type Output struct {
	Rating  models.Rating        `json:"rating"`
	Summary models.RatingSummary `json:"summary"`
}
