package models

import "time"

// SourceUser tags ratings submitted by DishList users.
const SourceUser = "user"

// Rating is a single score on the 0-10 scale.
type Rating struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	UserID       *string   `json:"userId,omitempty"`
	Score        float64   `json:"score"`
	SourceTag    string    `json:"sourceTag"`
	ReviewText   *string   `json:"reviewText,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RatingSummary is the cached aggregate for one restaurant.
type RatingSummary struct {
	RestaurantID  string  `json:"restaurantId"`
	AverageRating float64 `json:"averageRating"`
	RatingCount   int     `json:"ratingCount"`
}
