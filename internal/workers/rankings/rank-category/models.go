package rankcategory

import "dishlist-workers/internal/models"

type Input struct {
	CitySlug     string `json:"citySlug,omitempty"`
	CategorySlug string `json:"categorySlug"`
	Limit        int    `json:"limit,omitempty"`
}

type Output struct {
	City        models.City                `json:"city"`
	Category    models.Category            `json:"category"`
	Leaderboard []models.RestaurantSummary `json:"leaderboard"`
	Total       int                        `json:"total"`
}
