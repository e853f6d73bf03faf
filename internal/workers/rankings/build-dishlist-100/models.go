package builddishlist100

import "dishlist-workers/internal/models"

type Input struct {
	CitySlug string `json:"citySlug,omitempty"`
}

type Output struct {
	City       models.City                `json:"city"`
	Entries    []models.RestaurantSummary `json:"entries"`
	Categories int                        `json:"categoriesRanked"`
	Candidates int                        `json:"candidates"`
	Threshold  float64                    `json:"threshold"`
}
