package searchplaces

import "dishlist-workers/internal/models"

type Input struct {
	Query     string   `json:"query"`
	MinRating *float64 `json:"minRating,omitempty"`
}

type Output struct {
	Places     []models.PlaceRecord `json:"places"`
	TotalFound int                  `json:"totalFound"`
	Skipped    []string             `json:"skipped"`
	FromCache  bool                 `json:"fromCache"`
}
