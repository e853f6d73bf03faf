package ingestrestaurants

import "dishlist-workers/internal/models"

type Input struct {
	RunID        string               `json:"runId,omitempty"`
	CitySlug     string               `json:"citySlug,omitempty"`
	CategorySlug string               `json:"categorySlug"`
	Restaurants  []models.PlaceRecord `json:"restaurants"`
}

type Output struct {
	Report    models.IngestionReport `json:"report"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
}
