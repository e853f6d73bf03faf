package models

import "time"

// IngestResult is the per-entity outcome of an ingestion run.
type IngestResult struct {
	Name         string `json:"name"`
	RestaurantID string `json:"restaurantId,omitempty"`
	Success      bool   `json:"success"`
	Created      bool   `json:"created"`
	Locations    int    `json:"locations,omitempty"`
	Note         string `json:"note,omitempty"`
	Error        string `json:"error,omitempty"`
}

type IngestionReport struct {
	RunID        string         `json:"runId"`
	CitySlug     string         `json:"citySlug"`
	CategorySlug string         `json:"categorySlug"`
	Results      []IngestResult `json:"results"`
	StartedAt    time.Time      `json:"startedAt"`
	FinishedAt   time.Time      `json:"finishedAt"`
}

// Counts returns how many results succeeded and failed.
func (r IngestionReport) Counts() (succeeded, failed int) {
	for _, res := range r.Results {
		if res.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
