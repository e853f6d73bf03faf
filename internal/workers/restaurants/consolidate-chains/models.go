package consolidatechains

import "dishlist-workers/internal/models"

type Input struct {
	CitySlug string               `json:"citySlug,omitempty"`
	Records  []models.PlaceRecord `json:"records"`
}

// Entity is one consolidated restaurant as it would be persisted.
// ExistingID is set when a chain's locations would join a stored chain.
type Entity struct {
	models.RestaurantEntity
	Chain      bool   `json:"chain"`
	Created    bool   `json:"created"`
	ExistingID string `json:"existingId,omitempty"`
}

type Output struct {
	Entities         []Entity `json:"entities"`
	TotalRecords     int      `json:"totalRecords"`
	ChainCount       int      `json:"chainCount"`
	IndependentCount int      `json:"independentCount"`
}
