package models

import "time"

// MultipleLocations is the neighbourhood label of any entity that spans
// more than one physical site.
const MultipleLocations = "Multiple Locations"

// PlaceRecord is one raw listing as delivered by a places provider.
// Optional fields are nil when the provider did not supply them.
type PlaceRecord struct {
	Name          string   `json:"name"`
	Neighbourhood *string  `json:"neighbourhood,omitempty"`
	Address       *string  `json:"address,omitempty"`
	Latitude      *float64 `json:"lat,omitempty"`
	Longitude     *float64 `json:"lng,omitempty"`
	ExternalID    *string  `json:"placeId,omitempty"`
	RatingValue   *float64 `json:"rating,omitempty"`
	RatingCount   *int     `json:"userRatingsTotal,omitempty"`
}

// Location is one physical site of a chain.
type Location struct {
	Name          string   `json:"name"`
	Neighbourhood string   `json:"neighbourhood"`
	Address       *string  `json:"address,omitempty"`
	Latitude      *float64 `json:"lat,omitempty"`
	Longitude     *float64 `json:"lng,omitempty"`
	ExternalID    *string  `json:"placeId,omitempty"`
	RatingValue   *float64 `json:"rating,omitempty"`
}

// RestaurantEntity is the consolidated, ranked unit: an independent or a chain.
type RestaurantEntity struct {
	Name          string     `json:"name"`
	Neighbourhood string     `json:"neighbourhood"`
	Address       *string    `json:"address,omitempty"`
	Latitude      *float64   `json:"lat,omitempty"`
	Longitude     *float64   `json:"lng,omitempty"`
	ExternalID    *string    `json:"placeId,omitempty"`
	Locations     []Location `json:"locations"`
	AverageRating float64    `json:"averageRating"`
	RatingCount   int        `json:"ratingCount"`
}

// IsChain reports whether the entity was built from a chain group.
func (e RestaurantEntity) IsChain() bool {
	return len(e.Locations) > 0
}

type City struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Country string `json:"country"`
}

type Category struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description *string `json:"description,omitempty"`
	IsSpecial   bool    `json:"isSpecial"`
}

// Restaurant is a persisted restaurant row.
type Restaurant struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CityID        string    `json:"cityId"`
	Neighbourhood string    `json:"neighbourhood"`
	Address       *string   `json:"address,omitempty"`
	Latitude      *float64  `json:"lat,omitempty"`
	Longitude     *float64  `json:"lng,omitempty"`
	ExternalID    *string   `json:"placeId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RestaurantSummary is one leaderboard row.
type RestaurantSummary struct {
	Rank          int     `json:"rank"`
	RestaurantID  string  `json:"restaurantId"`
	Name          string  `json:"name"`
	Neighbourhood string  `json:"neighbourhood"`
	AverageRating float64 `json:"averageRating"`
	RatingCount   int     `json:"ratingCount"`
}

type RestaurantDetails struct {
	Restaurant    Restaurant `json:"restaurant"`
	Categories    []Category `json:"categories"`
	Locations     []Location `json:"locations"`
	AverageRating float64    `json:"averageRating"`
	RatingCount   int        `json:"ratingCount"`
	TopRatings    []Rating   `json:"topRatings"`
	UserRating    *Rating    `json:"userRating,omitempty"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RestaurantDocument is the search index representation of a restaurant.
type RestaurantDocument struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Neighbourhood string     `json:"neighbourhood"`
	City          string     `json:"city"`
	Categories    []string   `json:"categories"`
	Location      *GeoPoint  `json:"location,omitempty"`
	Sites         []GeoPoint `json:"sites,omitempty"`
	LocationCount int        `json:"locationCount"`
	AverageRating float64    `json:"averageRating"`
	RatingCount   int        `json:"ratingCount"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}
