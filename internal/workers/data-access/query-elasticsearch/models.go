// internal/workers/data-access/query-elasticsearch/models.go
package queryelasticsearch

import "dishlist-workers/internal/workers/data-access/query-elasticsearch/queries"

type Input struct {
	IndexName  string     `json:"indexName,omitempty"`
	QueryType  string     `json:"queryType"`
	Query      string     `json:"query,omitempty"`
	CitySlug   string     `json:"citySlug,omitempty"`
	Category   string     `json:"category,omitempty"`
	MinRating  float64    `json:"minRating,omitempty"`
	Lat        *float64   `json:"lat,omitempty"`
	Lon        *float64   `json:"lon,omitempty"`
	Distance   string     `json:"distance,omitempty"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	From int `json:"from"`
	Size int `json:"size"`
}

type Output struct {
	Data      []queries.Hit `json:"data"`
	TotalHits int64         `json:"totalHits"`
	MaxScore  float64       `json:"maxScore"`
	Took      int64         `json:"took"` // milliseconds
}
