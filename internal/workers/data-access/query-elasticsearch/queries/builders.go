package queries

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"dishlist-workers/internal/models"
)

var (
	ErrUnknownQueryType = errors.New("unknown query type")
	ErrMissingIndex     = errors.New("index name is required")
	ErrMissingLocation  = errors.New("lat and lon are required")
)

const (
	DefaultSize     = 20
	MaxSize         = 100
	DefaultDistance = "2km"
)

// SearchQuery is one restaurant index lookup.
type SearchQuery struct {
	Index     string
	QueryType models.SearchType
	Text      string
	City      string
	Category  string
	MinRating float64
	Lat       *float64
	Lon       *float64
	Distance  string
	From      int
	Size      int
}

// BuildQuery turns q into a search request against q.Index.
func BuildQuery(q SearchQuery) (*esapi.SearchRequest, error) {
	if q.Index == "" {
		return nil, ErrMissingIndex
	}

	var body map[string]interface{}
	switch q.QueryType {
	case models.SearchTypeRestaurant:
		body = buildRestaurantSearchQuery(q)
	case models.SearchTypeNearby:
		if q.Lat == nil || q.Lon == nil {
			return nil, ErrMissingLocation
		}
		body = buildNearbyQuery(q)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueryType, q.QueryType)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	from, size := normalizePage(q.From, q.Size)
	return &esapi.SearchRequest{
		Index: []string{q.Index},
		Body:  bytes.NewReader(data),
		From:  &from,
		Size:  &size,
	}, nil
}

func normalizePage(from, size int) (int, int) {
	if from < 0 {
		from = 0
	}
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return from, size
}

// filters are shared by both query types.
func filters(q SearchQuery) []interface{} {
	out := []interface{}{}
	if q.City != "" {
		out = append(out, map[string]interface{}{
			"term": map[string]interface{}{"city": q.City},
		})
	}
	if q.Category != "" {
		out = append(out, map[string]interface{}{
			"term": map[string]interface{}{"categories": q.Category},
		})
	}
	if q.MinRating > 0 {
		out = append(out, map[string]interface{}{
			"range": map[string]interface{}{
				"averageRating": map[string]interface{}{"gte": q.MinRating},
			},
		})
	}
	return out
}

func buildRestaurantSearchQuery(q SearchQuery) map[string]interface{} {
	boolQuery := map[string]interface{}{"filter": filters(q)}

	sort := []interface{}{
		map[string]interface{}{"averageRating": map[string]interface{}{"order": "desc"}},
		map[string]interface{}{"ratingCount": map[string]interface{}{"order": "desc"}},
	}

	if q.Text != "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":     q.Text,
					"fields":    []string{"name^3", "neighbourhood"},
					"type":      "best_fields",
					"fuzziness": "AUTO",
				},
			},
		}
		sort = append([]interface{}{"_score"}, sort...)
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  sort,
	}
}

// buildNearbyQuery matches restaurants with any site within Distance of the
// point, nearest first. Chains match on their closest site.
func buildNearbyQuery(q SearchQuery) map[string]interface{} {
	distance := q.Distance
	if distance == "" {
		distance = DefaultDistance
	}
	point := map[string]interface{}{"lat": *q.Lat, "lon": *q.Lon}

	filter := append(filters(q), map[string]interface{}{
		"geo_distance": map[string]interface{}{
			"distance": distance,
			"sites":    point,
		},
	})

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filter},
		},
		"sort": []interface{}{
			map[string]interface{}{
				"_geo_distance": map[string]interface{}{
					"sites":         point,
					"order":         "asc",
					"unit":          "km",
					"mode":          "min",
					"distance_type": "arc",
				},
			},
		},
	}
}
