// internal/workers/data-access/query-elasticsearch/queries/registry.go
package queries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"dishlist-workers/internal/models"
)

// Hit is one matched restaurant. DistanceKm is set for nearby searches.
type Hit struct {
	Restaurant models.RestaurantDocument `json:"restaurant"`
	Score      float64                   `json:"score,omitempty"`
	DistanceKm *float64                  `json:"distanceKm,omitempty"`
}

type QueryResult struct {
	Data      []Hit
	TotalHits int64
	MaxScore  float64
	Took      int64
}

// ErrConnection wraps transport failures where no response came back.
var ErrConnection = errors.New("elasticsearch unreachable")

// IndexNotFoundError is returned when the target index does not exist.
type IndexNotFoundError struct {
	Index string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %s not found", e.Index)
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []struct {
			Score  *float64                  `json:"_score"`
			Source models.RestaurantDocument `json:"_source"`
			Sort   []interface{}             `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

func Execute(ctx context.Context, esClient *elasticsearch.Client, q SearchQuery) (*QueryResult, error) {
	req, err := BuildQuery(q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := req.Do(ctx, esClient)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, &IndexNotFoundError{Index: q.Index}
	}
	if res.IsError() {
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &QueryResult{
		Data:      make([]Hit, 0, len(r.Hits.Hits)),
		TotalHits: r.Hits.Total.Value,
		Took:      time.Since(start).Milliseconds(),
	}
	if r.Hits.MaxScore != nil {
		result.MaxScore = *r.Hits.MaxScore
	}

	nearby := q.QueryType == models.SearchTypeNearby
	for _, h := range r.Hits.Hits {
		hit := Hit{Restaurant: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		if nearby && len(h.Sort) > 0 {
			if d, ok := h.Sort[0].(float64); ok {
				hit.DistanceKm = &d
			}
		}
		result.Data = append(result.Data, hit)
	}
	return result, nil
}

// IsIndexNotFound reports whether err came from a missing index.
func IsIndexNotFound(err error) bool {
	var nf *IndexNotFoundError
	return errors.As(err, &nf)
}
