// Package ratings computes displayed averages from individual rating records.
package ratings

import (
	"sort"

	"dishlist-workers/internal/models"
)

// Summary is the displayed aggregate of a restaurant's ratings.
// AverageRating is 0 when Count is 0.
type Summary struct {
	AverageRating float64 `json:"averageRating"`
	Count         int     `json:"count"`
}

// Aggregate averages the scores of ratings. Scores are taken as-is: NaN or
// out-of-range values propagate into the average. The input is not modified.
func Aggregate(ratings []models.Rating) Summary {
	if len(ratings) == 0 {
		return Summary{}
	}

	var sum float64
	for _, r := range ratings {
		sum += r.Score
	}
	return Summary{
		AverageRating: sum / float64(len(ratings)),
		Count:         len(ratings),
	}
}

// TopRatings returns a copy of ratings ordered by score, highest first.
// Ties keep their input order. n <= 0 returns every rating.
func TopRatings(ratings []models.Rating, n int) []models.Rating {
	out := make([]models.Rating, len(ratings))
	copy(out, ratings)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ToTenPointScale rescales a provider rating onto the 0-10 scale.
// A non-positive sourceScale leaves the value unchanged.
func ToTenPointScale(value, sourceScale float64) float64 {
	if sourceScale <= 0 {
		return value
	}
	return value / sourceScale * 10
}
