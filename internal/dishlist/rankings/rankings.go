// Package rankings orders restaurants into category leaderboards and the
// city-wide DishList 100.
package rankings

import (
	"sort"
	"strings"

	"dishlist-workers/internal/dishlist/ratings"
	"dishlist-workers/internal/models"
)

// Candidates pairs each restaurant with the aggregate of its ratings.
// Restaurants with no ratings get a zero summary.
func Candidates(restaurants []models.Restaurant, byID map[string][]models.Rating) []models.RestaurantSummary {
	out := make([]models.RestaurantSummary, 0, len(restaurants))
	for _, r := range restaurants {
		s := ratings.Aggregate(byID[r.ID])
		out = append(out, models.RestaurantSummary{
			RestaurantID:  r.ID,
			Name:          r.Name,
			Neighbourhood: r.Neighbourhood,
			AverageRating: s.AverageRating,
			RatingCount:   s.Count,
		})
	}
	return out
}

// Leaderboard sorts rows by average rating, highest first, breaking ties by
// rating count then name, assigns ranks from 1 and keeps the first limit
// rows. limit <= 0 keeps every row. The input is not modified.
func Leaderboard(rows []models.RestaurantSummary, limit int) []models.RestaurantSummary {
	out := make([]models.RestaurantSummary, len(rows))
	copy(out, rows)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.AverageRating != b.AverageRating {
			return a.AverageRating > b.AverageRating
		}
		if a.RatingCount != b.RatingCount {
			return a.RatingCount > b.RatingCount
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Top merges leaderboards into one list: each restaurant appears once,
// only averages at or above threshold are kept, and the result is ranked
// and cut to limit.
func Top(boards [][]models.RestaurantSummary, threshold float64, limit int) []models.RestaurantSummary {
	seen := make(map[string]bool)
	var merged []models.RestaurantSummary
	for _, board := range boards {
		for _, row := range board {
			if seen[row.RestaurantID] {
				continue
			}
			seen[row.RestaurantID] = true
			if row.AverageRating >= threshold {
				merged = append(merged, row)
			}
		}
	}
	return Leaderboard(merged, limit)
}
