package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dishlist-workers/internal/models"
)

const ratingColumns = `id, user_id, restaurant_id, score, source_tag, review_text, created_at`

func scanRating(row scanner) (models.Rating, error) {
	var (
		r      models.Rating
		userID sql.NullString
		review sql.NullString
	)
	if err := row.Scan(&r.ID, &userID, &r.RestaurantID, &r.Score, &r.SourceTag, &review, &r.CreatedAt); err != nil {
		return models.Rating{}, err
	}
	r.UserID, r.ReviewText = nullString(userID), nullString(review)
	return r, nil
}

func collectRatings(rows *sql.Rows) ([]models.Rating, error) {
	defer rows.Close()

	out := []models.Rating{}
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RestaurantRatings returns every rating of a restaurant, newest first.
func (s *Store) RestaurantRatings(ctx context.Context, restaurantID string) ([]models.Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE restaurant_id = $1 ORDER BY created_at DESC`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("query ratings of %s: %w", restaurantID, err)
	}
	return collectRatings(rows)
}

// RatingsForRestaurants groups the ratings of many restaurants by id.
// Restaurants without ratings are absent from the map.
func (s *Store) RatingsForRestaurants(ctx context.Context, ids []string) (map[string][]models.Rating, error) {
	out := make(map[string][]models.Rating, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE restaurant_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	all, err := collectRatings(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		out[r.RestaurantID] = append(out[r.RestaurantID], r)
	}
	return out, nil
}

// UserRatings returns a user's ratings, newest first.
func (s *Store) UserRatings(ctx context.Context, userID string) ([]models.Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query ratings of user %s: %w", userID, err)
	}
	return collectRatings(rows)
}

// UserRating returns the user's rating of a restaurant, or ErrNotFound.
func (s *Store) UserRating(ctx context.Context, userID, restaurantID string) (*models.Rating, error) {
	r, err := scanRating(s.db.QueryRowContext(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE user_id = $1 AND restaurant_id = $2`, userID, restaurantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query rating: %w", err)
	}
	return &r, nil
}

// UpsertUserRating stores a user's score, replacing any earlier score the
// same user gave the restaurant.
func (s *Store) UpsertUserRating(ctx context.Context, r models.Rating) (models.Rating, error) {
	if r.UserID == nil {
		return models.Rating{}, errors.New("user rating without user id")
	}
	r.SourceTag = models.SourceUser

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO ratings (id, user_id, restaurant_id, score, source_tag, review_text)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, restaurant_id) WHERE user_id IS NOT NULL
		DO UPDATE SET score = EXCLUDED.score, review_text = EXCLUDED.review_text, created_at = NOW()
		RETURNING id, created_at`,
		uuid.NewString(), *r.UserID, r.RestaurantID, r.Score, r.SourceTag, r.ReviewText,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return models.Rating{}, fmt.Errorf("upsert rating: %w", err)
	}
	return r, nil
}
