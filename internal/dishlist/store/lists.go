package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dishlist-workers/internal/models"
)

// AddMyListEntry appends a restaurant to the end of a user's list. Adding a
// restaurant that is already listed returns ErrDuplicate.
func (s *Store) AddMyListEntry(ctx context.Context, userID, restaurantID string) (models.MyListEntry, error) {
	e := models.MyListEntry{ID: uuid.NewString(), UserID: userID, RestaurantID: restaurantID}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO my_list_entries (id, user_id, restaurant_id, position)
		SELECT $1::uuid, $2::text, $3::uuid, COALESCE(MAX(position), 0) + 1
		FROM my_list_entries WHERE user_id = $2::text
		ON CONFLICT (user_id, restaurant_id) DO NOTHING
		RETURNING position, created_at`,
		e.ID, userID, restaurantID,
	).Scan(&e.Position, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MyListEntry{}, fmt.Errorf("restaurant %s on list of %s: %w", restaurantID, userID, ErrDuplicate)
	}
	if err != nil {
		return models.MyListEntry{}, fmt.Errorf("insert list entry: %w", err)
	}
	return e, nil
}

// MyList returns a user's list in position order.
func (s *Store) MyList(ctx context.Context, userID string) ([]models.MyListEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.user_id, e.restaurant_id, e.position, r.name, r.neighbourhood, e.created_at
		FROM my_list_entries e
		JOIN restaurants r ON r.id = e.restaurant_id
		WHERE e.user_id = $1
		ORDER BY e.position ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query list of %s: %w", userID, err)
	}
	defer rows.Close()

	out := []models.MyListEntry{}
	for rows.Next() {
		var e models.MyListEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.RestaurantID, &e.Position, &e.RestaurantName, &e.Neighbourhood, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan list entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
