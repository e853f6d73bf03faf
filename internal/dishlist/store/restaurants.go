package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dishlist-workers/internal/dishlist/chains"
	"dishlist-workers/internal/models"
)

// Saved describes what SaveResult wrote.
type Saved struct {
	RestaurantID   string
	Created        bool
	LocationsAdded int
	SeedsInserted  int
}

// cityFinder resolves canonical chain names within one city.
type cityFinder struct {
	db     *sql.DB
	cityID string
}

// Finder returns a chains.EntityFinder scoped to cityID.
func (s *Store) Finder(cityID string) chains.EntityFinder {
	return &cityFinder{db: s.db, cityID: cityID}
}

func (f *cityFinder) FindExisting(ctx context.Context, name string) (*chains.EntityHandle, error) {
	var h chains.EntityHandle
	err := f.db.QueryRowContext(ctx, `
		SELECT r.id, r.name, r.neighbourhood, COUNT(l.id)
		FROM restaurants r
		LEFT JOIN restaurant_locations l ON l.restaurant_id = r.id
		WHERE r.name = $1 AND r.city_id = $2
		GROUP BY r.id, r.name, r.neighbourhood`,
		name, f.cityID,
	).Scan(&h.ID, &h.Name, &h.Neighbourhood, &h.LocationCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find restaurant %q: %w", name, err)
	}
	return &h, nil
}

// SaveResult persists one consolidated entity in its own transaction.
// Creation relies on the (name, city_id) unique index: losing a creation
// race turns the write into an append. Seed ratings are written only when
// the restaurant is new or gained at least one location.
func (s *Store) SaveResult(ctx context.Context, cityID, categoryID string, res chains.Result) (saved Saved, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Saved{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	saved.RestaurantID = res.ExistingID
	if res.Created {
		saved.RestaurantID, saved.Created, err = insertRestaurant(ctx, tx, cityID, res.Entity)
		if err != nil {
			return Saved{}, err
		}
	}

	for _, loc := range res.Entity.Locations {
		added, err := insertLocation(ctx, tx, saved.RestaurantID, loc)
		if err != nil {
			return Saved{}, err
		}
		saved.LocationsAdded += added
	}

	if !saved.Created && saved.LocationsAdded > 0 {
		if _, err = tx.ExecContext(ctx, `
			UPDATE restaurants
			SET neighbourhood = CASE
					WHEN (SELECT COUNT(*) FROM restaurant_locations WHERE restaurant_id = $1) > 1 THEN $2
					ELSE neighbourhood
				END,
				updated_at = NOW()
			WHERE id = $1`,
			saved.RestaurantID, models.MultipleLocations,
		); err != nil {
			return Saved{}, fmt.Errorf("update neighbourhood %s: %w", saved.RestaurantID, err)
		}
	}

	if categoryID != "" {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO restaurant_categories (restaurant_id, category_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			saved.RestaurantID, categoryID,
		); err != nil {
			return Saved{}, fmt.Errorf("link category %s: %w", saved.RestaurantID, err)
		}
	}

	if saved.Created || saved.LocationsAdded > 0 {
		for _, seed := range res.SeedRatings {
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO ratings (id, user_id, restaurant_id, score, source_tag)
				VALUES ($1, NULL, $2, $3, $4)`,
				uuid.NewString(), saved.RestaurantID, seed.Score, seed.SourceTag,
			); err != nil {
				return Saved{}, fmt.Errorf("insert seed rating %s: %w", saved.RestaurantID, err)
			}
			saved.SeedsInserted++
		}
	}

	if err = tx.Commit(); err != nil {
		return Saved{}, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

func insertRestaurant(ctx context.Context, tx *sql.Tx, cityID string, e models.RestaurantEntity) (string, bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO restaurants (id, name, city_id, neighbourhood, address, lat, lng, google_place_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name, city_id) DO NOTHING
		RETURNING id`,
		uuid.NewString(), e.Name, cityID, e.Neighbourhood, e.Address, e.Latitude, e.Longitude, e.ExternalID,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("insert restaurant %q: %w", e.Name, err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM restaurants WHERE name = $1 AND city_id = $2`, e.Name, cityID,
	).Scan(&id); err != nil {
		return "", false, fmt.Errorf("reread restaurant %q: %w", e.Name, err)
	}
	return id, false, nil
}

// insertLocation skips a site already recorded for the restaurant. A site is
// identified by its place id, or by name and address when it has none. It
// returns the number of rows written.
func insertLocation(ctx context.Context, tx *sql.Tx, restaurantID string, loc models.Location) (int, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO restaurant_locations (id, restaurant_id, name, neighbourhood, address, lat, lng, google_place_id)
		SELECT $1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::double precision, $7::double precision, $8::text
		WHERE NOT EXISTS (
			SELECT 1 FROM restaurant_locations
			WHERE restaurant_id = $2::uuid
			  AND (
				($8::text IS NOT NULL AND google_place_id = $8::text)
				OR ($8::text IS NULL AND google_place_id IS NULL
					AND name = $3::text AND address IS NOT DISTINCT FROM $5::text)
			  )
		)`,
		uuid.NewString(), restaurantID, loc.Name, loc.Neighbourhood, loc.Address, loc.Latitude, loc.Longitude, loc.ExternalID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert location %q: %w", loc.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert location %q: %w", loc.Name, err)
	}
	return int(n), nil
}

func (s *Store) Restaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	var (
		r        models.Restaurant
		address  sql.NullString
		placeID  sql.NullString
		lat, lng sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, city_id, neighbourhood, address, lat, lng, google_place_id, created_at, updated_at
		FROM restaurants WHERE id = $1`, id,
	).Scan(&r.ID, &r.Name, &r.CityID, &r.Neighbourhood, &address, &lat, &lng, &placeID, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("restaurant %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query restaurant %s: %w", id, err)
	}
	r.Address, r.ExternalID = nullString(address), nullString(placeID)
	r.Latitude, r.Longitude = nullFloat(lat), nullFloat(lng)
	return &r, nil
}

func (s *Store) RestaurantLocations(ctx context.Context, restaurantID string) ([]models.Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, neighbourhood, address, lat, lng, google_place_id
		FROM restaurant_locations
		WHERE restaurant_id = $1
		ORDER BY created_at, name`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("query locations %s: %w", restaurantID, err)
	}
	defer rows.Close()

	out := []models.Location{}
	for rows.Next() {
		var (
			l        models.Location
			address  sql.NullString
			placeID  sql.NullString
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&l.Name, &l.Neighbourhood, &address, &lat, &lng, &placeID); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		l.Address, l.ExternalID = nullString(address), nullString(placeID)
		l.Latitude, l.Longitude = nullFloat(lat), nullFloat(lng)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) RestaurantCategories(ctx context.Context, restaurantID string) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.slug, c.description, c.is_special
		FROM categories c
		JOIN restaurant_categories rc ON rc.category_id = c.id
		WHERE rc.restaurant_id = $1
		ORDER BY c.name`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("query categories of %s: %w", restaurantID, err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CategoryRestaurants lists the restaurants of a city linked to a category.
func (s *Store) CategoryRestaurants(ctx context.Context, cityID, categoryID string) ([]models.Restaurant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.neighbourhood
		FROM restaurants r
		JOIN restaurant_categories rc ON rc.restaurant_id = r.id
		WHERE r.city_id = $1 AND rc.category_id = $2
		ORDER BY r.name`, cityID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("query category restaurants: %w", err)
	}
	defer rows.Close()

	var out []models.Restaurant
	for rows.Next() {
		r := models.Restaurant{CityID: cityID}
		if err := rows.Scan(&r.ID, &r.Name, &r.Neighbourhood); err != nil {
			return nil, fmt.Errorf("scan restaurant: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
