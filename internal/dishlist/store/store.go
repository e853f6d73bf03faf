// Package store is the Postgres persistence layer for restaurants, ratings
// and user lists.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dishlist-workers/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// Store wraps a *sql.DB. All methods are safe for concurrent use.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CityBySlug(ctx context.Context, slug string) (*models.City, error) {
	var c models.City
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, country FROM cities WHERE slug = $1`, slug,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.Country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("city %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query city %q: %w", slug, err)
	}
	return &c, nil
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, description, is_special FROM categories WHERE slug = $1`, slug)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query category %q: %w", slug, err)
	}
	return c, nil
}

func (s *Store) Categories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, description, is_special FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
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

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCategory(row scanner) (*models.Category, error) {
	var (
		c    models.Category
		desc sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &desc, &c.IsSpecial); err != nil {
		return nil, err
	}
	c.Description = nullString(desc)
	return &c, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
