package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dishlist-workers/internal/dishlist/chains"
	"dishlist-workers/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func strPtr(s string) *string { return &s }

// ==========================
// Lookups
// ==========================

func TestCityBySlug(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, slug, country FROM cities WHERE slug").
		WithArgs("london").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "country"}).
			AddRow("city-1", "London", "london", "UK"))

	city, err := s.CityBySlug(context.Background(), "london")
	require.NoError(t, err)
	assert.Equal(t, "city-1", city.ID)
	assert.Equal(t, "London", city.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCityBySlug_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM cities").WithArgs("paris").WillReturnError(sql.ErrNoRows)

	_, err := s.CityBySlug(context.Background(), "paris")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCategoryBySlug(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM categories WHERE slug").
		WithArgs("burgers").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "description", "is_special"}).
			AddRow("cat-1", "Burgers", "burgers", nil, false))

	cat, err := s.CategoryBySlug(context.Background(), "burgers")
	require.NoError(t, err)
	assert.Equal(t, "cat-1", cat.ID)
	assert.Nil(t, cat.Description)
}

// ==========================
// Finder
// ==========================

func TestFinder_FindExisting(t *testing.T) {
	s, mock := newMockStore(t)
	finder := s.Finder("city-1")

	mock.ExpectQuery("FROM restaurants r\\s+LEFT JOIN restaurant_locations").
		WithArgs("Byron", "city-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "neighbourhood", "count"}).
			AddRow("rest-byron", "Byron", models.MultipleLocations, 4))

	h, err := finder.FindExisting(context.Background(), "Byron")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "rest-byron", h.ID)
	assert.Equal(t, 4, h.LocationCount)

	mock.ExpectQuery("FROM restaurants r").WithArgs("Honest Burgers", "city-1").WillReturnError(sql.ErrNoRows)

	h, err = finder.FindExisting(context.Background(), "Honest Burgers")
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// SaveResult
// ==========================

func chainResult() chains.Result {
	return chains.Result{
		Entity: models.RestaurantEntity{
			Name:          "Five Guys",
			Neighbourhood: models.MultipleLocations,
			Locations: []models.Location{
				{Name: "Five Guys Soho", Neighbourhood: "Soho", ExternalID: strPtr("p1")},
				{Name: "Five Guys Camden", Neighbourhood: "Camden", ExternalID: strPtr("p2")},
			},
		},
		Created: true,
		SeedRatings: []models.Rating{
			{Score: 8.4, SourceTag: "google"},
			{Score: 9.2, SourceTag: "google"},
		},
	}
}

func TestSaveResult_CreatesChain(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO restaurants").
		WithArgs(sqlmock.AnyArg(), "Five Guys", "city-1", models.MultipleLocations, nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rest-1"))
	mock.ExpectExec("INSERT INTO restaurant_locations").
		WithArgs(sqlmock.AnyArg(), "rest-1", "Five Guys Soho", "Soho", nil, nil, nil, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO restaurant_locations").
		WithArgs(sqlmock.AnyArg(), "rest-1", "Five Guys Camden", "Camden", nil, nil, nil, "p2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO restaurant_categories").
		WithArgs("rest-1", "cat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO ratings").
		WithArgs(sqlmock.AnyArg(), "rest-1", 8.4, "google").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO ratings").
		WithArgs(sqlmock.AnyArg(), "rest-1", 9.2, "google").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := s.SaveResult(context.Background(), "city-1", "cat-1", chainResult())
	require.NoError(t, err)

	assert.Equal(t, Saved{RestaurantID: "rest-1", Created: true, LocationsAdded: 2, SeedsInserted: 2}, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult_AppendsToExisting(t *testing.T) {
	s, mock := newMockStore(t)
	res := chains.Result{
		Entity: models.RestaurantEntity{
			Name:          "Byron",
			Neighbourhood: models.MultipleLocations,
			Locations:     []models.Location{{Name: "Byron - Kings Cross", Neighbourhood: "Kings Cross"}},
		},
		ExistingID: "rest-byron",
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO restaurant_locations").
		WithArgs(sqlmock.AnyArg(), "rest-byron", "Byron - Kings Cross", "Kings Cross", nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE restaurants").
		WithArgs("rest-byron", models.MultipleLocations).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO restaurant_categories").
		WithArgs("rest-byron", "cat-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	saved, err := s.SaveResult(context.Background(), "city-1", "cat-1", res)
	require.NoError(t, err)

	assert.False(t, saved.Created)
	assert.Equal(t, "rest-byron", saved.RestaurantID)
	assert.Equal(t, 1, saved.LocationsAdded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult_ReingestWithoutPlaceIDsWritesNothing(t *testing.T) {
	s, mock := newMockStore(t)
	res := chains.Result{
		Entity: models.RestaurantEntity{
			Name:          "Byron",
			Neighbourhood: models.MultipleLocations,
			Locations: []models.Location{
				{Name: "Byron - Kings Cross", Neighbourhood: "Kings Cross"},
				{Name: "Byron - Soho", Neighbourhood: "Soho"},
			},
		},
		ExistingID:  "rest-byron",
		SeedRatings: []models.Rating{{Score: 8, SourceTag: "google"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO restaurant_locations .*google_place_id IS NULL\s+AND name = \$3::text AND address IS NOT DISTINCT FROM \$5::text`).
		WithArgs(sqlmock.AnyArg(), "rest-byron", "Byron - Kings Cross", "Kings Cross", nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO restaurant_locations").
		WithArgs(sqlmock.AnyArg(), "rest-byron", "Byron - Soho", "Soho", nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO restaurant_categories").
		WithArgs("rest-byron", "cat-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	saved, err := s.SaveResult(context.Background(), "city-1", "cat-1", res)
	require.NoError(t, err)

	assert.Equal(t, Saved{RestaurantID: "rest-byron"}, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult_LostCreationRace(t *testing.T) {
	s, mock := newMockStore(t)
	res := chains.Result{
		Entity:      models.RestaurantEntity{Name: "Dishoom", Neighbourhood: "Shoreditch", Locations: []models.Location{}},
		Created:     true,
		SeedRatings: []models.Rating{{Score: 9, SourceTag: "google"}},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO restaurants").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT id FROM restaurants WHERE name").
		WithArgs("Dishoom", "city-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rest-dishoom"))
	mock.ExpectExec("INSERT INTO restaurant_categories").
		WithArgs("rest-dishoom", "cat-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	saved, err := s.SaveResult(context.Background(), "city-1", "cat-1", res)
	require.NoError(t, err)

	assert.Equal(t, Saved{RestaurantID: "rest-dishoom"}, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult_RollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO restaurants").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rest-1"))
	mock.ExpectExec("INSERT INTO restaurant_locations").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.SaveResult(context.Background(), "city-1", "cat-1", chainResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Ratings
// ==========================

var ratingCols = []string{"id", "user_id", "restaurant_id", "score", "source_tag", "review_text", "created_at"}

func TestRatingsForRestaurants(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("FROM ratings WHERE restaurant_id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(ratingCols).
			AddRow("a", "u1", "r1", 8.0, "user", nil, now).
			AddRow("b", nil, "r1", 9.0, "google", nil, now).
			AddRow("c", "u2", "r2", 6.5, "user", "ok", now))

	got, err := s.RatingsForRestaurants(context.Background(), []string{"r1", "r2", "r3"})
	require.NoError(t, err)

	assert.Len(t, got["r1"], 2)
	assert.Len(t, got["r2"], 1)
	assert.Nil(t, got["r1"][1].UserID)
	assert.Equal(t, "ok", *got["r2"][0].ReviewText)
	_, ok := got["r3"]
	assert.False(t, ok)
}

func TestRatingsForRestaurants_Empty(t *testing.T) {
	s, mock := newMockStore(t)

	got, err := s.RatingsForRestaurants(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUserRating(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("(?s)INSERT INTO ratings.*ON CONFLICT \\(user_id, restaurant_id\\)").
		WithArgs(sqlmock.AnyArg(), "u1", "r1", 7.5, "user", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("rating-1", now))

	r, err := s.UpsertUserRating(context.Background(), models.Rating{UserID: strPtr("u1"), RestaurantID: "r1", Score: 7.5})
	require.NoError(t, err)
	assert.Equal(t, "rating-1", r.ID)
	assert.Equal(t, models.SourceUser, r.SourceTag)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUserRating_RequiresUser(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.UpsertUserRating(context.Background(), models.Rating{RestaurantID: "r1", Score: 5})
	assert.Error(t, err)
}

// ==========================
// Lists
// ==========================

func TestAddMyListEntry(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO my_list_entries").
		WithArgs(sqlmock.AnyArg(), "u1", "r1").
		WillReturnRows(sqlmock.NewRows([]string{"position", "created_at"}).AddRow(3, now))

	e, err := s.AddMyListEntry(context.Background(), "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, e.Position)
	assert.NotEmpty(t, e.ID)
}

func TestAddMyListEntry_Duplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO my_list_entries").
		WithArgs(sqlmock.AnyArg(), "u1", "r1").
		WillReturnRows(sqlmock.NewRows([]string{"position", "created_at"}))

	_, err := s.AddMyListEntry(context.Background(), "u1", "r1")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMyList(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("FROM my_list_entries e\\s+JOIN restaurants").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "restaurant_id", "position", "name", "neighbourhood", "created_at"}).
			AddRow("e1", "u1", "r1", 1, "Dishoom", "Shoreditch", now).
			AddRow("e2", "u1", "r2", 2, "Five Guys", models.MultipleLocations, now))

	list, err := s.MyList(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Dishoom", list[0].RestaurantName)
	assert.Equal(t, 2, list[1].Position)
}
