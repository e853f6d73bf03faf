// internal/workers/data-access/query-postgresql/queries/registry.go
package queries

import (
	"context"
	"errors"
	"fmt"

	"dishlist-workers/internal/models"
)

var (
	ErrMissingParam     = errors.New("missing required parameter")
	ErrUnknownQueryType = errors.New("unknown query type")
)

// Store is the read side of the restaurant store the queries run against.
type Store interface {
	Restaurant(ctx context.Context, id string) (*models.Restaurant, error)
	RestaurantLocations(ctx context.Context, restaurantID string) ([]models.Location, error)
	RestaurantCategories(ctx context.Context, restaurantID string) ([]models.Category, error)
	RestaurantRatings(ctx context.Context, restaurantID string) ([]models.Rating, error)
	UserRating(ctx context.Context, userID, restaurantID string) (*models.Rating, error)
	UserRatings(ctx context.Context, userID string) ([]models.Rating, error)
	MyList(ctx context.Context, userID string) ([]models.MyListEntry, error)
	Categories(ctx context.Context) ([]models.Category, error)
}

// QueryFunc returns: data, rowCount, executionTime (ms), error
type QueryFunc func(ctx context.Context, st Store, params map[string]interface{}) (interface{}, int, int64, error)

var Registry = map[models.QueryType]QueryFunc{
	models.QueryTypeRestaurantDetails: RestaurantDetails,
	models.QueryTypeMyList:            MyList,
	models.QueryTypeUserRatings:       UserRatings,
	models.QueryTypeCategories:        Categories,
}

func Execute(ctx context.Context, st Store, queryType models.QueryType, params map[string]interface{}) (interface{}, int, int64, error) {
	fn, exists := Registry[queryType]
	if !exists {
		return nil, 0, 0, fmt.Errorf("%w: %s", ErrUnknownQueryType, queryType)
	}
	return fn(ctx, st, params)
}

func stringParam(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, key)
	}
	return v, nil
}
