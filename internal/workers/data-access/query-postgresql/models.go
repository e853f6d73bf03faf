// internal/workers/data-access/query-postgresql/models.go
package querypostgresql

import "dishlist-workers/internal/models"

type Input struct {
	QueryType    string `json:"queryType"`
	RestaurantID string `json:"restaurantId,omitempty"`
	UserID       string `json:"userId,omitempty"`
}

type Output struct {
	Data               interface{} `json:"data"`
	RowCount           int         `json:"rowCount"`
	QueryExecutionTime int64       `json:"queryExecutionTime"` // milliseconds
}

type QueryType = models.QueryType

var (
	QueryTypeRestaurantDetails = models.QueryTypeRestaurantDetails
	QueryTypeMyList            = models.QueryTypeMyList
	QueryTypeUserRatings       = models.QueryTypeUserRatings
	QueryTypeCategories        = models.QueryTypeCategories
)
