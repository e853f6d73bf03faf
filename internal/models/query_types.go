package models

type QueryType string

const (
	QueryTypeRestaurantDetails QueryType = "restaurant_details"
	QueryTypeMyList            QueryType = "my_list"
	QueryTypeUserRatings       QueryType = "user_ratings"
	QueryTypeCategories        QueryType = "categories"
)

type SearchType string

const (
	SearchTypeRestaurant SearchType = "restaurant_search"
	SearchTypeNearby     SearchType = "nearby_restaurants"
)
