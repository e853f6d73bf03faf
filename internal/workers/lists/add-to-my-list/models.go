package addtomylist

import "dishlist-workers/internal/models"

type Input struct {
	UserID       string `json:"userId"`
	RestaurantID string `json:"restaurantId"`
}

type Output struct {
	Entry models.MyListEntry `json:"entry"`
}
