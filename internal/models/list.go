package models

import "time"

type MyListEntry struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	RestaurantID   string    `json:"restaurantId"`
	Position       int       `json:"position"`
	RestaurantName string    `json:"restaurantName,omitempty"`
	Neighbourhood  string    `json:"neighbourhood,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
