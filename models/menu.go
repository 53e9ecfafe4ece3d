package models

import "time"

// MenuItem is an orderable dish. Name is unique (case-insensitive) within the catalog.
type MenuItem struct {
	ID          string    `json:"id" bson:"_id"`
	Category    string    `json:"category" bson:"category"` // "food", "drink", "dessert"
	Name        string    `json:"name" bson:"name"`
	Price       int64     `json:"price" bson:"price"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Available   bool      `json:"available" bson:"available"`
	Trending    bool      `json:"trending" bson:"trending"`
	IsNew       bool      `json:"isNew" bson:"isNew"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

const (
	CategoryFood    = "food"
	CategoryDrink   = "drink"
	CategoryDessert = "dessert"
)

// ValidCategory reports whether c is one of the known menu categories.
func ValidCategory(c string) bool {
	return c == CategoryFood || c == CategoryDrink || c == CategoryDessert
}

// DeliveryRate is one step of the distance → fee function.
type DeliveryRate struct {
	MaxKm float64 `json:"maxKm" bson:"maxKm"`
	Fee   int64   `json:"fee" bson:"fee"`
}
