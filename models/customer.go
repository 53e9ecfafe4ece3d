package models

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by every store driver when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// PlaceholderName is the display name given to a customer before they tell us theirs.
const PlaceholderName = "Customer"

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lon float64 `json:"lon" bson:"lon"`
}

// Customer is keyed by phone number (the messaging address).
type Customer struct {
	Phone           string    `json:"phone" bson:"_id"`
	Name            string    `json:"name" bson:"name"`
	Address         string    `json:"address,omitempty" bson:"address,omitempty"`
	Location        *GeoPoint `json:"location,omitempty" bson:"location,omitempty"`
	ProfileComplete bool      `json:"isProfileComplete" bson:"isProfileComplete"`
	Language        string    `json:"language,omitempty" bson:"language,omitempty"`
	LastSeen        time.Time `json:"lastSeen" bson:"lastSeen"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
}

// HasName is false while the customer still carries the placeholder name.
func (c *Customer) HasName() bool {
	n := strings.TrimSpace(c.Name)
	return n != "" && n != PlaceholderName
}

// HasAddress reports whether a delivery address was ever supplied.
func (c *Customer) HasAddress() bool {
	return strings.TrimSpace(c.Address) != ""
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	Name     *string
	Address  *string
	Location *GeoPoint
	Complete *bool
	Language *string
}
