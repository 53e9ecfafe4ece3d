package services

import "errors"

var (
	ErrInvalidRate     = errors.New("delivery rate needs maxKm > 0 and fee >= 0")
	ErrInvalidMenuItem = errors.New("invalid menu item")
	ErrNoItems         = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("order line quantity out of range")
	ErrBadTransition   = errors.New("status transition not allowed")
)
