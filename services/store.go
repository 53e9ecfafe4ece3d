package services

import (
	"context"
	"time"

	"food-whatsapp/models"
)

// CustomerRepository persists customer profiles. Implemented by every db driver.
type CustomerRepository interface {
	GetCustomer(ctx context.Context, phone string) (*models.Customer, error)
	// InsertCustomer creates c unless the phone already exists; it returns the stored record.
	InsertCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, phone string, upd models.ProfileUpdate, seenAt time.Time) (*models.Customer, error)
	ListRecentCustomers(ctx context.Context, limit int) ([]models.Customer, error)
}

type MenuRepository interface {
	FindAvailableMenuItemByName(ctx context.Context, name string) (*models.MenuItem, error)
	ListAvailableMenu(ctx context.Context) ([]models.MenuItem, error)
	ListAllMenu(ctx context.Context) ([]models.MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
	InsertMenuItem(ctx context.Context, item *models.MenuItem) error
	UpdateMenuItem(ctx context.Context, item *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id string) error
}

type RateRepository interface {
	ListDeliveryRates(ctx context.Context) ([]models.DeliveryRate, error)
	ReplaceDeliveryRates(ctx context.Context, rates []models.DeliveryRate) error
}

type OrderRepository interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// SaveOrder overwrites the mutable fields (status, payment, address) of an existing order.
	SaveOrder(ctx context.Context, o *models.Order) error
	// LatestOrderByStatus returns the newest order of phone in the given status.
	LatestOrderByStatus(ctx context.Context, phone, status string) (*models.Order, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
	InsertPaymentProof(ctx context.Context, p *models.PaymentProof) error
	SaveOutboundMessage(ctx context.Context, m *models.OutboundMessage) error
	// StatusNotifiedSince reports whether the same order/status notification was logged after since.
	StatusNotifiedSince(ctx context.Context, orderID, status string, since time.Time) (bool, error)
}

// Store is everything a single db driver provides.
type Store interface {
	CustomerRepository
	MenuRepository
	RateRepository
	OrderRepository
	Close() error
}
