package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"food-whatsapp/models"
)

// CustomerDirectory owns customer lookup and profile updates. Every write refreshes LastSeen.
type CustomerDirectory struct {
	repo CustomerRepository
	now  func() time.Time
}

func NewCustomerDirectory(repo CustomerRepository) *CustomerDirectory {
	return &CustomerDirectory{repo: repo, now: time.Now}
}

// FindOrCreate returns the customer for phone, creating one with the placeholder name on
// first contact. The returned record always carries a fresh LastSeen.
func (d *CustomerDirectory) FindOrCreate(ctx context.Context, phone string) (*models.Customer, error) {
	now := d.now()
	c, err := d.repo.GetCustomer(ctx, phone)
	if err == nil {
		return d.repo.UpdateCustomer(ctx, phone, models.ProfileUpdate{}, now)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	c = &models.Customer{
		Phone:     phone,
		Name:      models.PlaceholderName,
		LastSeen:  now,
		CreatedAt: now,
	}
	return d.repo.InsertCustomer(ctx, c)
}

func (d *CustomerDirectory) Get(ctx context.Context, phone string) (*models.Customer, error) {
	return d.repo.GetCustomer(ctx, phone)
}

// UpdateProfile applies a partial update. Supplying a name or address re-evaluates the
// profile-completion flag unless upd sets it explicitly.
func (d *CustomerDirectory) UpdateProfile(ctx context.Context, phone string, upd models.ProfileUpdate) (*models.Customer, error) {
	if upd.Name != nil {
		n := strings.TrimSpace(*upd.Name)
		upd.Name = &n
	}
	if upd.Address != nil {
		a := strings.TrimSpace(*upd.Address)
		upd.Address = &a
	}
	return d.repo.UpdateCustomer(ctx, phone, upd, d.now())
}

// Recent lists customers by LastSeen, newest first.
func (d *CustomerDirectory) Recent(ctx context.Context, limit int) ([]models.Customer, error) {
	if limit <= 0 {
		limit = 50
	}
	return d.repo.ListRecentCustomers(ctx, limit)
}
