package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"food-whatsapp/models"
)

// MenuCatalog is read-only for the conversation; the Add/Update/Delete methods serve the admin API.
type MenuCatalog struct {
	repo MenuRepository
}

func NewMenuCatalog(repo MenuRepository) *MenuCatalog {
	return &MenuCatalog{repo: repo}
}

// FindAvailableByName matches name case-insensitively against available items only.
// It returns models.ErrNotFound when nothing matches.
func (m *MenuCatalog) FindAvailableByName(ctx context.Context, name string) (*models.MenuItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.ErrNotFound
	}
	return m.repo.FindAvailableMenuItemByName(ctx, name)
}

func (m *MenuCatalog) ListAvailable(ctx context.Context) ([]models.MenuItem, error) {
	return m.repo.ListAvailableMenu(ctx)
}

func (m *MenuCatalog) List(ctx context.Context) ([]models.MenuItem, error) {
	return m.repo.ListAllMenu(ctx)
}

func (m *MenuCatalog) Get(ctx context.Context, id string) (*models.MenuItem, error) {
	return m.repo.GetMenuItem(ctx, id)
}

func validateMenuItem(item *models.MenuItem) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMenuItem)
	}
	if item.Price < 0 {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidMenuItem)
	}
	if item.Category == "" {
		item.Category = models.CategoryFood
	}
	if !models.ValidCategory(item.Category) {
		return fmt.Errorf("%w: invalid category: %s", ErrInvalidMenuItem, item.Category)
	}
	return nil
}

func (m *MenuCatalog) Add(ctx context.Context, item *models.MenuItem) error {
	if err := validateMenuItem(item); err != nil {
		return err
	}
	now := time.Now()
	item.CreatedAt, item.UpdatedAt = now, now
	return m.repo.InsertMenuItem(ctx, item)
}

func (m *MenuCatalog) Update(ctx context.Context, item *models.MenuItem) error {
	if err := validateMenuItem(item); err != nil {
		return err
	}
	item.UpdatedAt = time.Now()
	return m.repo.UpdateMenuItem(ctx, item)
}

func (m *MenuCatalog) Delete(ctx context.Context, id string) error {
	return m.repo.DeleteMenuItem(ctx, id)
}
