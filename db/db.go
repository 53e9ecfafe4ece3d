package db

import (
	"errors"
	"sort"
	"strings"

	"food-whatsapp/models"
	"food-whatsapp/services"
)

var (
	_ services.Store = (*Memory)(nil)
	_ services.Store = (*Postgres)(nil)
	_ services.Store = (*Mongo)(nil)
)

// ErrDuplicateName is returned when a menu item name is already taken (case-insensitive).
var ErrDuplicateName = errors.New("menu item name already exists")

// applyProfileUpdate merges upd into c. Without an explicit Complete the flag follows
// whether both a real name and an address are present.
func applyProfileUpdate(c *models.Customer, upd models.ProfileUpdate) {
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Address != nil {
		c.Address = *upd.Address
	}
	if upd.Location != nil {
		loc := *upd.Location
		c.Location = &loc
	}
	if upd.Language != nil {
		c.Language = *upd.Language
	}
	switch {
	case upd.Complete != nil:
		c.ProfileComplete = *upd.Complete
	case upd.Name != nil || upd.Address != nil:
		c.ProfileComplete = c.HasName() && c.HasAddress()
	}
}

func sortMenu(items []models.MenuItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
}
