package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-whatsapp/models"
)

func strPtr(s string) *string { return &s }

func TestMemoryCustomerProfileCompletion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	_, err := m.InsertCustomer(ctx, &models.Customer{Phone: "911", Name: models.PlaceholderName, CreatedAt: now})
	require.NoError(t, err)

	c, err := m.UpdateCustomer(ctx, "911", models.ProfileUpdate{Name: strPtr("Asha")}, now)
	require.NoError(t, err)
	assert.False(t, c.ProfileComplete)

	c, err = m.UpdateCustomer(ctx, "911", models.ProfileUpdate{Address: strPtr("12 MG Road")}, now)
	require.NoError(t, err)
	assert.True(t, c.ProfileComplete)
	assert.Equal(t, "Asha", c.Name)

	_, err = m.UpdateCustomer(ctx, "missing", models.ProfileUpdate{}, now)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryInsertCustomerKeepsExisting(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.InsertCustomer(ctx, &models.Customer{Phone: "911", Name: "Asha"})
	require.NoError(t, err)

	c, err := m.InsertCustomer(ctx, &models.Customer{Phone: "911", Name: models.PlaceholderName})
	require.NoError(t, err)
	assert.Equal(t, "Asha", c.Name)
}

func TestMemoryMenu(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertMenuItem(ctx, &models.MenuItem{Name: "Burger", Price: 150, Category: "food", Available: true}))
	require.NoError(t, m.InsertMenuItem(ctx, &models.MenuItem{Name: "Lassi", Price: 60, Category: "drink", Available: false}))
	assert.ErrorIs(t, m.InsertMenuItem(ctx, &models.MenuItem{Name: "burger", Price: 1}), ErrDuplicateName)

	it, err := m.FindAvailableMenuItemByName(ctx, "BURGER")
	require.NoError(t, err)
	assert.Equal(t, int64(150), it.Price)

	_, err = m.FindAvailableMenuItemByName(ctx, "lassi")
	assert.ErrorIs(t, err, models.ErrNotFound)

	avail, err := m.ListAvailableMenu(ctx)
	require.NoError(t, err)
	require.Len(t, avail, 1)

	all, err := m.ListAllMenu(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "drink", all[0].Category)
}

func TestMemoryOrders(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()
	for i, status := range []string{models.OrderStatusPendingConfirmation, models.OrderStatusPendingConfirmation, models.OrderStatusDelivered} {
		require.NoError(t, m.InsertOrder(ctx, &models.Order{
			ID:            string(rune('a' + i)),
			CustomerPhone: "911",
			Status:        status,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	o, err := m.LatestOrderByStatus(ctx, "911", models.OrderStatusPendingConfirmation)
	require.NoError(t, err)
	assert.Equal(t, "b", o.ID)

	list, err := m.ListOrders(ctx, models.OrderFilter{CustomerPhone: "911", Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)

	o.Status = models.OrderStatusPending
	o.Subtotal = 999
	require.NoError(t, m.SaveOrder(ctx, o))
	got, err := m.GetOrder(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	assert.Zero(t, got.Subtotal)
}

func TestMemoryStatusNotifiedSince(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	require.NoError(t, m.SaveOutboundMessage(ctx, &models.OutboundMessage{OrderID: "o1", Status: "ready", CreatedAt: now}))

	dup, err := m.StatusNotifiedSince(ctx, "o1", "ready", now.Add(-30*time.Second))
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = m.StatusNotifiedSince(ctx, "o1", "delivered", now.Add(-30*time.Second))
	require.NoError(t, err)
	assert.False(t, dup)
}
