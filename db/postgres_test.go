package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-whatsapp/models"
)

func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	p, err := OpenPostgres(context.Background(), dsn, os.DirFS(".."))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPostgresOrderRoundTrip(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()
	phone := "test-" + uuid.NewString()[:8]
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := p.InsertCustomer(ctx, &models.Customer{Phone: phone, Name: models.PlaceholderName, LastSeen: now, CreatedAt: now})
	require.NoError(t, err)

	o := &models.Order{
		ID:               uuid.NewString(),
		CustomerPhone:    phone,
		Items:            []models.OrderItem{{Name: "Burger", Quantity: 2, Price: 150}},
		Subtotal:         300,
		DeliveryFee:      40,
		Total:            340,
		CustomerLocation: &models.GeoPoint{Lat: 12.9, Lon: 77.6},
		Status:           models.OrderStatusPendingConfirmation,
		PaymentMethod:    models.PaymentCOD,
		PaymentStatus:    models.PaymentStatusUnpaid,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, p.InsertOrder(ctx, o))

	got, err := p.LatestOrderByStatus(ctx, phone, models.OrderStatusPendingConfirmation)
	require.NoError(t, err)
	assert.Equal(t, o.Items, got.Items)
	assert.Equal(t, int64(340), got.Total)
	require.NotNil(t, got.CustomerLocation)

	_, err = p.GetOrder(ctx, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
