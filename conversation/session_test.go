package conversation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-whatsapp/models"
)

func exerciseSessionStore(t *testing.T, store SessionStore, phone string) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, phone)
	require.ErrorIs(t, err, models.ErrNotFound)

	s := Session{
		Phone:          phone,
		State:          StateAwaitingPaymentProof,
		PendingOrderID: "order-1",
		Cart:           []models.OrderItem{{Name: "Burger", Quantity: 2, Price: 150}},
		UpdatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Set(ctx, s))

	got, err := store.Get(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, s.State, got.State)
	assert.Equal(t, s.PendingOrderID, got.PendingOrderID)
	assert.Equal(t, s.Cart, got.Cart)

	require.NoError(t, store.Delete(ctx, phone))
	_, err = store.Get(ctx, phone)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemorySessions(t *testing.T) {
	exerciseSessionStore(t, NewMemorySessions(), "911")
}

func TestMemorySessionsCopiesCart(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessions()
	cart := []models.OrderItem{{Name: "Burger", Quantity: 1}}
	require.NoError(t, store.Set(ctx, Session{Phone: "911", Cart: cart}))
	cart[0].Quantity = 5

	got, err := store.Get(ctx, "911")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Cart[0].Quantity)
}

func TestRedisSessions(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client, err := OpenRedis(context.Background(), addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	exerciseSessionStore(t, NewRedisSessions(client, time.Minute), "test-"+time.Now().Format("150405.000"))
}
