package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-whatsapp/db"
	"food-whatsapp/lang"
	"food-whatsapp/models"
	"food-whatsapp/services"
)

type fakeMessenger struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (f *fakeMessenger) SendText(ctx context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = make(map[string][]string)
	}
	f.sent[to] = append(f.sent[to], text)
	return nil
}

func (f *fakeMessenger) last(to string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.sent[to]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

type failingSessions struct {
	*MemorySessions
}

func (f failingSessions) Set(ctx context.Context, s Session) error {
	return errors.New("session store down")
}

type harness struct {
	store    *db.Memory
	orders   *services.OrderStore
	sessions SessionStore
	engine   *Engine
	out      *fakeMessenger
}

func newHarness(t *testing.T, flow Flow, sessions SessionStore) *harness {
	t.Helper()
	ctx := context.Background()
	store := db.NewMemory()
	catalog := services.NewMenuCatalog(store)
	require.NoError(t, catalog.Add(ctx, &models.MenuItem{Name: "Burger", Price: 150, Available: true}))
	require.NoError(t, catalog.Add(ctx, &models.MenuItem{Name: "Pizza", Price: 100, Available: true}))
	require.NoError(t, store.ReplaceDeliveryRates(ctx, []models.DeliveryRate{{MaxKm: 5, Fee: 20}, {MaxKm: 10, Fee: 40}}))

	orders := services.NewOrderStore(store, store, nil, nil, services.OrderOptions{
		Currency:      flow.Currency,
		DefaultLang:   lang.En,
		AdminApproval: flow.AdminApproval,
	})
	if sessions == nil {
		sessions = NewMemorySessions()
	}
	engine := NewEngine(Deps{
		Customers: services.NewCustomerDirectory(store),
		Catalog:   catalog,
		Pricing:   services.NewPricing(store, &models.GeoPoint{}),
		Orders:    orders,
		Sessions:  sessions,
	}, flow, nil)
	out := &fakeMessenger{}
	engine.SetMessenger(out)
	orders.SetNotifier(out)
	orders.OnStatusChange(engine.OnOrderStatus)
	return &harness{store: store, orders: orders, sessions: sessions, engine: engine, out: out}
}

func (h *harness) say(in Inbound) string {
	if in.From == "" {
		in.From = "911"
	}
	h.engine.Handle(context.Background(), in)
	return h.out.last(in.From)
}

func (h *harness) onboard(t *testing.T) {
	t.Helper()
	h.say(Inbound{Text: "menu"})
	h.say(Inbound{Text: "Asha"})
	assert.Equal(t, lang.T(lang.En, "profile_saved"), h.say(Inbound{Text: "12 MG Road", Location: &models.GeoPoint{Lat: 0.063, Lon: 0}}))
}

func TestEngineOrderToConfirmation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testFlow, nil)

	assert.Equal(t, lang.T(lang.En, "ask_name"), h.say(Inbound{Text: "Burger x2"}))
	assert.Equal(t, lang.T(lang.En, "ask_address", "Asha"), h.say(Inbound{Text: "Asha"}))
	h.say(Inbound{Text: "12 MG Road", Location: &models.GeoPoint{Lat: 0.063, Lon: 0}})

	c, err := h.store.GetCustomer(ctx, "911")
	require.NoError(t, err)
	assert.True(t, c.ProfileComplete)
	require.NotNil(t, c.Location)

	summary := h.say(Inbound{Text: "Burger x2"})
	assert.Contains(t, summary, "₹340")

	pending, err := h.orders.LatestPending(ctx, "911")
	require.NoError(t, err)
	assert.Equal(t, int64(300), pending.Subtotal)
	assert.Equal(t, int64(40), pending.DeliveryFee)
	assert.Equal(t, int64(340), pending.Total)
	assert.Equal(t, "12 MG Road", pending.DeliveryAddress)

	sess, err := h.sessions.Get(ctx, "911")
	require.NoError(t, err)
	assert.Len(t, sess.Cart, 1)

	placed := h.say(Inbound{Text: "confirm"})
	assert.Equal(t, lang.T(lang.En, "order_placed", pending.ShortID(), "₹340", lang.T(lang.En, "payment_cod")), placed)

	o, err := h.store.GetOrder(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, o.Status)

	sess, err = h.sessions.Get(ctx, "911")
	require.NoError(t, err)
	assert.Empty(t, sess.Cart)

	assert.Equal(t, lang.T(lang.En, "nothing_to_confirm"), h.say(Inbound{Text: "confirm"}))
	all, err := h.store.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEngineConfirmWithoutPendingCreatesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testFlow, nil)
	h.onboard(t)

	assert.Equal(t, lang.T(lang.En, "nothing_to_confirm"), h.say(Inbound{Text: "confirm"}))
	all, err := h.store.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEngineUnresolvedItems(t *testing.T) {
	h := newHarness(t, testFlow, nil)
	h.onboard(t)

	assert.Equal(t, lang.T(lang.En, "items_not_found", "Sandwitch"), h.say(Inbound{Text: "Sandwitch x1"}))

	summary := h.say(Inbound{Text: "Pizza x1, Sandwitch x1"})
	assert.Contains(t, summary, "Sandwitch")
	assert.Contains(t, summary, "Pizza")
}

func TestEnginePaymentProofFlow(t *testing.T) {
	ctx := context.Background()
	flow := testFlow
	flow.PaymentProof = true
	h := newHarness(t, flow, nil)
	h.onboard(t)

	h.say(Inbound{Text: "Pizza x1"})
	pending, err := h.orders.LatestPending(ctx, "911")
	require.NoError(t, err)

	assert.Equal(t, lang.T(lang.En, "choose_payment", pending.ShortID(), "₹140"), h.say(Inbound{Text: "confirm"}))
	assert.Equal(t, lang.T(lang.En, "upi_instructions", "₹140", "spice@upi"), h.say(Inbound{Text: "upi"}))
	assert.Equal(t, lang.T(lang.En, "proof_retry", pending.ShortID()), h.say(Inbound{Text: "done"}))

	sess, err := h.sessions.Get(ctx, "911")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingPaymentProof, sess.State)

	h.say(Inbound{Text: "123456789012"})
	o, err := h.store.GetOrder(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.Equal(t, models.PaymentUPI, o.PaymentMethod)
	assert.Equal(t, models.PaymentStatusVerificationPending, o.PaymentStatus)

	proofs := h.store.PaymentProofs(pending.ID)
	require.Len(t, proofs, 1)
	assert.Equal(t, "123456789012", proofs[0].UTR)

	sess, err = h.sessions.Get(ctx, "911")
	require.NoError(t, err)
	assert.Equal(t, StateDefault, sess.State)
}

func TestEngineFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	sessions := failingSessions{NewMemorySessions()}
	h := newHarness(t, testFlow, sessions)

	assert.Equal(t, lang.T(lang.En, "something_wrong"), h.say(Inbound{Text: "Burger x1"}))
	_, err := sessions.Get(ctx, "911")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEngineAdminConfirmClearsCart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testFlow, nil)
	h.onboard(t)
	h.say(Inbound{Text: "Burger x1"})

	pending, err := h.orders.LatestPending(ctx, "911")
	require.NoError(t, err)
	sess, err := h.sessions.Get(ctx, "911")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Cart)

	_, err = h.orders.SetStatus(ctx, pending.ID, models.OrderStatusConfirmed, nil)
	require.NoError(t, err)

	sess, err = h.sessions.Get(ctx, "911")
	require.NoError(t, err)
	assert.Empty(t, sess.Cart)
	assert.Equal(t, lang.T(lang.En, "status_confirmed", pending.ShortID(), "₹190"), h.out.last("911"))
}

func TestEngineSerialisesSameCustomer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testFlow, nil)
	h.onboard(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.engine.Handle(ctx, Inbound{From: "911", Text: "Pizza x1"})
		}()
	}
	wg.Wait()

	all, err := h.store.ListOrders(ctx, models.OrderFilter{CustomerPhone: "911"})
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestLockPhoneUsesBoundedStripes(t *testing.T) {
	for i := 0; i < 5000; i++ {
		phone := fmt.Sprintf("9198%08d", i)
		s := stripeFor(phone)
		require.GreaterOrEqual(t, s, 0)
		require.Less(t, s, lockStripes)
		require.Equal(t, s, stripeFor(phone))
	}

	e := NewEngine(Deps{}, testFlow, nil)
	unlock := e.lockPhone("911")
	acquired := make(chan struct{})
	go func() {
		release := e.lockPhone("911")
		close(acquired)
		release()
	}()
	select {
	case <-acquired:
		t.Fatal("same customer entered while the lock was held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not released")
	}
}
