package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-whatsapp/lang"
	"food-whatsapp/models"
)

var testFlow = Flow{AdminApproval: true, ShopName: "Spice Hub", Currency: "₹", UPIID: "spice@upi", DefaultLang: lang.En}

func completeCustomer() *models.Customer {
	return &models.Customer{Phone: "911", Name: "Asha", Address: "12 MG Road", ProfileComplete: true}
}

func replyOf(key string, args ...interface{}) Effect {
	return Reply{Text: lang.T(lang.En, key, args...)}
}

func TestTransitionGatesIncompleteProfile(t *testing.T) {
	s := newSession("911")
	c := &models.Customer{Phone: "911", Name: models.PlaceholderName}

	next, effects := Transition(s, Facts{Customer: c}, Inbound{From: "911", Text: "Burger x2"}, testFlow)
	assert.Equal(t, StateCollectingName, next.State)
	assert.Equal(t, []Effect{replyOf("ask_name")}, effects)

	next, effects = Transition(next, Facts{Customer: c}, Inbound{From: "911", Text: "menu"}, testFlow)
	assert.Equal(t, StateCollectingAddress, next.State)
	require.Len(t, effects, 2)
	assert.Equal(t, SaveName{Name: "menu"}, effects[0])

	next, effects = Transition(next, Facts{Customer: c}, Inbound{From: "911", Text: " 12 MG Road "}, testFlow)
	assert.Equal(t, StateDefault, next.State)
	assert.Equal(t, SaveAddress{Address: "12 MG Road"}, effects[0])
}

func TestTransitionNamedButNoAddress(t *testing.T) {
	c := &models.Customer{Phone: "911", Name: "Asha"}
	next, effects := Transition(newSession("911"), Facts{Customer: c}, Inbound{Text: "menu"}, testFlow)
	assert.Equal(t, StateCollectingAddress, next.State)
	assert.Equal(t, []Effect{replyOf("ask_address", "Asha")}, effects)
}

func TestTransitionBlankInputRetries(t *testing.T) {
	s := Session{Phone: "911", State: StateCollectingName}
	next, effects := Transition(s, Facts{}, Inbound{Text: "   "}, testFlow)
	assert.Equal(t, StateCollectingName, next.State)
	assert.Equal(t, []Effect{replyOf("ask_name_retry")}, effects)

	s.State = StateCollectingAddress
	loc := &models.GeoPoint{Lat: 1, Lon: 2}
	next, effects = Transition(s, Facts{}, Inbound{Location: loc}, testFlow)
	assert.Equal(t, StateCollectingAddress, next.State)
	assert.Equal(t, SaveLocation{Location: *loc}, effects[0])
}

func TestTransitionAllowListBypassesGating(t *testing.T) {
	c := &models.Customer{Phone: "911", Name: models.PlaceholderName}
	for _, text := range []string{"hi", "Hello", "START", "help", "profile", "order"} {
		next, effects := Transition(newSession("911"), Facts{Customer: c}, Inbound{Text: text}, testFlow)
		assert.Equal(t, StateDefault, next.State, text)
		require.Len(t, effects, 1, text)
		assert.IsType(t, Reply{}, effects[0], text)
	}
	_, effects := Transition(newSession("911"), Facts{Customer: c}, Inbound{Text: "hi"}, testFlow)
	assert.Equal(t, []Effect{replyOf("welcome", "Spice Hub")}, effects)
}

func TestTransitionConfirm(t *testing.T) {
	c := completeCustomer()

	_, effects := Transition(newSession("911"), Facts{Customer: c}, Inbound{Text: "confirm"}, testFlow)
	assert.Equal(t, []Effect{replyOf("nothing_to_confirm")}, effects)

	pending := &models.Order{ID: "order-1", Total: 340, Status: models.OrderStatusPendingConfirmation}
	_, effects = Transition(newSession("911"), Facts{Customer: c, Pending: pending}, Inbound{Text: "Confirm Order"}, testFlow)
	assert.Equal(t, []Effect{
		ConfirmOrder{OrderID: "order-1", PaymentMethod: models.PaymentCOD, PaymentStatus: models.PaymentStatusUnpaid},
		ClearCart{},
	}, effects)
}

func TestTransitionPaymentProofFlow(t *testing.T) {
	flow := testFlow
	flow.PaymentProof = true
	c := completeCustomer()
	pending := &models.Order{ID: "order-1", Total: 340, Status: models.OrderStatusPendingConfirmation}
	facts := Facts{Customer: c, Pending: pending}

	s, effects := Transition(newSession("911"), facts, Inbound{Text: "confirm"}, flow)
	assert.Equal(t, StateDefault, s.State)
	assert.Equal(t, []Effect{replyOf("choose_payment", "order-1", "₹340")}, effects)

	s, effects = Transition(s, facts, Inbound{Text: "upi"}, flow)
	assert.Equal(t, StateAwaitingPaymentProof, s.State)
	assert.Equal(t, "order-1", s.PendingOrderID)
	assert.Equal(t, []Effect{replyOf("upi_instructions", "₹340", "spice@upi")}, effects)

	retry, effects := Transition(s, facts, Inbound{Text: "paid already"}, flow)
	assert.Equal(t, StateAwaitingPaymentProof, retry.State)
	assert.Equal(t, []Effect{replyOf("proof_retry", "order-1")}, effects)

	_, effects = Transition(s, facts, Inbound{Text: "12345"}, flow)
	assert.Equal(t, []Effect{replyOf("proof_retry", "order-1")}, effects)

	done, effects := Transition(s, facts, Inbound{Text: "123456789012"}, flow)
	assert.Equal(t, StateDefault, done.State)
	assert.Empty(t, done.PendingOrderID)
	assert.Equal(t, RecordPaymentProof{OrderID: "order-1", UTR: "123456789012"}, effects[0])
	assert.Equal(t, ConfirmOrder{OrderID: "order-1", PaymentMethod: models.PaymentUPI, PaymentStatus: models.PaymentStatusVerificationPending}, effects[2])

	done, effects = Transition(s, facts, Inbound{HasMedia: true, MediaType: "image/jpeg", MediaID: "m-1"}, flow)
	assert.Equal(t, StateDefault, done.State)
	assert.Equal(t, RecordPaymentProof{OrderID: "order-1", MediaID: "m-1", ContentType: "image/jpeg"}, effects[0])
}

func TestTransitionAwaitingProofOnlyAcceptsProof(t *testing.T) {
	flow := testFlow
	flow.PaymentProof = true
	pending := &models.Order{ID: "order-1", Total: 340, Status: models.OrderStatusPendingConfirmation}
	facts := Facts{Customer: completeCustomer(), Pending: pending}
	s := Session{Phone: "911", State: StateAwaitingPaymentProof, PendingOrderID: "order-1"}

	for _, text := range []string{"cod", "cancel", "confirm", "menu", "Burger x2", ""} {
		t.Run(text, func(t *testing.T) {
			next, effects := Transition(s, facts, Inbound{Text: text}, flow)
			assert.Equal(t, StateAwaitingPaymentProof, next.State)
			assert.Equal(t, "order-1", next.PendingOrderID)
			assert.Equal(t, []Effect{replyOf("proof_retry", "order-1")}, effects)
		})
	}
}

func TestTransitionAwaitingProofWithoutOrderResets(t *testing.T) {
	s := Session{Phone: "911", State: StateAwaitingPaymentProof, PendingOrderID: "gone"}
	next, effects := Transition(s, Facts{Customer: completeCustomer()}, Inbound{Text: "123456789012"}, testFlow)
	assert.Equal(t, StateDefault, next.State)
	assert.Equal(t, []Effect{replyOf("nothing_to_confirm")}, effects)
}

func TestTransitionUPIDisabled(t *testing.T) {
	pending := &models.Order{ID: "order-1"}
	_, effects := Transition(newSession("911"), Facts{Customer: completeCustomer(), Pending: pending}, Inbound{Text: "upi"}, testFlow)
	assert.Equal(t, []Effect{replyOf("not_understood")}, effects)
}

func TestTransitionDefaultCommands(t *testing.T) {
	c := completeCustomer()
	tests := []struct {
		text string
		want Effect
	}{
		{"menu", ShowMenu{}},
		{"my orders", ShowOrders{Limit: recentOrdersLimit}},
		{"orders", ShowOrders{Limit: recentOrdersLimit}},
		{"cart", replyOf("cart_empty")},
		{"cancel", replyOf("nothing_to_cancel")},
		{"what's up", replyOf("not_understood")},
	}
	for _, tt := range tests {
		_, effects := Transition(newSession("911"), Facts{Customer: c}, Inbound{Text: tt.text}, testFlow)
		require.NotEmpty(t, effects, tt.text)
		assert.Equal(t, tt.want, effects[0], tt.text)
	}
}

func TestTransitionOrderMessage(t *testing.T) {
	loc := &models.GeoPoint{Lat: 0.063}
	_, effects := Transition(newSession("911"), Facts{Customer: completeCustomer()}, Inbound{Text: "Burger x2, Pizza x1", Location: loc}, testFlow)
	require.Len(t, effects, 1)
	intake, ok := effects[0].(IntakeOrder)
	require.True(t, ok)
	assert.Len(t, intake.Candidates, 2)
	assert.Equal(t, loc, intake.Location)
}

func TestTransitionBareLocation(t *testing.T) {
	loc := &models.GeoPoint{Lat: 12.9, Lon: 77.6}
	_, effects := Transition(newSession("911"), Facts{Customer: completeCustomer()}, Inbound{Location: loc}, testFlow)
	assert.Equal(t, []Effect{SaveLocation{Location: *loc}, replyOf("location_saved")}, effects)
}
