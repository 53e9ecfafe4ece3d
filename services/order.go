package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"food-whatsapp/models"
)

// Notifier delivers a text to a customer address.
type Notifier interface {
	SendText(ctx context.Context, to, text string) error
}

// Broadcaster pushes events to the admin dashboard.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// Admin broadcast event names.
const (
	EventNewOrder       = "new_order"
	EventOrderConfirmed = "order_confirmed"
	EventOrderUpdated   = "order_updated"
	EventBotStatus      = "bot_status"
)

const statusNotifyDedupWindow = 30 * time.Second

var statusRank = map[string]int{
	models.OrderStatusPendingConfirmation: 0,
	models.OrderStatusPending:             1,
	models.OrderStatusConfirmed:           2,
	models.OrderStatusPreparing:           3,
	models.OrderStatusReady:               4,
	models.OrderStatusOutForDelivery:      5,
	models.OrderStatusDelivered:           6,
	models.OrderStatusCompleted:           7,
}

// KnownStatus reports whether s is a valid order status.
func KnownStatus(s string) bool {
	_, ok := statusRank[s]
	return ok || s == models.OrderStatusCancelled
}

func isTerminal(s string) bool {
	return s == models.OrderStatusDelivered || s == models.OrderStatusCompleted || s == models.OrderStatusCancelled
}

// ValidStatusTransition allows forward moves along the lifecycle and cancellation from any
// pre-terminal status. Admin overwrites through SetStatus do not consult it.
func ValidStatusTransition(from, to string) bool {
	if to == models.OrderStatusCancelled {
		_, known := statusRank[from]
		return known && !isTerminal(from)
	}
	rf, okFrom := statusRank[from]
	rt, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	return rt > rf
}

// IsNotifiableStatus lists the statuses the customer hears about.
func IsNotifiableStatus(s string) bool {
	switch s {
	case models.OrderStatusConfirmed, models.OrderStatusPreparing, models.OrderStatusReady,
		models.OrderStatusOutForDelivery, models.OrderStatusDelivered, models.OrderStatusCancelled:
		return true
	}
	return false
}

type OrderOptions struct {
	Currency      string
	DefaultLang   string
	AdminApproval bool
}

// OrderStore persists orders and fans out customer notifications and admin broadcasts.
type OrderStore struct {
	repo      OrderRepository
	customers CustomerRepository
	notifier  Notifier
	events    Broadcaster
	log       *zap.Logger
	opts      OrderOptions
	onStatus  []func(ctx context.Context, o *models.Order)
	now       func() time.Time
}

func NewOrderStore(repo OrderRepository, customers CustomerRepository, events Broadcaster, log *zap.Logger, opts OrderOptions) *OrderStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderStore{
		repo:      repo,
		customers: customers,
		events:    events,
		log:       log,
		opts:      opts,
		now:       time.Now,
	}
}

// SetNotifier wires the outbound transport once it exists.
func (s *OrderStore) SetNotifier(n Notifier) {
	s.notifier = n
}

// OnStatusChange registers a hook run after every persisted status change.
func (s *OrderStore) OnStatusChange(f func(ctx context.Context, o *models.Order)) {
	s.onStatus = append(s.onStatus, f)
}

// PendingInput describes a freshly parsed order.
type PendingInput struct {
	Customer *models.Customer
	Items    []models.OrderItem
	Quote    Quote
	Address  string
	Location *models.GeoPoint
}

// CreatePending stores a pending_confirmation order. Total is always Subtotal + DeliveryFee.
func (s *OrderStore) CreatePending(ctx context.Context, in PendingInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	var subtotal int64
	for _, it := range in.Items {
		if it.Quantity < 1 || it.Quantity > MaxLineQuantity || it.Price < 0 {
			return nil, fmt.Errorf("%w: %s x%d", ErrInvalidQuantity, it.Name, it.Quantity)
		}
		subtotal += it.LineTotal()
	}
	now := s.now()
	o := &models.Order{
		ID:               uuid.NewString(),
		CustomerPhone:    in.Customer.Phone,
		CustomerName:     in.Customer.Name,
		Items:            in.Items,
		Subtotal:         subtotal,
		DeliveryFee:      in.Quote.Fee,
		Total:            subtotal + in.Quote.Fee,
		DistanceKm:       in.Quote.DistanceKm,
		DeliveryAddress:  in.Address,
		CustomerLocation: in.Location,
		Status:           models.OrderStatusPendingConfirmation,
		PaymentMethod:    models.PaymentCOD,
		PaymentStatus:    models.PaymentStatusUnpaid,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.InsertOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	s.broadcast(EventNewOrder, o)
	return o, nil
}

// ConfirmInput selects payment details and, optionally, the status to confirm into.
type ConfirmInput struct {
	PaymentMethod string
	PaymentStatus string
	// Target defaults to pending (admin approval on) or confirmed (approval off).
	Target string
}

// Confirm moves a pending_confirmation order forward.
func (s *OrderStore) Confirm(ctx context.Context, id string, in ConfirmInput) (*models.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusPendingConfirmation {
		return nil, fmt.Errorf("%w: order %s is %s", ErrBadTransition, o.ShortID(), o.Status)
	}
	target := in.Target
	if target == "" {
		target = models.OrderStatusConfirmed
		if s.opts.AdminApproval {
			target = models.OrderStatusPending
		}
	}
	if in.PaymentMethod != "" {
		o.PaymentMethod = in.PaymentMethod
	}
	if in.PaymentStatus != "" {
		o.PaymentStatus = in.PaymentStatus
	}
	if o.DeliveryAddress == "" && o.CustomerLocation != nil {
		o.DeliveryAddress = AddressFromLocation(*o.CustomerLocation)
	}
	o.Status = target
	o.UpdatedAt = s.now()
	if err := s.repo.SaveOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	s.broadcast(EventOrderConfirmed, o)
	s.afterStatusChange(ctx, o)
	return o, nil
}

// SetStatus is the admin overwrite: any status may follow any status. Subtotal, fee and total
// are never touched.
func (s *OrderStore) SetStatus(ctx context.Context, id, status string, paymentStatus *string) (*models.Order, error) {
	if !KnownStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrBadTransition, status)
	}
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	changed := o.Status != status
	o.Status = status
	if paymentStatus != nil {
		o.PaymentStatus = *paymentStatus
	}
	o.UpdatedAt = s.now()
	if err := s.repo.SaveOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	s.broadcast(EventOrderUpdated, o)
	if changed {
		s.afterStatusChange(ctx, o)
	}
	return o, nil
}

// Cancel is the customer-side escape; it refuses terminal orders.
func (s *OrderStore) Cancel(ctx context.Context, id string) (*models.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ValidStatusTransition(o.Status, models.OrderStatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> cancelled", ErrBadTransition, o.Status)
	}
	o.Status = models.OrderStatusCancelled
	o.UpdatedAt = s.now()
	if err := s.repo.SaveOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	s.broadcast(EventOrderUpdated, o)
	for _, f := range s.onStatus {
		f(ctx, o)
	}
	return o, nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*models.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// LatestPending is the newest order of phone still awaiting the customer's confirmation.
func (s *OrderStore) LatestPending(ctx context.Context, phone string) (*models.Order, error) {
	return s.repo.LatestOrderByStatus(ctx, phone, models.OrderStatusPendingConfirmation)
}

// ListRecent returns phone's orders, newest first.
func (s *OrderStore) ListRecent(ctx context.Context, phone string, limit int) ([]models.Order, error) {
	return s.repo.ListOrders(ctx, models.OrderFilter{CustomerPhone: phone, Limit: limit})
}

func (s *OrderStore) List(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	return s.repo.ListOrders(ctx, f)
}

// AttachPaymentProof records an unverified payment claim.
func (s *OrderStore) AttachPaymentProof(ctx context.Context, p *models.PaymentProof) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	return s.repo.InsertPaymentProof(ctx, p)
}

func (s *OrderStore) afterStatusChange(ctx context.Context, o *models.Order) {
	s.notifyStatus(ctx, o)
	for _, f := range s.onStatus {
		f(ctx, o)
	}
}

// notifyStatus sends the templated status line. Failures are logged, never returned.
func (s *OrderStore) notifyStatus(ctx context.Context, o *models.Order) {
	if s.notifier == nil || o.CustomerPhone == "" || !IsNotifiableStatus(o.Status) {
		return
	}
	log := s.log.With(zap.String("order_id", o.ID), zap.String("status", o.Status))
	dup, err := s.repo.StatusNotifiedSince(ctx, o.ID, o.Status, s.now().Add(-statusNotifyDedupWindow))
	if err != nil {
		log.Warn("status notify dedup check failed", zap.Error(err))
	}
	if dup {
		return
	}
	langCode := s.opts.DefaultLang
	if s.customers != nil {
		if c, err := s.customers.GetCustomer(ctx, o.CustomerPhone); err == nil && c.Language != "" {
			langCode = c.Language
		}
	}
	text := CustomerMessageForOrderStatus(o, o.Status, langCode, s.opts.Currency)
	if err := s.notifier.SendText(ctx, o.CustomerPhone, text); err != nil {
		log.Warn("customer status notification failed", zap.String("phone", o.CustomerPhone), zap.Error(err))
		return
	}
	if err := s.repo.SaveOutboundMessage(ctx, &models.OutboundMessage{
		Phone:     o.CustomerPhone,
		OrderID:   o.ID,
		Status:    o.Status,
		Content:   text,
		CreatedAt: s.now(),
	}); err != nil {
		log.Warn("save outbound message", zap.Error(err))
	}
}

func (s *OrderStore) broadcast(event string, o *models.Order) {
	if s.events != nil {
		s.events.Broadcast(event, o)
	}
}
