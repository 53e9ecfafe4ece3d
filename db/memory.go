package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"food-whatsapp/models"
)

// Memory is an in-process store for tests and single-instance demos. Records are copied in
// and out so callers never share state with the store.
type Memory struct {
	mu        sync.RWMutex
	customers map[string]models.Customer
	menu      map[string]models.MenuItem
	rates     []models.DeliveryRate
	orders    map[string]models.Order
	proofs    []models.PaymentProof
	outbound  []models.OutboundMessage
}

func NewMemory() *Memory {
	return &Memory{
		customers: make(map[string]models.Customer),
		menu:      make(map[string]models.MenuItem),
		orders:    make(map[string]models.Order),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) GetCustomer(ctx context.Context, phone string) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[phone]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyCustomer(c), nil
}

func (m *Memory) InsertCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.customers[c.Phone]; ok {
		return copyCustomer(existing), nil
	}
	m.customers[c.Phone] = *copyCustomer(*c)
	return copyCustomer(*c), nil
}

func (m *Memory) UpdateCustomer(ctx context.Context, phone string, upd models.ProfileUpdate, seenAt time.Time) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[phone]
	if !ok {
		return nil, models.ErrNotFound
	}
	applyProfileUpdate(&c, upd)
	c.LastSeen = seenAt
	m.customers[phone] = c
	return copyCustomer(c), nil
}

func (m *Memory) ListRecentCustomers(ctx context.Context, limit int) ([]models.Customer, error) {
	m.mu.RLock()
	out := make([]models.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, *copyCustomer(c))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) FindAvailableMenuItemByName(ctx context.Context, name string) (*models.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.menu {
		if it.Available && strings.EqualFold(it.Name, name) {
			item := it
			return &item, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *Memory) ListAvailableMenu(ctx context.Context) ([]models.MenuItem, error) {
	all, _ := m.ListAllMenu(ctx)
	out := all[:0]
	for _, it := range all {
		if it.Available {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *Memory) ListAllMenu(ctx context.Context) ([]models.MenuItem, error) {
	m.mu.RLock()
	out := make([]models.MenuItem, 0, len(m.menu))
	for _, it := range m.menu {
		out = append(out, it)
	}
	m.mu.RUnlock()
	sortMenu(out)
	return out, nil
}

func (m *Memory) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.menu[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &it, nil
}

func (m *Memory) InsertMenuItem(ctx context.Context, item *models.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.menu {
		if strings.EqualFold(it.Name, item.Name) {
			return ErrDuplicateName
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	m.menu[item.ID] = *item
	return nil
}

func (m *Memory) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.menu[item.ID]
	if !ok {
		return models.ErrNotFound
	}
	for id, it := range m.menu {
		if id != item.ID && strings.EqualFold(it.Name, item.Name) {
			return ErrDuplicateName
		}
	}
	item.CreatedAt = old.CreatedAt
	m.menu[item.ID] = *item
	return nil
}

func (m *Memory) DeleteMenuItem(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menu[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.menu, id)
	return nil
}

func (m *Memory) ListDeliveryRates(ctx context.Context) ([]models.DeliveryRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.DeliveryRate, len(m.rates))
	copy(out, m.rates)
	return out, nil
}

func (m *Memory) ReplaceDeliveryRates(ctx context.Context, rates []models.DeliveryRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates = make([]models.DeliveryRate, len(rates))
	copy(m.rates, rates)
	sort.SliceStable(m.rates, func(i, j int) bool { return m.rates[i].MaxKm < m.rates[j].MaxKm })
	return nil
}

func (m *Memory) InsertOrder(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = copyOrder(*o)
	return nil
}

func (m *Memory) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := copyOrder(o)
	return &out, nil
}

func (m *Memory) SaveOrder(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.orders[o.ID]
	if !ok {
		return models.ErrNotFound
	}
	old.Status = o.Status
	old.PaymentMethod = o.PaymentMethod
	old.PaymentStatus = o.PaymentStatus
	old.DeliveryAddress = o.DeliveryAddress
	old.UpdatedAt = o.UpdatedAt
	m.orders[o.ID] = old
	return nil
}

func (m *Memory) LatestOrderByStatus(ctx context.Context, phone, status string) (*models.Order, error) {
	list, _ := m.ListOrders(ctx, models.OrderFilter{CustomerPhone: phone, Status: status, Limit: 1})
	if len(list) == 0 {
		return nil, models.ErrNotFound
	}
	return &list[0], nil
}

func (m *Memory) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	m.mu.RLock()
	var out []models.Order
	for _, o := range m.orders {
		if f.CustomerPhone != "" && o.CustomerPhone != f.CustomerPhone {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, copyOrder(o))
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) InsertPaymentProof(ctx context.Context, p *models.PaymentProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proofs = append(m.proofs, *p)
	return nil
}

// PaymentProofs returns the recorded proofs for orderID.
func (m *Memory) PaymentProofs(orderID string) []models.PaymentProof {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PaymentProof
	for _, p := range m.proofs {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out
}

func (m *Memory) SaveOutboundMessage(ctx context.Context, msg *models.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbound = append(m.outbound, *msg)
	return nil
}

func (m *Memory) StatusNotifiedSince(ctx context.Context, orderID, status string, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msg := range m.outbound {
		if msg.OrderID == orderID && msg.Status == status && msg.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

// OutboundMessages returns the logged outbound messages in send order.
func (m *Memory) OutboundMessages() []models.OutboundMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.OutboundMessage, len(m.outbound))
	copy(out, m.outbound)
	return out
}

func copyCustomer(c models.Customer) *models.Customer {
	if c.Location != nil {
		loc := *c.Location
		c.Location = &loc
	}
	return &c
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	if o.CustomerLocation != nil {
		loc := *o.CustomerLocation
		o.CustomerLocation = &loc
	}
	return o
}
