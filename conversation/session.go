package conversation

import (
	"context"
	"sync"
	"time"

	"food-whatsapp/models"
)

// State is the conversation position of one customer.
type State string

const (
	StateDefault              State = "default"
	StateCollectingName       State = "collecting_name"
	StateCollectingAddress    State = "collecting_address"
	StateAwaitingPaymentProof State = "awaiting_payment_proof"
)

// Session is the per-customer conversation cache. It can always be rebuilt from the
// customer profile and stored orders, so losing it only costs the customer one resend.
type Session struct {
	Phone          string             `json:"phone"`
	State          State              `json:"state"`
	PendingOrderID string             `json:"pendingOrderId,omitempty"`
	Cart           []models.OrderItem `json:"cart,omitempty"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func newSession(phone string) Session {
	return Session{Phone: phone, State: StateDefault}
}

// SessionStore keeps sessions keyed by customer phone. Get returns models.ErrNotFound for
// unknown phones.
type SessionStore interface {
	Get(ctx context.Context, phone string) (Session, error)
	Set(ctx context.Context, s Session) error
	Delete(ctx context.Context, phone string) error
}

// MemorySessions is the single-instance SessionStore.
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]Session)}
}

func (m *MemorySessions) Get(ctx context.Context, phone string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[phone]
	if !ok {
		return Session{}, models.ErrNotFound
	}
	s.Cart = append([]models.OrderItem(nil), s.Cart...)
	return s, nil
}

func (m *MemorySessions) Set(ctx context.Context, s Session) error {
	s.Cart = append([]models.OrderItem(nil), s.Cart...)
	m.mu.Lock()
	m.sessions[s.Phone] = s
	m.mu.Unlock()
	return nil
}

func (m *MemorySessions) Delete(ctx context.Context, phone string) error {
	m.mu.Lock()
	delete(m.sessions, phone)
	m.mu.Unlock()
	return nil
}
