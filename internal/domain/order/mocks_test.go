package order

import (
	"context"
	"sync"
	"time"
)

// memRepo is an in-memory Repository that records calls.
type memRepo struct {
	mu       sync.Mutex
	orders   map[string]*Order
	payments map[string]*Payment

	CreateCalls int
	CreateErr   error
	UpdateErr   error
	FindErr     error
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:   make(map[string]*Order),
		payments: make(map[string]*Payment),
	}
}

func (m *memRepo) Create(_ context.Context, o *Order, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateErr != nil {
		return m.CreateErr
	}
	cp := *o
	m.orders[o.ID] = &cp
	if p != nil {
		pc := *p
		m.payments[p.ID] = &pc
	}
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memRepo) ListByUser(_ context.Context, userID string) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, status Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	return nil
}

func (m *memRepo) FindPaymentByIntent(_ context.Context, intentID string) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for _, p := range m.payments {
		if p.PaymentIntentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (m *memRepo) CompletePayment(_ context.Context, paymentID string, paidAt time.Time, orderStatus Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	p := m.payments[paymentID]
	p.Status = PaymentCompleted
	p.PaidAt = &paidAt
	m.orders[p.OrderID].Status = orderStatus
	return nil
}

// addPayment seeds a payment for an existing order.
func (m *memRepo) addPayment(p *Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
}
