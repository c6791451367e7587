package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"recharge-backend/internal/domain"
)

// Memory is the in-process store used in dev mode and tests. The mutex
// makes the conditional transition atomic the same way the Postgres
// implementation's conditional UPDATE does.
type Memory struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	bySession map[string]string
	skus      map[string]*domain.SKU
	users     map[string]*domain.User
	events    map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		orders:    make(map[string]*domain.Order),
		bySession: make(map[string]string),
		skus:      make(map[string]*domain.SKU),
		users:     make(map[string]*domain.User),
		events:    make(map[string]struct{}),
	}
}

func (m *Memory) CreatePendingOrder(ctx context.Context, userID, skuID, merchantID string, amountCents int64, currency string) (*domain.Order, error) {
	o := newPendingOrder(userID, skuID, merchantID, amountCents, currency)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.OrderID] = &o
	cp := o
	return &cp, nil
}

func (m *Memory) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "order not found")
	}
	cp := *o
	return &cp, nil
}

func (m *Memory) GetOrderBySessionRef(ctx context.Context, ref string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.bySession[ref]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "order not found")
	}
	cp := *m.orders[id]
	return &cp, nil
}

func (m *Memory) AttachSessionRef(ctx context.Context, orderID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.E(domain.KindNotFound, "order not found")
	}
	if o.SessionRef == ref {
		return nil
	}
	if o.SessionRef != "" {
		return domain.E(domain.KindConflict, "order already bound to another session")
	}
	o.SessionRef = ref
	o.UpdatedAt = time.Now().UTC()
	m.bySession[ref] = orderID
	return nil
}

func (m *Memory) TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.E(domain.KindNotFound, "order not found")
	}
	if o.Status != from {
		return domain.E(domain.KindConflict, "order status changed concurrently")
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Order, 0)
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetSKU(ctx context.Context, id string) (*domain.SKU, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.skus[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "sku not found")
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) ListSKUs(ctx context.Context) ([]domain.SKU, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SKU, 0, len(m.skus))
	for _, s := range m.skus {
		if s.Active {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) UpsertSKUs(ctx context.Context, skus []domain.SKU) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range skus {
		cp := skus[i]
		m.skus[cp.SkuID] = &cp
	}
	return nil
}

func (m *Memory) PutUser(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *Memory) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; ok {
		return false, nil
	}
	m.events[eventID] = struct{}{}
	return true, nil
}
