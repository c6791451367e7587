package usecase

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"recharge-backend/internal/domain"
	"recharge-backend/internal/payments"
	"recharge-backend/internal/retry"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fastRetry() retry.Policies {
	return retry.Policies{
		domain.KindPersistence: {Retryable: true, MaxAttempts: 3, Backoff: time.Millisecond},
		domain.KindProvider:    {Retryable: true, MaxAttempts: 3, Backoff: time.Millisecond},
	}
}

// fakeStore implements OrderStore, Catalog and EventLedger with call
// counters and injectable failures.
type fakeStore struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	skus      map[string]*domain.SKU
	bySession map[string]string
	events    map[string]struct{}

	createCalls     int
	getCalls        int
	transitionCalls int

	failGetSKU    int // fail this many GetSKU calls, then succeed
	failCreates   int
	attachErr     error
	transitionErr error
	afterConflict *domain.OrderStatus // status visible on reads after an injected conflict
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:    map[string]*domain.Order{},
		skus:      map[string]*domain.SKU{},
		bySession: map[string]string{},
		events:    map[string]struct{}{},
	}
}

func (f *fakeStore) addSKU(s domain.SKU) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := s
	f.skus[s.SkuID] = &cp
}

func (f *fakeStore) addOrder(o domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := o
	f.orders[o.OrderID] = &cp
}

func (f *fakeStore) order(id string) *domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.orders[id]
	return &cp
}

func (f *fakeStore) GetSKU(ctx context.Context, id string) (*domain.SKU, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGetSKU > 0 {
		f.failGetSKU--
		return nil, domain.E(domain.KindPersistence, "catalog unavailable")
	}
	s, ok := f.skus[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "sku not found")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ListSKUs(ctx context.Context) ([]domain.SKU, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SKU, 0, len(f.skus))
	for _, s := range f.skus {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) CreatePendingOrder(ctx context.Context, userID, skuID, merchantID string, amountCents int64, currency string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failCreates > 0 {
		f.failCreates--
		return nil, domain.E(domain.KindPersistence, "insert failed")
	}
	now := time.Now().UTC()
	o := &domain.Order{
		OrderID:     uuid.NewString(),
		UserID:      userID,
		SkuID:       skuID,
		MerchantID:  merchantID,
		AmountCents: amountCents,
		Currency:    currency,
		Status:      domain.OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.orders[o.OrderID] = o
	cp := *o
	return &cp, nil
}

func (f *fakeStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "order not found")
	}
	cp := *o
	if f.afterConflict != nil && f.transitionCalls > 0 {
		cp.Status = *f.afterConflict
	}
	return &cp, nil
}

func (f *fakeStore) GetOrderBySessionRef(ctx context.Context, ref string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.bySession[ref]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "order not found")
	}
	cp := *f.orders[id]
	return &cp, nil
}

func (f *fakeStore) AttachSessionRef(ctx context.Context, orderID, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil {
		return f.attachErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return domain.E(domain.KindNotFound, "order not found")
	}
	o.SessionRef = ref
	f.bySession[ref] = orderID
	return nil
}

func (f *fakeStore) TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitionCalls++
	if f.transitionErr != nil {
		return f.transitionErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return domain.E(domain.KindNotFound, "order not found")
	}
	if o.Status != from {
		return domain.E(domain.KindConflict, "status changed")
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Order, 0)
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.events[eventID]
	return ok, nil
}

func (f *fakeStore) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[eventID]; ok {
		return false, nil
	}
	f.events[eventID] = struct{}{}
	return true, nil
}

// fakePay records session params and hands back a canned session.
type fakePay struct {
	mu      sync.Mutex
	calls   int
	last    payments.SessionParams
	err     error
	session payments.Session
}

func (f *fakePay) CreateCheckoutSession(ctx context.Context, params payments.SessionParams) (payments.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = params
	if f.err != nil {
		return payments.Session{}, f.err
	}
	if f.session.ID == "" {
		return payments.Session{ID: "cs_test_1", URL: "https://pay.example/cs_test_1"}, nil
	}
	return f.session, nil
}
