package usecase

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"recharge-backend/internal/domain"
	"recharge-backend/internal/payments"
	"recharge-backend/internal/retry"
)

// Price guards: a floor below which the processor rejects micro-charges,
// and a sanity ceiling against mispriced catalog rows.
const (
	minPriceCents = 50
	maxPriceCents = 1_000_000
)

type Catalog interface {
	GetSKU(ctx context.Context, id string) (*domain.SKU, error)
	ListSKUs(ctx context.Context) ([]domain.SKU, error)
}

type OrderStore interface {
	CreatePendingOrder(ctx context.Context, userID, skuID, merchantID string, amountCents int64, currency string) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrderBySessionRef(ctx context.Context, ref string) (*domain.Order, error)
	AttachSessionRef(ctx context.Context, orderID, ref string) error
	TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
}

type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, params payments.SessionParams) (payments.Session, error)
}

// CheckoutService turns purchase intent into a pending order plus a hosted
// checkout redirect. Price and currency always come from the catalog read;
// nothing price-like is ever accepted from the client.
type CheckoutService struct {
	Catalog    Catalog
	Orders     OrderStore
	Pay        CheckoutProvider
	Retry      retry.Policies
	Log        *logrus.Logger
	SuccessURL string
	CancelURL  string
}

type Redirect struct {
	OrderID string
	URL     string
}

func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, userID, skuID, locale string) (Redirect, error) {
	if strings.TrimSpace(userID) == "" {
		return Redirect{}, domain.E(domain.KindUnauthenticated, "login required")
	}
	if strings.TrimSpace(skuID) == "" {
		return Redirect{}, domain.E(domain.KindProductUnavailable, "sku required")
	}

	var sku *domain.SKU
	err := s.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		sku, err = s.Catalog.GetSKU(ctx, skuID)
		return err
	})
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return Redirect{}, domain.Wrap(domain.KindProductUnavailable, "sku not found", err)
		}
		return Redirect{}, err
	}
	if !sku.Active {
		return Redirect{}, domain.E(domain.KindProductUnavailable, "sku not purchasable")
	}
	if sku.PriceCents < minPriceCents || sku.PriceCents > maxPriceCents {
		return Redirect{}, domain.E(domain.KindInvalidPrice, "price outside accepted range")
	}

	var order *domain.Order
	err = s.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.Orders.CreatePendingOrder(ctx, userID, sku.SkuID, sku.MerchantID, sku.PriceCents, sku.Currency)
		return err
	})
	if err != nil {
		return Redirect{}, err
	}

	// One provider call per checkout. Not retried: a retry here could mint
	// multiple sessions for one order.
	session, err := s.Pay.CreateCheckoutSession(ctx, payments.SessionParams{
		LineItems: []payments.LineItem{{
			Name:        sku.Name,
			Description: sku.Description,
			ImageRef:    sku.ImageRef,
			AmountCents: sku.PriceCents,
			Currency:    sku.Currency,
			Quantity:    1,
		}},
		SuccessURL:        s.SuccessURL,
		CancelURL:         s.CancelURL,
		ClientReferenceID: order.OrderID,
		Locale:            locale,
		Metadata: map[string]string{
			"order_id":    order.OrderID,
			"merchant_id": sku.MerchantID,
		},
	})
	if err != nil {
		return Redirect{}, domain.Wrap(domain.KindProvider, "create checkout session", err)
	}

	// The user can still pay without the back-pointer; losing it only
	// degrades the by-session lookup, so the checkout itself survives.
	if err := s.Orders.AttachSessionRef(ctx, order.OrderID, session.ID); err != nil {
		s.Log.WithFields(logrus.Fields{
			"order_id":    order.OrderID,
			"session_ref": session.ID,
		}).WithError(err).Warn("attach session ref failed")
	}

	s.Log.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"sku_id":   sku.SkuID,
		"amount":   sku.PriceCents,
		"currency": sku.Currency,
	}).Info("checkout session created")
	return Redirect{OrderID: order.OrderID, URL: session.URL}, nil
}

// GetOrderForUser is the post-checkout landing page read, scoped to the
// owning user. Foreign orders read as not found.
func (s *CheckoutService) GetOrderForUser(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	o, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.E(domain.KindNotFound, "order not found")
	}
	return o, nil
}

func (s *CheckoutService) GetOrderBySessionForUser(ctx context.Context, userID, ref string) (*domain.Order, error) {
	o, err := s.Orders.GetOrderBySessionRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.E(domain.KindNotFound, "order not found")
	}
	return o, nil
}

func (s *CheckoutService) ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.Orders.ListOrdersByUser(ctx, userID)
}

func (s *CheckoutService) ListSKUs(ctx context.Context) ([]domain.SKU, error) {
	return s.Catalog.ListSKUs(ctx)
}
