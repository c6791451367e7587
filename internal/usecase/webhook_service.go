package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"recharge-backend/internal/domain"
	"recharge-backend/internal/payments"
)

// EventLedger records processed provider event ids. EventProcessed is a
// fast-path duplicate check; MarkEventProcessed is written only after a
// delivery has been handled successfully, so redelivery of a failed
// delivery is never suppressed.
type EventLedger interface {
	EventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string) (bool, error)
}

// WebhookService is the reconciliation state machine. A nil return means
// "handled or safely ignored" (2xx, stop redelivery); KindInvalidSignature
// means reject without processing; any other error asks the provider to
// redeliver. Every decision re-reads current order state; nothing is
// cached across deliveries.
type WebhookService struct {
	Orders OrderStore
	Ledger EventLedger
	Secret string
	Log    *logrus.Logger
	Now    func() time.Time
}

func (s *WebhookService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *WebhookService) HandleEvent(ctx context.Context, raw []byte, sigHeader string) error {
	// Nothing in the payload may be touched before this passes.
	if err := payments.VerifySignature(raw, sigHeader, s.Secret, s.now()); err != nil {
		return domain.Wrap(domain.KindInvalidSignature, "webhook signature rejected", err)
	}

	ev, err := payments.ParseEvent(raw)
	if err != nil {
		// Redelivering a permanently malformed payload cannot succeed;
		// acknowledge it and keep the anomaly in the logs.
		s.Log.WithError(err).Warn("webhook payload rejected")
		return nil
	}
	if !payments.Supported(ev.Type) {
		s.Log.WithField("event_type", ev.Type).Debug("unsupported webhook event ignored")
		return nil
	}

	if ev.ID != "" && s.Ledger != nil {
		seen, err := s.Ledger.EventProcessed(ctx, ev.ID)
		if err != nil {
			return err
		}
		if seen {
			s.Log.WithField("event_id", ev.ID).Info("duplicate webhook delivery ignored")
			return nil
		}
	}

	switch ev.Type {
	case payments.EventCheckoutCompleted:
		err = s.handleCompleted(ctx, ev)
	case payments.EventCheckoutExpired:
		err = s.handleExpired(ctx, ev)
	default:
		// payment.* events are informational; order mutation goes through
		// checkout-session events only, so two paths never race.
		s.Log.WithFields(logrus.Fields{
			"event_id":   ev.ID,
			"event_type": ev.Type,
			"payment_id": ev.Payment.PaymentID,
			"status":     ev.Payment.Status,
		}).Info("payment event received")
	}
	if err != nil {
		return err
	}

	if ev.ID != "" && s.Ledger != nil {
		if _, err := s.Ledger.MarkEventProcessed(ctx, ev.ID); err != nil {
			// The transition already landed; order-status idempotency
			// covers the next delivery, so a ledger miss is not fatal.
			s.Log.WithField("event_id", ev.ID).WithError(err).Warn("record processed event failed")
		}
	}
	return nil
}

func (s *WebhookService) handleCompleted(ctx context.Context, ev payments.Event) error {
	sess := ev.Session
	if strings.TrimSpace(sess.ClientReferenceID) == "" {
		s.Log.WithField("session_ref", sess.SessionID).Warn("completed session without order reference")
		return nil
	}
	if sess.PaymentStatus != payments.PaymentStatusPaid {
		s.Log.WithFields(logrus.Fields{
			"order_id":       sess.ClientReferenceID,
			"payment_status": sess.PaymentStatus,
		}).Info("completed session not yet paid, ignoring")
		return nil
	}

	order, err := s.Orders.GetOrder(ctx, sess.ClientReferenceID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			// Possibly a race with order creation; redelivery gives the
			// write time to land.
			return domain.Wrap(domain.KindPersistence, "order not yet visible for completed session", err)
		}
		return err
	}

	if order.Status.Terminal() {
		s.Log.WithFields(logrus.Fields{
			"order_id": order.OrderID,
			"status":   order.Status,
		}).Info("order already terminal, duplicate delivery ignored")
		return nil
	}

	if sess.AmountTotal != order.AmountCents || !strings.EqualFold(sess.Currency, order.Currency) {
		s.Log.WithFields(logrus.Fields{
			"order_id":          order.OrderID,
			"order_amount":      order.AmountCents,
			"order_currency":    order.Currency,
			"reported_amount":   sess.AmountTotal,
			"reported_currency": sess.Currency,
		}).Error("amount/currency mismatch on completed session")
		return domain.E(domain.KindIntegrityMismatch, "reported amount or currency does not match order")
	}

	if err := s.Orders.TransitionStatus(ctx, order.OrderID, domain.OrderPending, domain.OrderCompleted); err != nil {
		if domain.IsKind(err, domain.KindConflict) {
			return s.confirmTerminal(ctx, order.OrderID)
		}
		return err
	}
	s.Log.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"amount":   order.AmountCents,
		"currency": order.Currency,
	}).Info("order completed")
	return nil
}

func (s *WebhookService) handleExpired(ctx context.Context, ev payments.Event) error {
	sess := ev.Session
	if strings.TrimSpace(sess.ClientReferenceID) == "" {
		// Abandoned anonymous sessions expire all the time.
		return nil
	}
	order, err := s.Orders.GetOrder(ctx, sess.ClientReferenceID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil
		}
		return err
	}
	if order.Status != domain.OrderPending {
		return nil
	}
	if err := s.Orders.TransitionStatus(ctx, order.OrderID, domain.OrderPending, domain.OrderFailed); err != nil {
		if domain.IsKind(err, domain.KindConflict) {
			return s.confirmTerminal(ctx, order.OrderID)
		}
		return err
	}
	s.Log.WithField("order_id", order.OrderID).Info("order failed on session expiry")
	return nil
}

// confirmTerminal resolves a lost transition race: if someone else already
// drove the order to a terminal state the delivery is done, otherwise ask
// for redelivery.
func (s *WebhookService) confirmTerminal(ctx context.Context, orderID string) error {
	order, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status.Terminal() {
		return nil
	}
	return domain.E(domain.KindConflict, "order transition lost race to a non-terminal state")
}
