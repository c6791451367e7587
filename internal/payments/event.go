package payments

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Supported provider event types. Anything else is acknowledged and
// dropped so the provider does not keep redelivering it.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentSucceeded  = "payment.succeeded"
	EventPaymentFailed     = "payment.failed"
	EventPaymentCanceled   = "payment.canceled"
)

const PaymentStatusPaid = "paid"

// CheckoutSessionData is the payload of checkout.session.* events.
// ClientReferenceID carries our order id back to us.
type CheckoutSessionData struct {
	SessionID         string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	PaymentStatus     string `json:"payment_status"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
}

// PaymentData is the payload of payment.* events. These are informational;
// order mutation happens only through checkout-session events.
type PaymentData struct {
	PaymentID string `json:"id"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// Event is the validated union of supported webhook payloads. Exactly one
// of Session and Payment is set, matching Type.
type Event struct {
	ID      string
	Type    string
	Session *CheckoutSessionData
	Payment *PaymentData
}

type eventEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEvent validates the raw body against the known event shapes.
// Supported types with a malformed data object return an error; callers
// decide whether that is acknowledged or retried. Unsupported types parse
// successfully with both variants nil.
func ParseEvent(raw []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, errors.Wrap(err, "decode event envelope")
	}
	ev := Event{ID: env.ID, Type: env.Type}
	switch env.Type {
	case EventCheckoutCompleted, EventCheckoutExpired:
		var s CheckoutSessionData
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return Event{}, errors.Wrapf(err, "decode %s data", env.Type)
		}
		ev.Session = &s
	case EventPaymentSucceeded, EventPaymentFailed, EventPaymentCanceled:
		var p PaymentData
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, errors.Wrapf(err, "decode %s data", env.Type)
		}
		ev.Payment = &p
	}
	return ev, nil
}

// Supported reports whether the event type participates in reconciliation.
func Supported(eventType string) bool {
	switch eventType {
	case EventCheckoutCompleted, EventCheckoutExpired,
		EventPaymentSucceeded, EventPaymentFailed, EventPaymentCanceled:
		return true
	}
	return false
}
