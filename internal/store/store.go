// Package store persists orders, catalog entries, users and the processed
// webhook event ledger. Both implementations expose the same conditional
// status transition: an update applies only when the current status equals
// the expected one, and a mismatch reports Conflict. That check is the
// single concurrency-control primitive of the payment core.
package store

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"recharge-backend/internal/domain"
)

func newPendingOrder(userID, skuID, merchantID string, amountCents int64, currency string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		OrderID:     uuid.NewString(),
		UserID:      userID,
		SkuID:       skuID,
		MerchantID:  merchantID,
		AmountCents: amountCents,
		Currency:    strings.ToLower(currency),
		Status:      domain.OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
