package domain

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
)

// Terminal reports whether no further transition may be applied.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed
}

// Order is the single source of truth for one checkout attempt. Amount and
// currency are snapshotted from the catalog at creation time and are never
// re-derived from client input or provider payloads.
type Order struct {
	OrderID     string      `json:"orderId" db:"order_id"`
	UserID      string      `json:"userId" db:"user_id"`
	SkuID       string      `json:"skuId" db:"sku_id"`
	MerchantID  string      `json:"merchantId" db:"merchant_id"`
	AmountCents int64       `json:"amountCents" db:"amount_cents"`
	Currency    string      `json:"currency" db:"currency"`
	Status      OrderStatus `json:"status" db:"status"`
	SessionRef  string      `json:"-" db:"session_ref"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" db:"updated_at"`
}
