package domain

import "time"

// SKU is a purchasable catalog entry (a currency pack or item bundle).
// The checkout core only reads it; catalog management lives elsewhere.
type SKU struct {
	SkuID       string    `json:"skuId" db:"sku_id"`
	MerchantID  string    `json:"merchantId" db:"merchant_id"`
	GameID      string    `json:"gameId" db:"game_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ImageRef    string    `json:"imageRef" db:"image_ref"`
	PriceCents  int64     `json:"priceCents" db:"price_cents"`
	Currency    string    `json:"currency" db:"currency"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
