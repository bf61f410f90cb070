// models/purchase.go
package models

import "time"

// CoinPurchase mirrors completed coin purchases from the billing service.
// The purchase worker upserts rows by provider_ref and credits each one
// through the wallet ledger exactly once (Credited flips inside the same
// transaction as the ledger entry).
type CoinPurchase struct {
	ID          string `gorm:"primaryKey;type:uuid;not null" json:"id"`
	UserID      string `gorm:"type:uuid;not null;index" json:"user_id"`
	Coins       int64  `gorm:"not null" json:"coins"`
	ProviderRef string `gorm:"type:varchar(128);uniqueIndex;not null" json:"provider_ref"`
	Credited    bool   `gorm:"not null;default:false;index" json:"credited"`

	PurchasedAt time.Time `gorm:"not null" json:"purchased_at"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
