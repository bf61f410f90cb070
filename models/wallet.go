package models

import (
	"time"

	"gorm.io/gorm"
)

// PassTier is the subscription tier attached to a wallet.
// Free passes are only usable on non-free tiers.
type PassTier string

const (
	PassTierFree    PassTier = "free"
	PassTierPlus    PassTier = "plus"
	PassTierPremium PassTier = "premium"
)

// Wallet is the single authority for a user's spendable balance.
// Coins and free passes may never go negative; every mutation goes
// through the wallet service and leaves a LedgerEntry behind.
type Wallet struct {
	ID         string   `gorm:"primaryKey;type:uuid;not null" json:"id"`
	UserID     string   `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"` // External user ID (profile service UUID)
	Coins      int64    `gorm:"not null;default:0" json:"coins"`
	FreePasses int64    `gorm:"not null;default:0" json:"free_passes"`
	PassTier   PassTier `gorm:"type:varchar(16);not null;default:'free'" json:"pass_tier"`

	Timestamps
}

// LedgerType classifies a ledger entry.
type LedgerType string

const (
	LedgerTypeEarn     LedgerType = "earn"
	LedgerTypeSpend    LedgerType = "spend"
	LedgerTypePurchase LedgerType = "purchase"
)

// LedgerEntry is an immutable record of one applied wallet delta.
// The unique idempotency key makes retried applies replay-safe: a second
// apply with the same key returns CoinsAfter/FreePassesAfter as committed
// the first time instead of reapplying the delta.
type LedgerEntry struct {
	ID              string     `gorm:"primaryKey;type:uuid;not null" json:"id"`
	UserID          string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Type            LedgerType `gorm:"type:varchar(16);not null" json:"type"`
	CoinsDelta      int64      `gorm:"not null" json:"coins_delta"`
	FreePassesDelta int64      `gorm:"not null" json:"free_passes_delta"`
	CoinsAfter      int64      `gorm:"not null" json:"coins_after"`
	FreePassesAfter int64      `gorm:"not null" json:"free_passes_after"`

	// Causing domain event, for audit (e.g. ref_type=unlock, ref_id=<unlock id>)
	RefType string `gorm:"type:varchar(32);index" json:"ref_type"`
	RefID   string `gorm:"type:uuid" json:"ref_id,omitempty"`

	IdempotencyKey string `gorm:"type:varchar(128);uniqueIndex;not null" json:"idempotency_key"`
	Description    string `gorm:"type:text" json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
