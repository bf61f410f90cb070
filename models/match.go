package models

import "time"

// MatchVia is the workflow that produced a match intent.
type MatchVia string

const (
	MatchViaSendPiece     MatchVia = "send_piece"
	MatchViaOpenLastPiece MatchVia = "open_last_piece"
)

// IntentStatus is the lifecycle state of a match intent.
// pending is the only non-terminal state.
type IntentStatus string

const (
	IntentStatusPending  IntentStatus = "pending"
	IntentStatusAccepted IntentStatus = "accepted"
	IntentStatusRejected IntentStatus = "rejected"
)

// MatchIntent is a directed "send piece" proposal from one user to another.
// It leaves pending exactly once and is never mutated afterwards.
type MatchIntent struct {
	ID       string       `gorm:"primaryKey;type:uuid;not null" json:"id"`
	FromUser string       `gorm:"type:uuid;not null;index" json:"from_user"`
	ToUser   string       `gorm:"type:uuid;not null;index" json:"to_user"`
	Via      MatchVia     `gorm:"type:varchar(24);not null" json:"via"`
	Status   IntentStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	RespondedAt *time.Time `json:"responded_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Match is a mutually confirmed connection, created only when an intent is
// accepted. Deactivation is a soft delete; rows are never removed.
type Match struct {
	ID       string `gorm:"primaryKey;type:uuid;not null" json:"id"`
	UserA    string `gorm:"type:uuid;not null;index" json:"user_a"`
	UserB    string `gorm:"type:uuid;not null;index" json:"user_b"`
	IsActive bool   `gorm:"not null;default:true;index" json:"is_active"`

	IntentID string `gorm:"type:uuid;index" json:"intent_id,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
