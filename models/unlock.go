package models

import "time"

// Unlock records that one user unlocked one piece. Immutable; the unique
// (user_id, piece_id) index is what makes a repeated unlock a no-op
// instead of a double charge.
type Unlock struct {
	ID      string       `gorm:"primaryKey;type:uuid;not null" json:"id"`
	UserID  string       `gorm:"type:uuid;not null;index:idx_unlocks_user_piece,unique,priority:1" json:"user_id"`
	PieceID string       `gorm:"type:uuid;not null;index:idx_unlocks_user_piece,unique,priority:2" json:"piece_id"`
	Method  UnlockMethod `gorm:"type:varchar(16);not null" json:"method"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
