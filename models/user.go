package models

import (
	"time"

	"gorm.io/gorm"
)

// ProfileUser is a local snapshot of user data needed for the feed.
// Owned and managed solely by this service; populated via sync worker
// from the identity service's profile table.
type ProfileUser struct {
	ID             string  `gorm:"primaryKey;type:uuid;not null" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // The identity service's UUID
	Nickname       string  `gorm:"index;not null" json:"nickname"`
	RegionCode     *string `gorm:"type:varchar(8);index" json:"region_code,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	// Comma-separated interest tags; the identity service owns the canonical list.
	Interests string `gorm:"type:text" json:"interests,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	LastSeen *time.Time `json:"last_seen,omitempty"`
	IsBanned bool       `json:"is_banned" gorm:"default:false"` // local moderation ban

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
