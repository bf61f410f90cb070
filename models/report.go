package models

import "time"

// ReportReason is the whitelisted reason for a user report.
type ReportReason string

const (
	ReportReasonSpam          ReportReason = "spam"
	ReportReasonInappropriate ReportReason = "inappropriate"
	ReportReasonHarassment    ReportReason = "harassment"
	ReportReasonFake          ReportReason = "fake"
	ReportReasonOther         ReportReason = "other"
)

// Report is a user-submitted moderation report against a user, card or message.
type Report struct {
	ID          string       `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Actor       string       `gorm:"type:uuid;not null;index" json:"actor"`
	TargetType  string       `gorm:"type:varchar(16);not null" json:"target_type"` // user | card | message
	TargetID    string       `gorm:"type:uuid;not null;index" json:"target_id"`
	Reason      ReportReason `gorm:"type:varchar(24);not null" json:"reason"`
	Description string       `gorm:"type:text" json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// Block hides one user from another. Unique per (actor, target_user);
// unblocking removes the row.
type Block struct {
	ID         string `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Actor      string `gorm:"type:uuid;not null;index:idx_blocks_actor_target,unique,priority:1" json:"actor"`
	TargetUser string `gorm:"type:uuid;not null;index:idx_blocks_actor_target,unique,priority:2" json:"target_user"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
