// models/card.go
package models

// CardType is the theme of a profile card.
type CardType string

const (
	CardTypePhoto    CardType = "photo"
	CardTypeHobby    CardType = "hobby"
	CardTypeLocation CardType = "location"
	CardTypeInterest CardType = "interest"
)

// Card is a themed collection of pieces belonging to one user.
// Deleting a card is always a soft deactivation (is_active=false).
type Card struct {
	ID       string   `gorm:"primaryKey;type:uuid;not null" json:"id"`
	UserID   string   `gorm:"type:uuid;not null;index" json:"user_id"`
	Type     CardType `gorm:"type:varchar(16);not null" json:"type"`
	Title    string   `gorm:"type:varchar(100)" json:"title"`
	Slug     string   `gorm:"type:varchar(120);index" json:"slug"`
	Meta     string   `gorm:"type:text" json:"meta,omitempty"`
	IsActive bool     `gorm:"not null;default:true;index" json:"is_active"`

	Pieces []Piece `gorm:"foreignKey:CardID" json:"pieces,omitempty"`

	Timestamps
}

// PieceState distinguishes the free pieces of a card from the paid last one.
type PieceState string

const (
	PieceStateFree PieceState = "free"
	PieceStatePaid PieceState = "paid"
)

// UnlockMethod is how a locked piece was or can be unlocked.
type UnlockMethod string

const (
	UnlockMethodFreePass UnlockMethod = "free_pass"
	UnlockMethodCoin     UnlockMethod = "coin"
	UnlockMethodPromo    UnlockMethod = "promo"
)

// Piece is one sequential, unlockable fragment of a card.
// Idx values within a card are contiguous starting at 0; the piece at
// idx 0 is created unlocked and stays that way.
type Piece struct {
	ID      string     `gorm:"primaryKey;type:uuid;not null" json:"id"`
	CardID  string     `gorm:"type:uuid;not null;index:idx_pieces_card_idx,unique,priority:1" json:"card_id"`
	Idx     int        `gorm:"not null;index:idx_pieces_card_idx,unique,priority:2" json:"idx"`
	State   PieceState `gorm:"type:varchar(8);not null" json:"state"`
	Content string     `gorm:"type:text" json:"content"`
	Locked  bool       `gorm:"not null;default:true" json:"locked"`

	// Set exactly once, by the unlock that flipped Locked.
	UnlockMethod *UnlockMethod `gorm:"type:varchar(16)" json:"unlock_method,omitempty"`

	Timestamps
}
