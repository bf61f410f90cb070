// services/card_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"piece-core-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Card construction rules: every card carries the same fixed piece layout.
const (
	FreePiecesPerCard  = 2
	PaidPiecesPerCard  = 1
	TotalPiecesPerCard = FreePiecesPerCard + PaidPiecesPerCard
)

// CardService manages profile cards and their pieces, and serves the feed.
type CardService struct {
	DB *gorm.DB
}

func NewCardService(db *gorm.DB) *CardService {
	return &CardService{DB: db}
}

func validCardType(t models.CardType) bool {
	switch t {
	case models.CardTypePhoto, models.CardTypeHobby, models.CardTypeLocation, models.CardTypeInterest:
		return true
	}
	return false
}

// CreateCard creates a card with its fixed piece layout in one transaction:
// contiguous idx from 0, the first piece visible, the last one paid.
func (s *CardService) CreateCard(userID string, cardType models.CardType, title, meta string, pieceContents []string) (*models.Card, error) {
	if !validCardType(cardType) {
		return nil, fmt.Errorf("unknown card type %q: %w", cardType, ErrInvalidInput)
	}
	if len(pieceContents) != TotalPiecesPerCard {
		return nil, fmt.Errorf("a card needs exactly %d pieces, got %d: %w", TotalPiecesPerCard, len(pieceContents), ErrInvalidInput)
	}
	if len(title) > 100 {
		return nil, fmt.Errorf("title too long: %w", ErrInvalidInput)
	}

	card := &models.Card{
		ID:       uuid.NewString(),
		UserID:   userID,
		Type:     cardType,
		Title:    title,
		Slug:     slug.Make(title),
		Meta:     meta,
		IsActive: true,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(card).Error; err != nil {
			return err
		}
		for idx, content := range pieceContents {
			state := models.PieceStateFree
			if idx >= FreePiecesPerCard {
				state = models.PieceStatePaid
			}
			piece := models.Piece{
				ID:      uuid.NewString(),
				CardID:  card.ID,
				Idx:     idx,
				State:   state,
				Content: content,
				Locked:  idx > 0, // only the first piece starts visible
			}
			if err := tx.Create(&piece).Error; err != nil {
				return err
			}
			card.Pieces = append(card.Pieces, piece)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// GetCardWithPieces loads one active card and its pieces ordered by idx.
func (s *CardService) GetCardWithPieces(cardID string) (*models.Card, error) {
	var card models.Card
	err := s.DB.Preload("Pieces", func(db *gorm.DB) *gorm.DB {
		return db.Order("pieces.idx ASC")
	}).Where("id = ? AND is_active = ?", cardID, true).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("card %s: %w", cardID, ErrNotFound)
		}
		return nil, err
	}
	return &card, nil
}

// MyCards returns the user's active cards.
func (s *CardService) MyCards(userID string) ([]models.Card, error) {
	var cards []models.Card
	err := s.DB.Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		Find(&cards).Error
	return cards, err
}

// DeactivateCard soft-deletes a card. Owner only.
func (s *CardService) DeactivateCard(cardID, callerID string) error {
	var card models.Card
	if err := s.DB.Where("id = ?", cardID).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("card %s: %w", cardID, ErrNotFound)
		}
		return err
	}
	if card.UserID != callerID {
		return fmt.Errorf("card %s not owned by caller: %w", cardID, ErrForbidden)
	}
	if !card.IsActive {
		return nil
	}
	card.IsActive = false
	return s.DB.Save(&card).Error
}

// FeedEntry is one card in the discovery feed with its owner's public profile.
type FeedEntry struct {
	Card models.Card         `json:"card"`
	User *models.ProfileUser `json:"user,omitempty"`
}

// Feed returns active cards from non-blocked, non-banned users, newest
// first, optionally filtered by the owner's region.
func (s *CardService) Feed(viewerID, region string, page, size int) ([]FeedEntry, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	q := s.DB.Model(&models.Card{}).
		Where("cards.is_active = ?", true).
		Where("cards.user_id <> ?", viewerID).
		Where("cards.user_id NOT IN (?)",
			s.DB.Model(&models.Block{}).Select("target_user").Where("actor = ?", viewerID))

	if region != "" {
		q = q.Where("cards.user_id IN (?)",
			s.DB.Model(&models.ProfileUser{}).Select("external_user_id").Where("region_code = ?", region))
	}

	var cards []models.Card
	if err := q.Order("cards.created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Preload("Pieces", func(db *gorm.DB) *gorm.DB {
			return db.Order("pieces.idx ASC")
		}).
		Find(&cards).Error; err != nil {
		return nil, err
	}

	entries := make([]FeedEntry, 0, len(cards))
	for _, card := range cards {
		var owner models.ProfileUser
		entry := FeedEntry{Card: card}
		if err := s.DB.Where("external_user_id = ? AND is_banned = ?", card.UserID, false).
			First(&owner).Error; err == nil {
			entry.User = &owner
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// --- HTTP handlers ---

// CreateCardEndpoint handles POST /cards.
func (s *CardService) CreateCardEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Type   models.CardType `json:"type"`
		Title  string          `json:"title"`
		Meta   string          `json:"meta"`
		Pieces []string        `json:"pieces"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	card, err := s.CreateCard(userID, req.Type, req.Title, req.Meta, req.Pieces)
	if err != nil {
		log.Printf("CreateCard failed for %s: %v", userID, err)
		return FailJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(card)
}

// GetCard handles GET /cards/:id.
func (s *CardService) GetCard(c *fiber.Ctx) error {
	cardID := c.Params("id")
	if _, err := uuid.Parse(cardID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid card ID"})
	}
	card, err := s.GetCardWithPieces(cardID)
	if err != nil {
		return FailJSON(c, err)
	}
	return c.JSON(card)
}

// GetMyCards handles GET /user/cards.
func (s *CardService) GetMyCards(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	cards, err := s.MyCards(userID)
	if err != nil {
		log.Printf("DB Error fetching cards for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch cards"})
	}
	return c.JSON(cards)
}

// DeactivateCardEndpoint handles DELETE /cards/:id.
func (s *CardService) DeactivateCardEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	cardID := c.Params("id")
	if _, err := uuid.Parse(cardID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid card ID"})
	}
	if err := s.DeactivateCard(cardID, userID); err != nil {
		return FailJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "Card deactivated"})
}

// GetFeed handles GET /feed.
func (s *CardService) GetFeed(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	region := c.Query("region")
	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("limit", "20"))

	entries, err := s.Feed(userID, region, page, size)
	if err != nil {
		log.Printf("DB Error building feed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch feed"})
	}
	return c.JSON(fiber.Map{
		"cards": entries,
		"page":  page,
		"limit": size,
	})
}
