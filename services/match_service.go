// services/match_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"piece-core-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MatchRequestPerDay caps outgoing intents per user per calendar day.
const MatchRequestPerDay = 20

// MatchService mediates the propose/accept/reject handshake between two
// users and materializes a Match on acceptance.
type MatchService struct {
	DB *gorm.DB
}

func NewMatchService(db *gorm.DB) *MatchService {
	return &MatchService{DB: db}
}

// RespondResult carries the resolved intent and, on acceptance, the match
// created in the same transaction.
type RespondResult struct {
	Intent *models.MatchIntent `json:"intent"`
	Match  *models.Match       `json:"match,omitempty"`
}

// SendPiece creates a new pending intent from one user to another.
// A second pending intent for the same ordered pair is rejected.
func (s *MatchService) SendPiece(fromUser, toUser string, via models.MatchVia) (*models.MatchIntent, error) {
	if fromUser == toUser {
		return nil, fmt.Errorf("cannot send a piece to yourself: %w", ErrInvalidInput)
	}
	switch via {
	case models.MatchViaSendPiece, models.MatchViaOpenLastPiece:
	default:
		return nil, fmt.Errorf("unknown via %q: %w", via, ErrInvalidInput)
	}

	var intent *models.MatchIntent
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		dayStart := time.Now().UTC().Truncate(24 * time.Hour)
		var sentToday int64
		if err := tx.Model(&models.MatchIntent{}).
			Where("from_user = ? AND created_at >= ?", fromUser, dayStart).
			Count(&sentToday).Error; err != nil {
			return err
		}
		if sentToday >= MatchRequestPerDay {
			return fmt.Errorf("%d intents today: %w", sentToday, ErrRateLimited)
		}

		var pending int64
		if err := tx.Model(&models.MatchIntent{}).
			Where("from_user = ? AND to_user = ? AND status = ?", fromUser, toUser, models.IntentStatusPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicateIntent
		}

		intent = &models.MatchIntent{
			ID:       uuid.NewString(),
			FromUser: fromUser,
			ToUser:   toUser,
			Via:      via,
			Status:   models.IntentStatusPending,
		}
		return tx.Create(intent).Error
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// Respond resolves a pending intent exactly once. callerID, when non-empty,
// must be the intent's to_user; full authorization lives at the boundary.
// On accept the status flip and the Match insert are one atomic unit.
func (s *MatchService) Respond(intentID, callerID string, accept bool) (*RespondResult, error) {
	var result *RespondResult
	var err error
	for attempt := 0; attempt < maxTransientRetries; attempt++ {
		err = s.DB.Transaction(func(tx *gorm.DB) error {
			r, txErr := s.respondTx(tx, intentID, callerID, accept)
			if txErr != nil {
				return txErr
			}
			result = r
			return nil
		})
		if err == nil || !isTransientStorageErr(err) {
			break
		}
		log.Printf("⚠️ [MATCH] transient conflict resolving intent %s (attempt %d): %v", intentID, attempt+1, err)
	}
	if err != nil {
		if isTransientStorageErr(err) {
			return nil, fmt.Errorf("%w: %v", ErrTransientStorage, err)
		}
		return nil, err
	}
	return result, nil
}

func (s *MatchService) respondTx(tx *gorm.DB, intentID, callerID string, accept bool) (*RespondResult, error) {
	var intent models.MatchIntent
	if err := lockForUpdate(tx).Where("id = ?", intentID).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("intent %s: %w", intentID, ErrNotFound)
		}
		return nil, err
	}

	if callerID != "" && callerID != intent.ToUser {
		return nil, fmt.Errorf("only the recipient may respond: %w", ErrForbidden)
	}
	if intent.Status != models.IntentStatusPending {
		return nil, fmt.Errorf("intent is %s: %w", intent.Status, ErrAlreadyResolved)
	}

	now := time.Now()
	intent.RespondedAt = &now

	if !accept {
		intent.Status = models.IntentStatusRejected
		if err := tx.Save(&intent).Error; err != nil {
			return nil, err
		}
		return &RespondResult{Intent: &intent}, nil
	}

	intent.Status = models.IntentStatusAccepted
	if err := tx.Save(&intent).Error; err != nil {
		return nil, err
	}

	match := models.Match{
		ID:       uuid.NewString(),
		UserA:    intent.FromUser,
		UserB:    intent.ToUser,
		IsActive: true,
		IntentID: intent.ID,
	}
	if err := tx.Create(&match).Error; err != nil {
		return nil, err
	}

	return &RespondResult{Intent: &intent, Match: &match}, nil
}

// PendingIntentsFor returns intents awaiting the user's response.
func (s *MatchService) PendingIntentsFor(userID string) ([]models.MatchIntent, error) {
	var intents []models.MatchIntent
	err := s.DB.Where("to_user = ? AND status = ?", userID, models.IntentStatusPending).
		Order("created_at DESC").
		Find(&intents).Error
	return intents, err
}

// ListMatches returns the user's active matches, newest first.
func (s *MatchService) ListMatches(userID string) ([]models.Match, error) {
	var matches []models.Match
	err := s.DB.Where("(user_a = ? OR user_b = ?) AND is_active = ?", userID, userID, true).
		Order("created_at DESC").
		Find(&matches).Error
	return matches, err
}

// DeactivateMatch soft-deletes a match. Only a participant may do it.
func (s *MatchService) DeactivateMatch(matchID, callerID string) error {
	var match models.Match
	if err := s.DB.Where("id = ?", matchID).First(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("match %s: %w", matchID, ErrNotFound)
		}
		return err
	}
	if callerID != match.UserA && callerID != match.UserB {
		return fmt.Errorf("not a participant of match %s: %w", matchID, ErrForbidden)
	}
	if !match.IsActive {
		return nil
	}
	match.IsActive = false
	return s.DB.Save(&match).Error
}

// --- HTTP handlers ---

// SendPieceEndpoint handles POST /match/send-piece.
func (s *MatchService) SendPieceEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		ToUser string          `json:"to_user"`
		Via    models.MatchVia `json:"via"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if _, err := uuid.Parse(req.ToUser); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid to_user"})
	}

	intent, err := s.SendPiece(userID, req.ToUser, req.Via)
	if err != nil {
		log.Printf("SendPiece failed from=%s to=%s: %v", userID, req.ToUser, err)
		return FailJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(intent)
}

// RespondEndpoint handles POST /match/intents/:id/respond.
func (s *MatchService) RespondEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	intentID := c.Params("id")
	if _, err := uuid.Parse(intentID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid intent ID"})
	}

	var req struct {
		Accept bool `json:"accept"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := s.Respond(intentID, userID, req.Accept)
	if err != nil {
		log.Printf("Respond failed intent=%s caller=%s: %v", intentID, userID, err)
		return FailJSON(c, err)
	}
	return c.JSON(result)
}

// GetPendingIntents handles GET /match/intents.
func (s *MatchService) GetPendingIntents(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	intents, err := s.PendingIntentsFor(userID)
	if err != nil {
		log.Printf("DB Error fetching intents for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch intents"})
	}
	return c.JSON(intents)
}

// GetMatches handles GET /matches.
func (s *MatchService) GetMatches(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	matches, err := s.ListMatches(userID)
	if err != nil {
		log.Printf("DB Error fetching matches for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch matches"})
	}
	return c.JSON(matches)
}

// DeactivateMatchEndpoint handles DELETE /matches/:id.
func (s *MatchService) DeactivateMatchEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	matchID := c.Params("id")
	if _, err := uuid.Parse(matchID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid match ID"})
	}

	if err := s.DeactivateMatch(matchID, userID); err != nil {
		log.Printf("Deactivate failed match=%s caller=%s: %v", matchID, userID, err)
		return FailJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "Match deactivated"})
}
