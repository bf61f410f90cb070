// services/unlock_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"piece-core-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnlockPerDay caps how many pieces one user may unlock per calendar day.
const UnlockPerDay = 10

// UnlockService drives a piece from locked to unlocked, charging the wallet
// ledger exactly once. The unlock row, the piece flip and the debit commit
// in a single transaction: either all happen or none.
type UnlockService struct {
	DB      *gorm.DB
	Wallets *WalletService
	Promo   PromoValidator
}

func NewUnlockService(db *gorm.DB, wallets *WalletService, promo PromoValidator) *UnlockService {
	return &UnlockService{DB: db, Wallets: wallets, Promo: promo}
}

// Unlock validates and executes the lock→unlock transition for one piece.
// Repeating the call for the same (user, piece) returns the existing unlock
// without re-charging.
func (s *UnlockService) Unlock(ctx context.Context, userID, pieceID string, method models.UnlockMethod, promoCode string) (*models.Unlock, error) {
	switch method {
	case models.UnlockMethodFreePass, models.UnlockMethodCoin, models.UnlockMethodPromo:
	default:
		return nil, fmt.Errorf("unknown unlock method %q: %w", method, ErrInvalidInput)
	}

	// Promo eligibility is an external call with a bounded timeout; it runs
	// before the transaction so a slow provider never holds row locks.
	if method == models.UnlockMethodPromo {
		eligible, err := s.Promo.Validate(ctx, userID, pieceID, promoCode)
		if err != nil {
			return nil, fmt.Errorf("promo validation: %w", err)
		}
		if !eligible {
			return nil, fmt.Errorf("promo code not eligible: %w", ErrMethodNotEligible)
		}
	}

	var result *models.Unlock
	var err error
	for attempt := 0; attempt < maxTransientRetries; attempt++ {
		err = s.DB.Transaction(func(tx *gorm.DB) error {
			u, txErr := s.unlockTx(tx, userID, pieceID, method)
			if txErr != nil {
				return txErr
			}
			result = u
			return nil
		})
		if err == nil || !isTransientStorageErr(err) {
			break
		}
		log.Printf("⚠️ [UNLOCK] transient conflict unlocking piece %s for %s (attempt %d): %v", pieceID, userID, attempt+1, err)
	}
	if err != nil {
		if isTransientStorageErr(err) {
			return nil, fmt.Errorf("%w: %v", ErrTransientStorage, err)
		}
		return nil, err
	}
	return result, nil
}

func (s *UnlockService) unlockTx(tx *gorm.DB, userID, pieceID string, method models.UnlockMethod) (*models.Unlock, error) {
	// Idempotent short-circuit: an existing unlock by this user wins.
	var existing models.Unlock
	err := tx.Where("user_id = ? AND piece_id = ?", userID, pieceID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var piece models.Piece
	if err := lockForUpdate(tx).Where("id = ?", pieceID).First(&piece).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("piece %s: %w", pieceID, ErrNotFound)
		}
		return nil, err
	}

	// Idx 0 is never locked by construction; there is nothing to buy.
	if piece.Idx == 0 && !piece.Locked {
		return nil, fmt.Errorf("piece %s is always visible: %w", pieceID, ErrInvalidInput)
	}

	if err := s.checkDailyQuota(tx, userID); err != nil {
		return nil, err
	}

	unlockID := uuid.NewString()

	switch method {
	case models.UnlockMethodFreePass:
		var w models.Wallet
		if err := tx.Where("user_id = ?", userID).First(&w).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("wallet for user %s: %w", userID, ErrNotFound)
			}
			return nil, err
		}
		// Free passes cover free-state pieces on non-free tiers only.
		if w.PassTier == models.PassTierFree || piece.State != models.PieceStateFree {
			return nil, fmt.Errorf("free pass not usable here: %w", ErrMethodNotEligible)
		}
		if _, err := s.Wallets.ApplyDeltaTx(tx, userID,
			WalletDelta{FreePasses: -1},
			"unlock:"+unlockID,
			DeltaRef{
				Type:        models.LedgerTypeSpend,
				RefType:     "unlock",
				RefID:       unlockID,
				Description: fmt.Sprintf("free pass for piece %s", pieceID),
			}); err != nil {
			return nil, err
		}

	case models.UnlockMethodCoin:
		cost := s.Wallets.Config.UnlockCostCoin
		if piece.State == models.PieceStatePaid {
			cost = s.Wallets.Config.LastPieceCost
		}
		if _, err := s.Wallets.ApplyDeltaTx(tx, userID,
			WalletDelta{Coins: -cost},
			"unlock:"+unlockID,
			DeltaRef{
				Type:        models.LedgerTypeSpend,
				RefType:     "unlock",
				RefID:       unlockID,
				Description: fmt.Sprintf("%d coins for piece %s", cost, pieceID),
			}); err != nil {
			return nil, err
		}

	case models.UnlockMethodPromo:
		// Validated before the transaction; zero ledger cost.
	}

	unlock := models.Unlock{
		ID:      unlockID,
		UserID:  userID,
		PieceID: pieceID,
		Method:  method,
	}
	if err := tx.Create(&unlock).Error; err != nil {
		return nil, err
	}

	if piece.Locked {
		piece.Locked = false
		piece.UnlockMethod = &method
		if err := tx.Save(&piece).Error; err != nil {
			return nil, err
		}
	}

	return &unlock, nil
}

// checkDailyQuota enforces UnlockPerDay for the calendar day (UTC).
func (s *UnlockService) checkDailyQuota(tx *gorm.DB, userID string) error {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	var count int64
	if err := tx.Model(&models.Unlock{}).
		Where("user_id = ? AND created_at >= ?", userID, dayStart).
		Count(&count).Error; err != nil {
		return err
	}
	if count >= UnlockPerDay {
		return fmt.Errorf("%d unlocks today: %w", count, ErrRateLimited)
	}
	return nil
}

// ListUnlocks returns every unlock the user has made, newest first.
func (s *UnlockService) ListUnlocks(userID string) ([]models.Unlock, error) {
	var unlocks []models.Unlock
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&unlocks).Error
	return unlocks, err
}

// --- HTTP handlers ---

// UnlockPiece handles POST /pieces/:id/unlock.
func (s *UnlockService) UnlockPiece(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	pieceID := c.Params("id")
	if _, err := uuid.Parse(pieceID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid piece ID"})
	}

	var req struct {
		Method    models.UnlockMethod `json:"method"`
		PromoCode string              `json:"promo_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	unlock, err := s.Unlock(c.Context(), userID, pieceID, req.Method, req.PromoCode)
	if err != nil {
		log.Printf("Unlock failed for user=%s piece=%s method=%s: %v", userID, pieceID, req.Method, err)
		return FailJSON(c, err)
	}
	return c.JSON(unlock)
}

// GetUserUnlocks handles GET /user/unlocks.
func (s *UnlockService) GetUserUnlocks(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	unlocks, err := s.ListUnlocks(userID)
	if err != nil {
		log.Printf("DB Error fetching unlocks for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch unlocks"})
	}
	return c.JSON(unlocks)
}
