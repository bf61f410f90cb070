// services/wallet_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"piece-core-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WalletConfig defines the economy tuning knobs (overridable via env later)
type WalletConfig struct {
	DefaultCoins    int64
	DefaultPassTier models.PassTier
	UnlockCostCoin  int64 // cost of a free-state piece paid with coins
	LastPieceCost   int64 // cost of the paid (last) piece
}

var DefaultWalletConfig = WalletConfig{
	DefaultCoins:    0,
	DefaultPassTier: models.PassTierFree,
	UnlockCostCoin:  10,
	LastPieceCost:   50,
}

// WalletDelta is one signed change to a wallet balance.
type WalletDelta struct {
	Coins      int64
	FreePasses int64
}

// DeltaRef ties a ledger entry back to the domain event that caused it.
type DeltaRef struct {
	Type        models.LedgerType
	RefType     string // e.g. "unlock", "purchase", "grant"
	RefID       string
	Description string
}

// WalletService is the single authority over wallet balances. All balance
// mutations go through ApplyDelta (or its tx-scoped variant), which keeps
// the non-negative invariant and the ledger append atomic.
type WalletService struct {
	DB     *gorm.DB
	Config WalletConfig
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{DB: db, Config: DefaultWalletConfig}
}

// EnsureWallet ensures a wallet row exists for the user (idempotent).
func (s *WalletService) EnsureWallet(userID string) (*models.Wallet, error) {
	var w models.Wallet
	err := s.DB.Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		w = models.Wallet{
			ID:         uuid.NewString(),
			UserID:     userID,
			Coins:      s.Config.DefaultCoins,
			FreePasses: 0,
			PassTier:   s.Config.DefaultPassTier,
		}
		if err := s.DB.Create(&w).Error; err != nil {
			return nil, err
		}
		return &w, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetBalance returns the wallet for the user, or ErrNotFound.
func (s *WalletService) GetBalance(userID string) (*models.Wallet, error) {
	var w models.Wallet
	if err := s.DB.Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("wallet for user %s: %w", userID, ErrNotFound)
		}
		return nil, err
	}
	return &w, nil
}

// ApplyDelta atomically adds the deltas to the stored balance and appends a
// ledger entry. The check and the write happen in one transaction with the
// wallet row locked, so no concurrent apply sees a stale balance. A replay
// with the same idempotency key returns the previously committed result
// without reapplying. Transient storage conflicts are retried a bounded
// number of times before surfacing as ErrTransientStorage.
func (s *WalletService) ApplyDelta(userID string, delta WalletDelta, idemKey string, ref DeltaRef) (*models.Wallet, error) {
	var result *models.Wallet
	var err error
	for attempt := 0; attempt < maxTransientRetries; attempt++ {
		err = s.DB.Transaction(func(tx *gorm.DB) error {
			w, txErr := s.ApplyDeltaTx(tx, userID, delta, idemKey, ref)
			if txErr != nil {
				return txErr
			}
			result = w
			return nil
		})
		if err == nil || !isTransientStorageErr(err) {
			break
		}
		log.Printf("⚠️ [LEDGER] transient conflict applying delta for %s (attempt %d): %v", userID, attempt+1, err)
	}
	if err != nil {
		if isTransientStorageErr(err) {
			return nil, fmt.Errorf("%w: %v", ErrTransientStorage, err)
		}
		return nil, err
	}
	return result, nil
}

// ApplyDeltaTx is the transaction-scoped core of ApplyDelta. Callers that
// need the debit atomic with their own writes (the unlock engine) run it
// inside their transaction.
func (s *WalletService) ApplyDeltaTx(tx *gorm.DB, userID string, delta WalletDelta, idemKey string, ref DeltaRef) (*models.Wallet, error) {
	// Replay check first: a committed entry with this key wins.
	var prior models.LedgerEntry
	err := tx.Where("idempotency_key = ?", idemKey).First(&prior).Error
	if err == nil {
		return &models.Wallet{
			UserID:     prior.UserID,
			Coins:      prior.CoinsAfter,
			FreePasses: prior.FreePassesAfter,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var w models.Wallet
	if err := lockForUpdate(tx).
		Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("wallet for user %s: %w", userID, ErrNotFound)
		}
		return nil, err
	}

	newCoins := w.Coins + delta.Coins
	newPasses := w.FreePasses + delta.FreePasses
	if newCoins < 0 || newPasses < 0 {
		return nil, ErrInsufficientFunds
	}

	w.Coins = newCoins
	w.FreePasses = newPasses
	if err := tx.Save(&w).Error; err != nil {
		return nil, err
	}

	entry := models.LedgerEntry{
		ID:              uuid.NewString(),
		UserID:          userID,
		Type:            ref.Type,
		CoinsDelta:      delta.Coins,
		FreePassesDelta: delta.FreePasses,
		CoinsAfter:      newCoins,
		FreePassesAfter: newPasses,
		RefType:         ref.RefType,
		RefID:           ref.RefID,
		IdempotencyKey:  idemKey,
		Description:     ref.Description,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	return &w, nil
}

// LedgerHistory returns the user's ledger entries, newest first.
func (s *WalletService) LedgerHistory(userID string, page, size int) ([]models.LedgerEntry, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	var entries []models.LedgerEntry
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&entries).Error
	return entries, err
}

// --- HTTP handlers ---

// GetWallet returns the authenticated user's wallet, creating it lazily.
func (s *WalletService) GetWallet(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	w, err := s.EnsureWallet(userID)
	if err != nil {
		log.Printf("DB Error fetching wallet for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch wallet"})
	}
	return c.JSON(w)
}

// GetLedgerHistory returns the authenticated user's transaction history.
func (s *WalletService) GetLedgerHistory(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("size", "20"))

	entries, err := s.LedgerHistory(userID, page, size)
	if err != nil {
		log.Printf("DB Error fetching ledger history for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch transactions"})
	}
	return c.JSON(fiber.Map{
		"transactions": entries,
		"page":         page,
		"size":         size,
	})
}
