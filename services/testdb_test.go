package services

import (
	"fmt"
	"testing"

	"piece-core-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database per test. cache=shared lets
// the pool's connections see the same data; busy_timeout absorbs writer
// contention in the concurrency tests.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.Card{},
		&models.Piece{},
		&models.Unlock{},
		&models.MatchIntent{},
		&models.Match{},
		&models.ProfileUser{},
		&models.CoinPurchase{},
		&models.Report{},
		&models.Block{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// seedWallet inserts a wallet with a fixed balance for a fresh user.
func seedWallet(t *testing.T, db *gorm.DB, coins, freePasses int64, tier models.PassTier) string {
	t.Helper()
	userID := uuid.NewString()
	w := models.Wallet{
		ID:         uuid.NewString(),
		UserID:     userID,
		Coins:      coins,
		FreePasses: freePasses,
		PassTier:   tier,
	}
	if err := db.Create(&w).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return userID
}
