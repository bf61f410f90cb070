// workers/purchase_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"piece-core-system/models"
	"piece-core-system/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseSyncClient pulls completed coin purchases from the billing
// service and credits them through the wallet ledger. Payment-provider
// details (receipts, refunds, SKUs) stay in the billing service; only the
// credit side reaches this ledger.
type PurchaseSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
	Wallets    *services.WalletService
}

func NewPurchaseSyncClient(db *gorm.DB, wallets *services.WalletService) *PurchaseSyncClient {
	baseURL := os.Getenv("BILLING_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("BILLING_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("PIECE_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("PIECE_SERVICE_TOKEN environment variable is required for purchase sync")
	}

	return &PurchaseSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		Wallets: wallets,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// purchaseFromBilling matches the billing service's JSON for one completed purchase.
type purchaseFromBilling struct {
	UserID      string    `json:"user_id"`
	Coins       int64     `json:"coins"`
	ProviderRef string    `json:"provider_ref"`
	PurchasedAt time.Time `json:"purchased_at"`
}

func (c *PurchaseSyncClient) GetCompletedPurchases(ctx context.Context, since time.Time) ([]purchaseFromBilling, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/purchases", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("status", "completed")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call billing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("billing service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Purchases []purchaseFromBilling `json:"purchases"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode billing service response: %w", err)
	}
	return response.Purchases, nil
}

// PollPurchases ingests purchase mirrors and credits wallets.
func PollPurchases(ctx context.Context, client *PurchaseSyncClient, pollInterval time.Duration) {
	log.Println("Starting purchase polling (billing → wallet ledger)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Purchase polling stopped.")
			return
		case <-ticker.C:
			pollStart := time.Now().UTC()

			purchases, err := client.GetCompletedPurchases(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling purchases: %v", err)
				continue
			}

			if len(purchases) > 0 {
				rows := make([]models.CoinPurchase, 0, len(purchases))
				for _, p := range purchases {
					rows = append(rows, models.CoinPurchase{
						ID:          uuid.NewString(),
						UserID:      p.UserID,
						Coins:       p.Coins,
						ProviderRef: p.ProviderRef,
						PurchasedAt: p.PurchasedAt,
					})
				}
				if err := client.DB.Clauses(
					clause.OnConflict{
						Columns:   []clause.Column{{Name: "provider_ref"}},
						DoNothing: true,
					},
				).Create(&rows).Error; err != nil {
					log.Printf("❌ Failed to upsert %d purchase(s): %v", len(rows), err)
					// Do NOT advance lastSyncTime on failure — retry same window next tick
					continue
				}
			}

			if err := client.creditPending(); err != nil {
				log.Printf("❌ Failed crediting purchases: %v", err)
				continue
			}

			lastSyncTime = pollStart
		}
	}
}

// creditPending credits every uncredited purchase mirror through the
// ledger. The purchase row flips to credited in the same transaction as
// the ledger entry, and the provider ref doubles as the idempotency key.
func (c *PurchaseSyncClient) creditPending() error {
	var pending []models.CoinPurchase
	if err := c.DB.Where("credited = ?", false).Find(&pending).Error; err != nil {
		return err
	}

	for _, p := range pending {
		purchase := p
		if _, err := c.Wallets.EnsureWallet(purchase.UserID); err != nil {
			log.Printf("❌ Failed to ensure wallet for %s: %v", purchase.UserID, err)
			continue
		}
		err := c.DB.Transaction(func(tx *gorm.DB) error {
			if _, err := c.Wallets.ApplyDeltaTx(tx, purchase.UserID,
				services.WalletDelta{Coins: purchase.Coins},
				"purchase:"+purchase.ProviderRef,
				services.DeltaRef{
					Type:        models.LedgerTypePurchase,
					RefType:     "purchase",
					RefID:       purchase.ID,
					Description: fmt.Sprintf("%d coins purchased", purchase.Coins),
				}); err != nil {
				return err
			}
			purchase.Credited = true
			return tx.Save(&purchase).Error
		})
		if err != nil {
			log.Printf("❌ Failed to credit purchase %s for %s: %v", purchase.ProviderRef, purchase.UserID, err)
			continue
		}
		log.Printf("💰 Credited %d coins to %s (purchase %s)", purchase.Coins, purchase.UserID, purchase.ProviderRef)
	}
	return nil
}
