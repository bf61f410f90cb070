// services/scheduler.go
package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"piece-core-system/models"
	"piece-core-system/utils"

	"github.com/go-co-op/gocron/v2"
)

// StartLedgerScheduler runs the wallet service's periodic jobs:
// the daily free-pass refill for subscribed tiers and the nightly
// ledger audit export.
func (s *WalletService) StartLedgerScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Daily at 00:05 UTC: one free pass per subscribed wallet. The date-keyed
	// idempotency key makes restarts and overlapping runs harmless.
	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			day := time.Now().UTC().Format("2006-01-02")
			var wallets []models.Wallet
			if err := s.DB.Where("pass_tier <> ?", models.PassTierFree).Find(&wallets).Error; err != nil {
				log.Printf("[Scheduler] DB error listing subscribed wallets: %v", err)
				return
			}
			granted := 0
			for _, w := range wallets {
				key := fmt.Sprintf("freepass:%s:%s", day, w.UserID)
				if _, err := s.ApplyDelta(w.UserID,
					WalletDelta{FreePasses: 1},
					key,
					DeltaRef{
						Type:        models.LedgerTypeEarn,
						RefType:     "grant",
						Description: "daily free pass",
					}); err != nil {
					log.Printf("[Scheduler] Failed to grant free pass to %s: %v", w.UserID, err)
					continue
				}
				granted++
			}
			log.Printf("✅ Daily free-pass refill: %d wallet(s)", granted)
		}),
	)

	// Nightly at 01:00 UTC: export yesterday's ledger entries to R2 for audit.
	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(1, 0, 0))),
		gocron.NewTask(func() {
			if err := s.exportDailyAudit(time.Now().UTC().AddDate(0, 0, -1)); err != nil {
				log.Printf("[Scheduler] Ledger audit export failed: %v", err)
			}
		}),
	)
}

// exportDailyAudit uploads one day's ledger entries as a JSON object.
func (s *WalletService) exportDailyAudit(day time.Time) error {
	start := day.Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	var entries []models.LedgerEntry
	if err := s.DB.Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return fmt.Errorf("failed to collect ledger entries: %w", err)
	}
	if len(entries) == 0 {
		log.Printf("[Scheduler] No ledger entries for %s, skipping audit export", start.Format("2006-01-02"))
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"day":     start.Format("2006-01-02"),
		"count":   len(entries),
		"entries": entries,
	})
	if err != nil {
		return err
	}

	key := fmt.Sprintf("ledger-audit/%s.json", start.Format("2006-01-02"))
	url, err := utils.UploadAuditObject(key, payload)
	if err != nil {
		return err
	}
	log.Printf("✅ Exported %d ledger entrie(s) to %s", len(entries), url)
	return nil
}
