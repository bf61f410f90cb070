package services

import (
	"errors"
	"testing"

	"piece-core-system/models"

	"github.com/google/uuid"
)

func TestCreateReport(t *testing.T) {
	db := newTestDB(t)
	svc := NewReportService(db)
	actor := uuid.NewString()

	report, err := svc.CreateReport(actor, "user", uuid.NewString(), models.ReportReasonSpam, "keeps sending links")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if report.Reason != models.ReportReasonSpam {
		t.Errorf("reason = %s, want spam", report.Reason)
	}
}

func TestCreateReportValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewReportService(db)
	actor := uuid.NewString()

	if _, err := svc.CreateReport(actor, "photo", uuid.NewString(), models.ReportReasonSpam, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad target type: want ErrInvalidInput, got %v", err)
	}
	if _, err := svc.CreateReport(actor, "user", uuid.NewString(), models.ReportReason("rude"), ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad reason: want ErrInvalidInput, got %v", err)
	}
}

func TestCreateReportDailyQuota(t *testing.T) {
	db := newTestDB(t)
	svc := NewReportService(db)
	actor := uuid.NewString()

	for i := 0; i < ReportPerDay; i++ {
		if _, err := svc.CreateReport(actor, "card", uuid.NewString(), models.ReportReasonFake, ""); err != nil {
			t.Fatalf("report %d: %v", i, err)
		}
	}
	if _, err := svc.CreateReport(actor, "card", uuid.NewString(), models.ReportReasonFake, ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
}

func TestBlockUserIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewReportService(db)
	actor, target := uuid.NewString(), uuid.NewString()

	first, err := svc.BlockUser(actor, target)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	second, err := svc.BlockUser(actor, target)
	if err != nil {
		t.Fatalf("repeat block: %v", err)
	}
	if second.ID != first.ID {
		t.Error("repeat block created a new row")
	}

	var count int64
	db.Model(&models.Block{}).Where("actor = ?", actor).Count(&count)
	if count != 1 {
		t.Errorf("block rows = %d, want 1", count)
	}
}

func TestBlockSelfRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewReportService(db)
	actor := uuid.NewString()

	if _, err := svc.BlockUser(actor, actor); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestUnblockUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewReportService(db)
	actor, target := uuid.NewString(), uuid.NewString()

	if _, err := svc.BlockUser(actor, target); err != nil {
		t.Fatalf("block: %v", err)
	}
	if err := svc.UnblockUser(actor, target); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	// Unblocking a user who was never blocked is a no-op.
	if err := svc.UnblockUser(actor, uuid.NewString()); err != nil {
		t.Fatalf("unblock stranger: %v", err)
	}

	blocks, err := svc.ListBlocks(actor)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("blocks = %d, want 0", len(blocks))
	}
}
