package services

import (
	"errors"
	"testing"

	"piece-core-system/models"

	"github.com/google/uuid"
)

func TestSendPieceCreatesPendingIntent(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)
	alice, bob := uuid.NewString(), uuid.NewString()

	intent, err := svc.SendPiece(alice, bob, models.MatchViaSendPiece)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if intent.Status != models.IntentStatusPending {
		t.Errorf("status = %s, want pending", intent.Status)
	}
	if intent.FromUser != alice || intent.ToUser != bob {
		t.Errorf("intent pair = (%s, %s), want (%s, %s)", intent.FromUser, intent.ToUser, alice, bob)
	}
	if intent.RespondedAt != nil {
		t.Error("responded_at set on a fresh intent")
	}
}

func TestSendPieceRejectsSelf(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)
	alice := uuid.NewString()

	if _, err := svc.SendPiece(alice, alice, models.MatchViaSendPiece); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestSendPieceRejectsDuplicatePending(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)
	alice, bob := uuid.NewString(), uuid.NewString()

	if _, err := svc.SendPiece(alice, bob, models.MatchViaSendPiece); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := svc.SendPiece(alice, bob, models.MatchViaOpenLastPiece); !errors.Is(err, ErrDuplicateIntent) {
		t.Fatalf("want ErrDuplicateIntent, got %v", err)
	}

	// The reverse direction is a distinct intent, not a duplicate.
	if _, err := svc.SendPiece(bob, alice, models.MatchViaSendPiece); err != nil {
		t.Fatalf("reverse send: %v", err)
	}
}

func TestSendPieceAllowsNewIntentAfterRejection(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)
	alice, bob := uuid.NewString(), uuid.NewString()

	intent, err := svc.SendPiece(alice, bob, models.MatchViaSendPiece)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Respond(intent.ID, bob, false); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := svc.SendPiece(alice, bob, models.MatchViaSendPiece); err != nil {
		t.Fatalf("second send after rejection: %v", err)
	}
}

func TestSendPieceDailyQuota(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)
	alice := uuid.NewString()

	for i := 0; i < MatchRequestPerDay; i++ {
		if _, err := svc.SendPiece(alice, uuid.NewString(), models.MatchViaSendPiece); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if _, err := svc.SendPiece(alice, uuid.NewString(), models.MatchViaSendPiece); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
}

func TestRespondAcceptCreatesMatchAtomically(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)
	alice, bob := uuid.NewString(), uuid.NewString()

	intent, err := svc.SendPiece(alice, bob, models.MatchViaOpenLastPiece)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	result, err := svc.Respond(intent.ID, bob, true)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if result.Intent.Status != models.IntentStatusAccepted {
		t.Errorf("status = %s, want accepted", result.Intent.Status)
	}
	if result.Intent.RespondedAt == nil {
		t.Error("responded_at not stamped")
	}
	if result.Match == nil {
		t.Fatal("no match returned on accept")
	}
	if result.Match.UserA != alice || result.Match.UserB != bob {
		t.Errorf("match pair = (%s, %s), want (%s, %s)", result.Match.UserA, result.Match.UserB, alice, bob)
	}
	if result.Match.IntentID != intent.ID {
		t.Error("match does not reference the originating intent")
	}

	matches, err := svc.ListMatches(alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches for sender = %d, want 1", len(matches))
	}
}

func TestRespondRejectCreatesNoMatch(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)
	alice, bob := uuid.NewString(), uuid.NewString()

	intent, err := svc.SendPiece(alice, bob, models.MatchViaSendPiece)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	result, err := svc.Respond(intent.ID, bob, false)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if result.Intent.Status != models.IntentStatusRejected {
		t.Errorf("status = %s, want rejected", result.Intent.Status)
	}
	if result.Match != nil {
		t.Error("match created on rejection")
	}

	var count int64
	db.Model(&models.Match{}).Count(&count)
	if count != 0 {
		t.Errorf("match rows = %d, want 0", count)
	}
}

func TestRespondTwiceFails(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)
	alice, bob := uuid.NewString(), uuid.NewString()

	intent, err := svc.SendPiece(alice, bob, models.MatchViaSendPiece)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Respond(intent.ID, bob, true); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Neither a second accept nor a late reject may change the outcome.
	if _, err := svc.Respond(intent.ID, bob, true); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second accept: want ErrAlreadyResolved, got %v", err)
	}
	if _, err := svc.Respond(intent.ID, bob, false); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("late reject: want ErrAlreadyResolved, got %v", err)
	}

	var count int64
	db.Model(&models.Match{}).Where("intent_id = ?", intent.ID).Count(&count)
	if count != 1 {
		t.Errorf("match rows = %d, want exactly 1", count)
	}
}

func TestRespondOnlyRecipientMayResolve(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)
	alice, bob := uuid.NewString(), uuid.NewString()

	intent, err := svc.SendPiece(alice, bob, models.MatchViaSendPiece)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Respond(intent.ID, alice, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("sender accept: want ErrForbidden, got %v", err)
	}
	if _, err := svc.Respond(intent.ID, uuid.NewString(), true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger accept: want ErrForbidden, got %v", err)
	}
}

func TestRespondUnknownIntent(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)

	if _, err := svc.Respond(uuid.NewString(), uuid.NewString(), true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPendingIntentsFor(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)
	alice, bob, carol := uuid.NewString(), uuid.NewString(), uuid.NewString()

	if _, err := svc.SendPiece(alice, bob, models.MatchViaSendPiece); err != nil {
		t.Fatalf("send alice->bob: %v", err)
	}
	resolved, err := svc.SendPiece(carol, bob, models.MatchViaSendPiece)
	if err != nil {
		t.Fatalf("send carol->bob: %v", err)
	}
	if _, err := svc.Respond(resolved.ID, bob, false); err != nil {
		t.Fatalf("reject: %v", err)
	}

	intents, err := svc.PendingIntentsFor(bob)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(intents) != 1 {
		t.Fatalf("pending = %d, want 1 (resolved intents excluded)", len(intents))
	}
	if intents[0].FromUser != alice {
		t.Errorf("pending from = %s, want %s", intents[0].FromUser, alice)
	}
}

func TestDeactivateMatch(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchService(db)
	alice, bob := uuid.NewString(), uuid.NewString()

	intent, err := svc.SendPiece(alice, bob, models.MatchViaSendPiece)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	result, err := svc.Respond(intent.ID, bob, true)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := svc.DeactivateMatch(result.Match.ID, uuid.NewString()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger deactivate: want ErrForbidden, got %v", err)
	}
	if err := svc.DeactivateMatch(result.Match.ID, alice); err != nil {
		t.Fatalf("participant deactivate: %v", err)
	}
	// Deactivating again is a no-op.
	if err := svc.DeactivateMatch(result.Match.ID, bob); err != nil {
		t.Fatalf("repeat deactivate: %v", err)
	}

	matches, err := svc.ListMatches(bob)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("active matches = %d, want 0", len(matches))
	}
}
