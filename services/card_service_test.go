package services

import (
	"errors"
	"strings"
	"testing"

	"piece-core-system/models"

	"github.com/google/uuid"
)

func TestCreateCardPieceLayout(t *testing.T) {
	db := newTestDB(t)
	svc := NewCardService(db)
	owner := uuid.NewString()

	card, err := svc.CreateCard(owner, models.CardTypePhoto, "Sunday in Seoul", "", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if card.Slug != "sunday-in-seoul" {
		t.Errorf("slug = %q", card.Slug)
	}
	if len(card.Pieces) != TotalPiecesPerCard {
		t.Fatalf("pieces = %d, want %d", len(card.Pieces), TotalPiecesPerCard)
	}

	for i, p := range card.Pieces {
		if p.Idx != i {
			t.Errorf("piece %d has idx %d", i, p.Idx)
		}
		wantLocked := i > 0
		if p.Locked != wantLocked {
			t.Errorf("piece %d locked = %v, want %v", i, p.Locked, wantLocked)
		}
		wantState := models.PieceStateFree
		if i >= FreePiecesPerCard {
			wantState = models.PieceStatePaid
		}
		if p.State != wantState {
			t.Errorf("piece %d state = %s, want %s", i, p.State, wantState)
		}
	}
}

func TestCreateCardValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewCardService(db)
	owner := uuid.NewString()

	tests := []struct {
		name     string
		cardType models.CardType
		title    string
		pieces   []string
	}{
		{"unknown type", models.CardType("selfie"), "ok", []string{"a", "b", "c"}},
		{"too few pieces", models.CardTypeHobby, "ok", []string{"a"}},
		{"too many pieces", models.CardTypeHobby, "ok", []string{"a", "b", "c", "d"}},
		{"title too long", models.CardTypeHobby, strings.Repeat("x", 101), []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateCard(owner, tt.cardType, tt.title, "", tt.pieces); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("want ErrInvalidInput, got %v", err)
			}
		})
	}

	// Nothing partial may survive a failed create.
	var count int64
	db.Model(&models.Card{}).Count(&count)
	if count != 0 {
		t.Errorf("card rows = %d, want 0", count)
	}
}

func TestGetCardWithPiecesOrdersByIdx(t *testing.T) {
	db := newTestDB(t)
	svc := NewCardService(db)
	created, err := svc.CreateCard(uuid.NewString(), models.CardTypeLocation, "Hongdae", "", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	card, err := svc.GetCardWithPieces(created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for i, p := range card.Pieces {
		if p.Idx != i {
			t.Errorf("piece at position %d has idx %d", i, p.Idx)
		}
	}
}

func TestGetCardNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewCardService(db)

	if _, err := svc.GetCardWithPieces(uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeactivateCardOwnerOnly(t *testing.T) {
	db := newTestDB(t)
	svc := NewCardService(db)
	owner := uuid.NewString()

	card, err := svc.CreateCard(owner, models.CardTypeInterest, "Jazz", "", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.DeactivateCard(card.ID, uuid.NewString()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger deactivate: want ErrForbidden, got %v", err)
	}
	if err := svc.DeactivateCard(card.ID, owner); err != nil {
		t.Fatalf("owner deactivate: %v", err)
	}

	// Deactivated cards disappear from reads.
	if _, err := svc.GetCardWithPieces(card.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after deactivation, got %v", err)
	}
	mine, err := svc.MyCards(owner)
	if err != nil {
		t.Fatalf("my cards: %v", err)
	}
	if len(mine) != 0 {
		t.Errorf("active cards = %d, want 0", len(mine))
	}
}

func TestFeedExcludesOwnAndBlocked(t *testing.T) {
	db := newTestDB(t)
	cards := NewCardService(db)
	reports := NewReportService(db)

	viewer := uuid.NewString()
	friendly := uuid.NewString()
	blocked := uuid.NewString()

	for _, owner := range []string{viewer, friendly, blocked} {
		if _, err := cards.CreateCard(owner, models.CardTypeHobby, "Card", "", []string{"a", "b", "c"}); err != nil {
			t.Fatalf("seed card for %s: %v", owner, err)
		}
	}
	if _, err := reports.BlockUser(viewer, blocked); err != nil {
		t.Fatalf("block: %v", err)
	}

	entries, err := cards.Feed(viewer, "", 1, 20)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("feed size = %d, want 1", len(entries))
	}
	if entries[0].Card.UserID != friendly {
		t.Errorf("feed owner = %s, want %s", entries[0].Card.UserID, friendly)
	}
}

func TestFeedRegionFilterAndProfileAttachment(t *testing.T) {
	db := newTestDB(t)
	cards := NewCardService(db)
	viewer := uuid.NewString()

	seoul := uuid.NewString()
	busan := uuid.NewString()
	for owner, region := range map[string]string{seoul: "KR-11", busan: "KR-26"} {
		region := region
		profile := models.ProfileUser{
			ID:             uuid.NewString(),
			ExternalUserID: owner,
			Nickname:       "user-" + region,
			RegionCode:     &region,
		}
		if err := db.Create(&profile).Error; err != nil {
			t.Fatalf("seed profile: %v", err)
		}
		if _, err := cards.CreateCard(owner, models.CardTypeLocation, "Around here", "", []string{"a", "b", "c"}); err != nil {
			t.Fatalf("seed card: %v", err)
		}
	}

	entries, err := cards.Feed(viewer, "KR-11", 1, 20)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("feed size = %d, want 1", len(entries))
	}
	if entries[0].Card.UserID != seoul {
		t.Errorf("feed owner = %s, want the KR-11 user", entries[0].Card.UserID)
	}
	if entries[0].User == nil || entries[0].User.RegionCode == nil || *entries[0].User.RegionCode != "KR-11" {
		t.Error("owner profile not attached to feed entry")
	}
}

func TestFeedHidesBannedOwnersProfile(t *testing.T) {
	db := newTestDB(t)
	cards := NewCardService(db)
	viewer := uuid.NewString()
	banned := uuid.NewString()

	profile := models.ProfileUser{
		ID:             uuid.NewString(),
		ExternalUserID: banned,
		Nickname:       "troll",
		IsBanned:       true,
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if _, err := cards.CreateCard(banned, models.CardTypePhoto, "Hi", "", []string{"a", "b", "c"}); err != nil {
		t.Fatalf("seed card: %v", err)
	}

	entries, err := cards.Feed(viewer, "", 1, 20)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("feed size = %d, want 1", len(entries))
	}
	if entries[0].User != nil {
		t.Error("banned owner's profile exposed in feed")
	}
}
