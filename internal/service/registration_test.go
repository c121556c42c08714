package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/ident"
	"github.com/sakif/stampcard/internal/model"
)

func newTestRegistration(t *testing.T) (*RegistrationService, *memStore, *spyRecorder) {
	t.Helper()
	store := newMemStore()
	rec := &spyRecorder{}
	svc := NewRegistrationService(store, testLogger(), rec)
	svc.now = fixedClock()
	return svc, store, rec
}

// =========================================================================
// VALIDATION TESTS
// =========================================================================

func TestValidateNickname(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "neo", "neo", false},
		{"trimmed", "  trinity \t", "trinity", false},
		{"two characters", "ab", "ab", false},
		{"twenty characters", strings.Repeat("x", 20), strings.Repeat("x", 20), false},
		{"multibyte counted as characters", "ねこねこ", "ねこねこ", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"one character", "a", "", true},
		{"one character after trim", "  a  ", "", true},
		{"twenty-one characters", strings.Repeat("x", 21), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateNickname(tt.input)
			if tt.wantErr {
				if !errors.Is(err, apperror.ErrValidation) {
					t.Fatalf("ValidateNickname(%q) error = %v, want ErrValidation", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateNickname(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ValidateNickname(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_NewUser(t *testing.T) {
	svc, store, rec := newTestRegistration(t)

	res, err := svc.Register(context.Background(), "  morpheus ")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if res.IsReturningUser {
		t.Error("IsReturningUser = true for a new nickname")
	}
	if !ident.Valid(res.User.ID) {
		t.Errorf("ID %q is not a UUID v4", res.User.ID)
	}
	if res.User.Nickname != "morpheus" {
		t.Errorf("Nickname = %q, want trimmed %q", res.User.Nickname, "morpheus")
	}
	if res.User.Source != model.SourceNickname {
		t.Errorf("Source = %q, want %q", res.User.Source, model.SourceNickname)
	}
	if len(res.Stamps) != model.BoothCount {
		t.Fatalf("len(Stamps) = %d, want %d", len(res.Stamps), model.BoothCount)
	}
	for _, s := range res.Stamps {
		if s.Filled || s.FilledAt != nil {
			t.Errorf("slot %s is filled on a fresh card", s.BoothID)
		}
	}

	if _, ok := store.cards[res.User.ID]; !ok {
		t.Error("card was not stored with the user")
	}
	if len(rec.registrations) != 1 || rec.registrations[0] != model.SourceNickname {
		t.Errorf("registrations = %v", rec.registrations)
	}
}

func TestRegister_ReturningUser(t *testing.T) {
	svc, store, rec := newTestRegistration(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, "niobe")
	if err != nil {
		t.Fatalf("setup: Register() error = %v", err)
	}
	if _, err := store.MarkBooth(ctx, first.User.ID, "booth2", testNow); err != nil {
		t.Fatalf("setup: MarkBooth() error = %v", err)
	}

	second, err := svc.Register(ctx, "niobe")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !second.IsReturningUser {
		t.Error("IsReturningUser = false for a known nickname")
	}
	if second.User.ID != first.User.ID {
		t.Errorf("ID = %q, want existing %q", second.User.ID, first.User.ID)
	}
	if !second.Stamps[1].Filled {
		t.Error("returning user did not get their existing stamps")
	}
	if !second.User.LastActive.After(first.User.LastActive) {
		t.Error("lastActive was not touched")
	}
	if store.users[first.User.ID].LastActive != second.User.LastActive {
		t.Error("touch was not persisted")
	}
	if len(store.users) != 1 {
		t.Errorf("store has %d users, want 1", len(store.users))
	}
	if got := rec.registrations; len(got) != 2 || got[1] != model.SourceNickname+"/returning" {
		t.Errorf("registrations = %v", got)
	}
}

func TestRegister_CaseSensitive(t *testing.T) {
	svc, store, _ := newTestRegistration(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Tank"); err != nil {
		t.Fatalf("setup: Register() error = %v", err)
	}
	res, err := svc.Register(ctx, "tank")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if res.IsReturningUser {
		t.Error("nickname lookup must be case-sensitive")
	}
	if len(store.users) != 2 {
		t.Errorf("store has %d users, want 2", len(store.users))
	}
}

func TestRegister_InvalidNicknameSkipsStore(t *testing.T) {
	svc, store, _ := newTestRegistration(t)
	store.failOn["FindUserByNickname"] = errBackend

	_, err := svc.Register(context.Background(), "x")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation before any store access", err)
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Message != "Nickname must be 2-20 characters" {
		t.Errorf("message = %v", err)
	}
}

func TestRegister_LosesNicknameRace(t *testing.T) {
	svc, store, _ := newTestRegistration(t)

	winner := &model.User{ID: ident.New(), Nickname: "switch", CreatedAt: testNow, LastActive: testNow}
	store.conflictOnce = winner

	res, err := svc.Register(context.Background(), "switch")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !res.IsReturningUser {
		t.Error("losing the race should return the winner as a returning user")
	}
	if res.User.ID != winner.ID {
		t.Errorf("ID = %q, want winner %q", res.User.ID, winner.ID)
	}
}

func TestRegister_StorageFailure(t *testing.T) {
	svc, store, rec := newTestRegistration(t)
	store.failOn["CreateRegistrant"] = errBackend

	_, err := svc.Register(context.Background(), "apoc")
	if !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("error = %v, want ErrStorage", err)
	}
	if len(rec.storageOps) != 1 {
		t.Errorf("storage errors recorded = %v", rec.storageOps)
	}
}

func TestRegister_MisconfiguredStorePassesThrough(t *testing.T) {
	svc, store, _ := newTestRegistration(t)
	store.failOn["FindUserByNickname"] = apperror.Misconfigured(errors.New("no credentials"))

	_, err := svc.Register(context.Background(), "mouse")
	if !errors.Is(err, apperror.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
	if errors.Is(err, apperror.ErrStorage) {
		t.Error("configuration errors must stay distinct from storage errors")
	}
}

func TestRegister_ReturningUserWithoutCard(t *testing.T) {
	svc, store, _ := newTestRegistration(t)
	orphan := &model.User{ID: ident.New(), Nickname: "dozer"}
	store.users[orphan.ID] = orphan

	_, err := svc.Register(context.Background(), "dozer")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if _, ok := store.cards[orphan.ID]; ok {
		t.Error("a missing card must not be silently recreated")
	}
}
