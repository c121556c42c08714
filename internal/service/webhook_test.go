package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/formsg"
	"github.com/sakif/stampcard/internal/ident"
	"github.com/sakif/stampcard/internal/model"
)

const testSecret = "webhook-secret"

func newTestWebhook(t *testing.T, cfg formsg.Config) (*WebhookService, *memStore, *spyRecorder) {
	t.Helper()
	proc, err := formsg.NewProcessor(cfg)
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	store := newMemStore()
	rec := &spyRecorder{}
	svc := NewWebhookService(store, proc, "https://stamps.example.org/", testLogger(), rec)
	svc.now = fixedClock()
	return svc, store, rec
}

// =========================================================================
// RECEIVE TESTS
// =========================================================================

func TestReceive_ResponsesPayload(t *testing.T) {
	svc, store, rec := newTestWebhook(t, formsg.Config{})
	body := []byte(`{
		"formId": "form-1",
		"submissionId": "sub-1",
		"responses": [
			{"question": "Email", "answer": "a@b.com"},
			{"question": "Full Name", "answer": "Ada"},
			{"question": "Company", "answer": "Zion"}
		]
	}`)

	res, err := svc.Receive(context.Background(), body, "")
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}

	u := res.User
	if !ident.Valid(u.ID) {
		t.Errorf("ID %q is not a UUID v4", u.ID)
	}
	if u.Email != "a@b.com" || u.Name != "Ada" {
		t.Errorf("email/name = %q/%q", u.Email, u.Name)
	}
	if u.Source != model.SourceFormSG || u.FormID != "form-1" || u.SubmissionID != "sub-1" {
		t.Errorf("provenance = %q %q %q", u.Source, u.FormID, u.SubmissionID)
	}
	if u.AdditionalData["Company"] != "Zion" {
		t.Errorf("AdditionalData = %v", u.AdditionalData)
	}
	if u.FormData["formId"] != "form-1" {
		t.Error("raw payload was not kept")
	}
	if want := "https://stamps.example.org/stamps?id=" + u.ID; res.RedirectURL != want {
		t.Errorf("RedirectURL = %q, want %q", res.RedirectURL, want)
	}

	card, ok := store.cards[u.ID]
	if !ok || card.Collected() != 0 || len(card.Stamps) != model.BoothCount {
		t.Error("fresh card was not stored")
	}
	if got := rec.parses; len(got) != 1 || got[0] != string(formsg.SourceResponses) {
		t.Errorf("parses = %v", got)
	}
	if got := rec.registrations; len(got) != 1 || got[0] != model.SourceFormSG {
		t.Errorf("registrations = %v", got)
	}
}

func TestReceive_UnparseablePayloadStillRegisters(t *testing.T) {
	svc, store, _ := newTestWebhook(t, formsg.Config{})

	res, err := svc.Receive(context.Background(), []byte(`not json at all`), "")
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if res.User.Email != formsg.PlaceholderEmail {
		t.Errorf("Email = %q, want placeholder", res.User.Email)
	}
	if !res.Submission.Degraded {
		t.Error("Degraded = false")
	}
	if len(store.users) != 1 {
		t.Errorf("store has %d users, want 1", len(store.users))
	}
}

func TestReceive_NoDedup(t *testing.T) {
	svc, store, _ := newTestWebhook(t, formsg.Config{})
	body := []byte(`{"responses":[{"question":"Email","answer":"same@b.com"}]}`)

	for i := 0; i < 2; i++ {
		if _, err := svc.Receive(context.Background(), body, ""); err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
	}
	if len(store.users) != 2 {
		t.Errorf("store has %d users, want 2", len(store.users))
	}
}

func TestReceive_Signature(t *testing.T) {
	svc, store, _ := newTestWebhook(t, formsg.Config{WebhookSecret: testSecret})
	body := []byte(`{"responses":[{"question":"Email","answer":"a@b.com"}]}`)

	_, err := svc.Receive(context.Background(), body, "deadbeef")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	_, err = svc.Receive(context.Background(), body, "")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("missing signature error = %v, want ErrUnauthorized", err)
	}
	if len(store.users) != 0 {
		t.Fatal("rejected delivery created a user")
	}

	sig := formsg.Sign([]byte(testSecret), body)
	if _, err := svc.Receive(context.Background(), body, sig); err != nil {
		t.Fatalf("Receive() with valid signature error = %v", err)
	}
}

func TestReceive_StorageFailure(t *testing.T) {
	svc, store, _ := newTestWebhook(t, formsg.Config{})
	store.failOn["CreateRegistrant"] = errBackend

	_, err := svc.Receive(context.Background(), []byte(`{}`), "")
	if !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("error = %v, want ErrStorage", err)
	}
}

// =========================================================================
// REDIRECT AND SUBMISSION TESTS
// =========================================================================

func TestRedirectAfterForm(t *testing.T) {
	svc, _, _ := newTestWebhook(t, formsg.Config{})

	got := svc.RedirectAfterForm("abc 123", true)
	if want := "https://stamps.example.org/stamps?submissionId=abc+123&success=true"; got != want {
		t.Errorf("success redirect = %q, want %q", got, want)
	}
	for _, tc := range []struct {
		id      string
		success bool
	}{{"abc", false}, {"", true}, {"  ", true}} {
		if got := svc.RedirectAfterForm(tc.id, tc.success); !strings.HasSuffix(got, "/?error=form-submission-failed") {
			t.Errorf("RedirectAfterForm(%q, %t) = %q", tc.id, tc.success, got)
		}
	}
}

func TestRecordSubmission(t *testing.T) {
	svc, store, _ := newTestWebhook(t, formsg.Config{})

	sub, err := svc.RecordSubmission(context.Background(), " sub-9 ", "user-1", "a@b.com")
	if err != nil {
		t.Fatalf("RecordSubmission() error = %v", err)
	}
	if sub.SubmissionID != "sub-9" || sub.Source != SubmissionSourceRelay {
		t.Errorf("submission = %+v", sub)
	}
	if sub.ReceivedAt != testNow {
		t.Errorf("ReceivedAt = %v, want %v", sub.ReceivedAt, testNow)
	}
	if _, ok := store.submissions["sub-9"]; !ok {
		t.Error("submission was not stored")
	}

	_, err = svc.RecordSubmission(context.Background(), "  ", "", "")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("missing id error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// ADMIN TESTS
// =========================================================================

func TestAdminStats(t *testing.T) {
	store := newMemStore()
	svc := NewAdminService(store, testLogger(), &spyRecorder{})
	seedUser(t, store, "neo")
	seedUser(t, store, "trinity")

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalUsers != 2 || stats.TotalStampCards != 2 || len(stats.RecentUsers) != 2 {
		t.Errorf("stats = %+v", stats)
	}

	store.failOn["Stats"] = errBackend
	if _, err := svc.Stats(context.Background()); !errors.Is(err, apperror.ErrStorage) {
		t.Errorf("error = %v, want ErrStorage", err)
	}
}

func TestAdminCheckStore(t *testing.T) {
	store := newMemStore()
	svc := NewAdminService(store, testLogger(), &spyRecorder{})

	check, err := svc.CheckStore(context.Background())
	if err != nil {
		t.Fatalf("CheckStore() error = %v", err)
	}
	if !check.Wrote || !check.Read || !check.Deleted {
		t.Errorf("check = %+v", check)
	}

	store.failOn["CheckStore"] = apperror.Misconfigured(errors.New("bad key"))
	if _, err := svc.CheckStore(context.Background()); !errors.Is(err, apperror.ErrConfiguration) {
		t.Errorf("error = %v, want ErrConfiguration", err)
	}
}
