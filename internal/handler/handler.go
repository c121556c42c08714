package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/model"
	"github.com/sakif/stampcard/internal/service"
)

// The handlers depend on these interfaces rather than the concrete services
// so tests can inject fakes.

type Registrar interface {
	Register(ctx context.Context, nickname string) (*service.RegistrationResult, error)
}

type WebhookReceiver interface {
	Receive(ctx context.Context, body []byte, signature string) (*service.WebhookResult, error)
	RedirectAfterForm(submissionID string, success bool) string
	RecordSubmission(ctx context.Context, submissionID, userID, email string) (*model.Submission, error)
}

type StampCards interface {
	Get(ctx context.Context, id string) (*service.StampCardView, error)
	Mark(ctx context.Context, id, boothID string) (*service.MarkResult, error)
}

type Admin interface {
	Stats(ctx context.Context) (*model.Stats, error)
	CheckStore(ctx context.Context) (*model.StoreCheck, error)
}

var (
	_ Registrar       = (*service.RegistrationService)(nil)
	_ WebhookReceiver = (*service.WebhookService)(nil)
	_ StampCards      = (*service.StampService)(nil)
	_ Admin           = (*service.AdminService)(nil)
)

// Request body limits.
const (
	maxJSONBody    = 64 << 10
	maxWebhookBody = 1 << 20
)

// readBody reads at most limit bytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.ValidationFailed("body", "Request body is too large")
		}
		return nil, apperror.ValidationFailed("body", "Request body could not be read")
	}
	return body, nil
}

// decodeJSON decodes a small JSON request body into v. An empty body leaves
// v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := readBody(w, r, maxJSONBody)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}
