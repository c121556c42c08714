package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/formsg"
	"github.com/sakif/stampcard/internal/model"
)

// RegistrationHandler serves both ways of getting a stamp card: picking a
// nickname, or submitting the FormSG registration form.
type RegistrationHandler struct {
	responder
	registrar Registrar
	webhooks  WebhookReceiver
}

func NewRegistrationHandler(registrar Registrar, webhooks WebhookReceiver, logger *slog.Logger, devMode bool) *RegistrationHandler {
	return &RegistrationHandler{
		responder: responder{logger: logger, devMode: devMode},
		registrar: registrar,
		webhooks:  webhooks,
	}
}

type createGuestResponse struct {
	Success         bool         `json:"success"`
	ID              string       `json:"id"`
	Nickname        string       `json:"nickname"`
	IsReturningUser bool         `json:"isReturningUser"`
	Stamps          []model.Slot `json:"stamps"`
}

// HandleCreateGuest registers a nickname or returns its existing card.
//
// HTTP: POST /api/create-guest
// REQUEST BODY: {"nickname": "neo"}
func (h *RegistrationHandler) HandleCreateGuest(w http.ResponseWriter, r *http.Request) {
	// Nickname is decoded as any so a number or object is reported as a
	// type error rather than a JSON error.
	var req struct {
		Nickname any `json:"nickname"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var nickname string
	switch v := req.Nickname.(type) {
	case nil:
		h.writeError(w, r, apperror.ValidationFailed("nickname", "Nickname is required"))
		return
	case string:
		nickname = v
	default:
		h.writeError(w, r, apperror.ValidationFailed("nickname", "Nickname must be a string"))
		return
	}

	res, err := h.registrar.Register(r.Context(), nickname)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, createGuestResponse{
		Success:         true,
		ID:              res.User.ID,
		Nickname:        res.User.Nickname,
		IsReturningUser: res.IsReturningUser,
		Stamps:          res.Stamps,
	})
}

type webhookResponse struct {
	Success     bool   `json:"success"`
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	RedirectURL string `json:"redirectUrl"`
	Message     string `json:"message"`
}

// HandleFormSGWebhook ingests one FormSG delivery.
//
// HTTP: POST /api/formsg-webhook
// HEADER: X-FormSG-Signature (required when a webhook secret is configured)
//
// The raw body is read before decoding because the signature covers the
// exact bytes sent. A body over maxWebhookBody is refused with 400 before
// anything is registered: a truncated body cannot be verified.
func (h *RegistrationHandler) HandleFormSGWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, maxWebhookBody)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.webhooks.Receive(r.Context(), body, r.Header.Get(formsg.SignatureHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Success:     true,
		UserID:      res.User.ID,
		Email:       res.User.Email,
		RedirectURL: res.RedirectURL,
		Message:     "User registered successfully",
	})
}

type submissionRequest struct {
	SubmissionID      string `json:"submissionId"`
	SubmissionIDSnake string `json:"submission_id"`
	UserID            string `json:"userId"`
	UserIDSnake       string `json:"user_id"`
	Email             string `json:"email"`
}

type submissionResponse struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	SubmissionID string    `json:"submissionId"`
	Timestamp    time.Time `json:"timestamp"`
}

// HandleReceiveSubmission records a submission id relayed by a middleman
// service. The id may come in the body (camelCase or snake_case) or as the
// submissionId query parameter.
//
// HTTP: POST /api/receive-submission
func (h *RegistrationHandler) HandleReceiveSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	submissionID := firstNonEmpty(req.SubmissionID, req.SubmissionIDSnake, r.URL.Query().Get("submissionId"))
	userID := firstNonEmpty(req.UserID, req.UserIDSnake)

	sub, err := h.webhooks.RecordSubmission(r.Context(), submissionID, userID, req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, submissionResponse{
		Success:      true,
		Message:      "Submission ID received successfully",
		SubmissionID: sub.SubmissionID,
		Timestamp:    sub.ReceivedAt,
	})
}

// HandleFormRedirect is FormSG's post-submit redirect target.
//
// HTTP: GET /api/formsg-redirect?submissionId=...&success=true
func (h *RegistrationHandler) HandleFormRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	success := strings.EqualFold(q.Get("success"), "true")
	target := h.webhooks.RedirectAfterForm(q.Get("submissionId"), success)

	h.logger.Info("form redirect",
		slog.String("submission_id", q.Get("submissionId")),
		slog.Bool("success", success),
	)
	http.Redirect(w, r, target, http.StatusFound)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
