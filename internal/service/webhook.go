package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/formsg"
	"github.com/sakif/stampcard/internal/ident"
	"github.com/sakif/stampcard/internal/metrics"
	"github.com/sakif/stampcard/internal/model"
	"github.com/sakif/stampcard/internal/repository"
)

// SubmissionSourceRelay tags submission ids relayed by the middleman service.
const SubmissionSourceRelay = "middleman-api"

// WebhookResult is returned for an accepted delivery.
type WebhookResult struct {
	User        *model.User
	RedirectURL string
	Submission  *formsg.Submission
}

// WebhookService implements FormSG ingestion. Every accepted delivery
// creates a new registrant; there is no dedup by email.
type WebhookService struct {
	store     repository.Store
	processor *formsg.Processor
	baseURL   string
	logger    *slog.Logger
	metrics   metrics.Recorder
	now       Clock
}

func NewWebhookService(store repository.Store, processor *formsg.Processor, baseURL string, logger *slog.Logger, rec metrics.Recorder) *WebhookService {
	return &WebhookService{
		store:     store,
		processor: processor,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
		metrics:   rec,
		now:       defaultClock,
	}
}

// Receive verifies, normalizes and stores one delivery. The signature is the
// only hard gate: a payload that cannot be parsed still registers someone.
func (s *WebhookService) Receive(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if err := s.processor.Verify(body, signature); err != nil {
		s.logger.Warn("webhook signature rejected", errAttr(err))
		return nil, apperror.Unauthenticated("invalid webhook signature")
	}

	sub := s.processor.Process(body)
	for _, problem := range sub.Problems {
		s.logger.Warn("webhook payload problem",
			slog.String("submission_id", sub.SubmissionID),
			errAttr(problem),
		)
	}
	if sub.Degraded {
		s.logger.Warn("webhook registrant incomplete, placeholder applied",
			slog.String("submission_id", sub.SubmissionID),
			slog.String("source", string(sub.Attempt.Source)),
		)
	}
	s.metrics.RecordWebhookParse(string(sub.Attempt.Source), sub.Decrypted, sub.Degraded)

	now := s.now()
	user := &model.User{
		ID:           ident.New(),
		Email:        sub.Registrant.Email,
		Name:         sub.Registrant.Name,
		Source:       model.SourceFormSG,
		FormID:       sub.FormID,
		SubmissionID: sub.SubmissionID,
		FormData:     sub.Raw,
		CreatedAt:    now,
		LastActive:   now,
	}
	if len(sub.Registrant.Additional) > 0 {
		user.AdditionalData = sub.Registrant.Additional
	}
	card := model.NewStampCard(user.ID, now)

	if err := s.store.CreateRegistrant(ctx, user, card); err != nil {
		return nil, storageError(s.metrics, "creating registrant", err)
	}

	s.logger.Info("webhook registrant created",
		slog.String("id", user.ID),
		slog.String("form_id", sub.FormID),
		slog.String("submission_id", sub.SubmissionID),
		slog.String("source", string(sub.Attempt.Source)),
	)
	s.metrics.RecordRegistration(model.SourceFormSG, false)

	return &WebhookResult{
		User:        user,
		RedirectURL: s.StampPageURL(user.ID),
		Submission:  sub,
	}, nil
}

// StampPageURL is where a registrant views their card.
func (s *WebhookService) StampPageURL(id string) string {
	return s.baseURL + "/stamps?id=" + url.QueryEscape(id)
}

// RedirectAfterForm is the browser redirect FormSG performs once a form is
// submitted. A failed submission goes back to the landing page.
func (s *WebhookService) RedirectAfterForm(submissionID string, success bool) string {
	if !success || strings.TrimSpace(submissionID) == "" {
		return s.baseURL + "/?error=form-submission-failed"
	}
	q := url.Values{}
	q.Set("submissionId", strings.TrimSpace(submissionID))
	q.Set("success", "true")
	return s.baseURL + "/stamps?" + q.Encode()
}

// RecordSubmission stores a submission id relayed from outside FormSG's
// webhook, optionally linked to a registrant.
func (s *WebhookService) RecordSubmission(ctx context.Context, submissionID, userID, email string) (*model.Submission, error) {
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return nil, apperror.ValidationFailed("submissionId", "Missing submission ID")
	}

	sub := &model.Submission{
		SubmissionID: submissionID,
		UserID:       strings.TrimSpace(userID),
		Email:        strings.TrimSpace(email),
		Source:       SubmissionSourceRelay,
		ReceivedAt:   s.now(),
	}

	if err := s.store.SaveSubmission(ctx, sub); err != nil {
		return nil, storageError(s.metrics, "saving submission", err)
	}

	s.logger.Info("submission recorded",
		slog.String("submission_id", submissionID),
		slog.String("user_id", sub.UserID),
	)
	return sub, nil
}
