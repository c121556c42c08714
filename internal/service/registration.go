package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/ident"
	"github.com/sakif/stampcard/internal/metrics"
	"github.com/sakif/stampcard/internal/model"
	"github.com/sakif/stampcard/internal/repository"
)

// Nickname length bounds, counted in characters after trimming.
const (
	MinNicknameLength = 2
	MaxNicknameLength = 20
)

// RegistrationResult is returned by both registration flows.
type RegistrationResult struct {
	User            *model.User
	Stamps          []model.Slot
	IsReturningUser bool
}

// RegistrationService implements the nickname flow.
type RegistrationService struct {
	store   repository.Store
	logger  *slog.Logger
	metrics metrics.Recorder
	now     Clock
}

func NewRegistrationService(store repository.Store, logger *slog.Logger, rec metrics.Recorder) *RegistrationService {
	return &RegistrationService{
		store:   store,
		logger:  logger,
		metrics: rec,
		now:     defaultClock,
	}
}

// ValidateNickname trims nickname and checks its length.
func ValidateNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", apperror.ValidationFailed("nickname", "Nickname is required")
	}
	if n := utf8.RuneCountInString(nickname); n < MinNicknameLength || n > MaxNicknameLength {
		return "", apperror.ValidationFailed("nickname", "Nickname must be 2-20 characters")
	}
	return nickname, nil
}

// Register returns the registrant owning nickname, creating one with an
// empty card if none exists. Lookup is exact and case-sensitive.
func (s *RegistrationService) Register(ctx context.Context, nickname string) (*RegistrationResult, error) {
	nickname, err := ValidateNickname(nickname)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindUserByNickname(ctx, nickname)
	switch {
	case err == nil:
		return s.returning(ctx, existing)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, storageError(s.metrics, "finding nickname", err)
	}

	now := s.now()
	user := &model.User{
		ID:         ident.New(),
		Nickname:   nickname,
		Source:     model.SourceNickname,
		CreatedAt:  now,
		LastActive: now,
	}
	card := model.NewStampCard(user.ID, now)

	if err := s.store.CreateRegistrant(ctx, user, card); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, storageError(s.metrics, "creating registrant", err)
		}
		// Someone registered the same nickname between our lookup and
		// create; hand back theirs.
		s.logger.Info("nickname claimed concurrently", slog.String("nickname", nickname))
		existing, err := s.store.FindUserByNickname(ctx, nickname)
		if err != nil {
			return nil, storageError(s.metrics, "finding nickname", err)
		}
		return s.returning(ctx, existing)
	}

	s.logger.Info("registrant created",
		slog.String("id", user.ID),
		slog.String("nickname", nickname),
	)
	s.metrics.RecordRegistration(model.SourceNickname, false)

	return &RegistrationResult{User: user, Stamps: card.Stamps}, nil
}

func (s *RegistrationService) returning(ctx context.Context, user *model.User) (*RegistrationResult, error) {
	card, err := s.store.GetStampCard(ctx, user.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("stamp card missing for existing user", slog.String("id", user.ID))
		}
		return nil, storageError(s.metrics, "reading stamp card", err)
	}

	now := s.now()
	if err := s.store.TouchUser(ctx, user.ID, now); err != nil {
		return nil, storageError(s.metrics, "touching user", err)
	}
	user.LastActive = now

	s.logger.Info("returning registrant", slog.String("id", user.ID))
	s.metrics.RecordRegistration(model.SourceNickname, true)

	return &RegistrationResult{User: user, Stamps: card.Stamps, IsReturningUser: true}, nil
}
