package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/ident"
	"github.com/sakif/stampcard/internal/metrics"
	"github.com/sakif/stampcard/internal/model"
	"github.com/sakif/stampcard/internal/repository"
)

// boothIDPattern is the shape check applied before the catalog lookup.
var boothIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// StampCardView is what the stamp page renders.
type StampCardView struct {
	Stamps []model.Slot
	User   model.UserInfo
}

// MarkResult is returned by Mark. On a repeat scan it is returned together
// with an apperror.AlreadyMarked error and holds the unchanged card.
type MarkResult struct {
	Stamps  []model.Slot
	Booth   model.Booth
	Message string
}

// StampService reads and marks stamp cards.
type StampService struct {
	store   repository.Store
	logger  *slog.Logger
	metrics metrics.Recorder
	now     Clock
}

func NewStampService(store repository.Store, logger *slog.Logger, rec metrics.Recorder) *StampService {
	return &StampService{
		store:   store,
		logger:  logger,
		metrics: rec,
		now:     defaultClock,
	}
}

func validateID(id string) (string, error) {
	id = ident.Normalize(id)
	if id == "" {
		return "", apperror.ValidationFailed("id", "Stamp card id is required")
	}
	if !ident.Valid(id) {
		return "", apperror.ValidationFailed("id", "Stamp card id is not a valid identifier")
	}
	return id, nil
}

// Get returns the registrant's card and refreshes their lastActive.
func (s *StampService) Get(ctx context.Context, id string) (*StampCardView, error) {
	id, err := validateID(id)
	if err != nil {
		return nil, err
	}

	user, card, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.store.TouchUser(ctx, id, now); err != nil {
		return nil, storageError(s.metrics, "touching user", err)
	}
	user.LastActive = now

	return &StampCardView{Stamps: card.Stamps, User: user.Info()}, nil
}

// Mark fills the slot for boothID. Input is checked in order: id, booth
// shape, registrant, card, booth catalog. Only then is the store written.
func (s *StampService) Mark(ctx context.Context, id, boothID string) (*MarkResult, error) {
	id, err := validateID(id)
	if err != nil {
		return nil, err
	}
	boothID = strings.TrimSpace(boothID)
	if boothID == "" {
		return nil, apperror.ValidationFailed("booth", "Booth is required")
	}
	if !boothIDPattern.MatchString(boothID) {
		return nil, apperror.ValidationFailed("booth", "Booth may only contain letters, digits, '-' and '_'")
	}

	if _, _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	booth, ok := model.BoothByID(boothID)
	if !ok {
		s.metrics.RecordStampMark(boothID, metrics.MarkRejected)
		return nil, apperror.InvalidBooth(boothID)
	}

	card, err := s.store.MarkBooth(ctx, id, boothID, s.now())
	switch {
	case errors.Is(err, apperror.ErrConflict) && card != nil:
		s.logger.Info("stamp already collected",
			slog.String("id", id),
			slog.String("booth", boothID),
		)
		s.metrics.RecordStampMark(boothID, metrics.MarkAlreadyMarked)
		return &MarkResult{
			Stamps:  card.Stamps,
			Booth:   booth,
			Message: fmt.Sprintf("%s already collected", booth.Name),
		}, err
	case err != nil:
		return nil, storageError(s.metrics, "marking booth", err)
	}

	s.logger.Info("stamp collected",
		slog.String("id", id),
		slog.String("booth", boothID),
		slog.Int("collected", card.Collected()),
	)
	s.metrics.RecordStampMark(boothID, metrics.MarkFilled)

	return &MarkResult{
		Stamps:  card.Stamps,
		Booth:   booth,
		Message: fmt.Sprintf("%s stamped", booth.Name),
	}, nil
}

// load reads a registrant and their card. A registrant without a card is an
// integrity fault and is logged as such.
func (s *StampService) load(ctx context.Context, id string) (*model.User, *model.StampCard, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, nil, storageError(s.metrics, "reading user", err)
	}
	card, err := s.store.GetStampCard(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("stamp card missing for existing user", slog.String("id", id))
		}
		return nil, nil, storageError(s.metrics, "reading stamp card", err)
	}
	if err := card.Validate(); err != nil {
		s.logger.Warn("stamp card failed validation", slog.String("id", id), errAttr(err))
	}
	return user, card, nil
}
