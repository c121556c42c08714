package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/model"
)

func (s *Store) GetStampCard(ctx context.Context, userID string) (*model.StampCard, error) {
	snap, err := s.stamps().Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("stamp card", userID)
		}
		return nil, fmt.Errorf("firestore: getting stamp card %s: %w", userID, err)
	}
	return decodeCard(snap)
}

// MarkBooth reads the card and writes it back with the user's lastActive in
// one transaction. The function may run more than once on contention, so
// everything it produces is reset at the top.
func (s *Store) MarkBooth(ctx context.Context, userID, boothID string, at time.Time) (*model.StampCard, error) {
	var (
		card    *model.StampCard
		domErr  error
		cardRef = s.stamps().Doc(userID)
		userRef = s.users().Doc(userID)
	)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		card, domErr = nil, nil

		snap, err := tx.Get(cardRef)
		if err != nil {
			if isNotFound(err) {
				domErr = apperror.NotFound("stamp card", userID)
				return domErr
			}
			return err
		}
		if card, err = decodeCard(snap); err != nil {
			return err
		}

		if err := card.Mark(boothID, at); err != nil {
			domErr = err
			return err
		}

		if err := tx.Update(cardRef, []firestore.Update{
			{Path: "stamps", Value: card.Stamps},
			{Path: "lastUpdated", Value: at},
		}); err != nil {
			return err
		}
		return tx.Update(userRef, []firestore.Update{{Path: "lastActive", Value: at}})
	})

	if domErr != nil {
		if errors.Is(domErr, apperror.ErrConflict) {
			return card, domErr
		}
		return nil, domErr
	}
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, fmt.Errorf("firestore: marking %s for %s: %w", boothID, userID, err)
	}
	return card, nil
}

func decodeCard(snap *firestore.DocumentSnapshot) (*model.StampCard, error) {
	var card model.StampCard
	if err := snap.DataTo(&card); err != nil {
		return nil, fmt.Errorf("firestore: decoding stamp card %s: %w", snap.Ref.ID, err)
	}
	if card.UserID == "" {
		card.UserID = snap.Ref.ID
	}
	return &card, nil
}
