package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/model"
	"github.com/sakif/stampcard/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type nicknameClaim struct {
	UserID    string    `firestore:"userId"`
	Nickname  string    `firestore:"nickname"`
	ClaimedAt time.Time `firestore:"claimedAt"`
}

// userDoc is a user as stored. Firestore rejects an array directly inside
// another array, which FormSG table answers produce, so the raw payload is
// written as JSON text. Documents written before that keep it as a map under
// formData and are still readable.
type userDoc struct {
	ID             string            `firestore:"id"`
	Nickname       string            `firestore:"nickname,omitempty"`
	Email          string            `firestore:"email,omitempty"`
	Name           string            `firestore:"name,omitempty"`
	Source         string            `firestore:"source"`
	FormID         string            `firestore:"formId,omitempty"`
	SubmissionID   string            `firestore:"submissionId,omitempty"`
	FormDataJSON   string            `firestore:"formDataJson,omitempty"`
	LegacyFormData map[string]any    `firestore:"formData,omitempty"`
	AdditionalData map[string]string `firestore:"additionalData,omitempty"`
	CreatedAt      time.Time         `firestore:"createdAt"`
	LastActive     time.Time         `firestore:"lastActive"`
}

func toUserDoc(u *model.User) (*userDoc, error) {
	doc := &userDoc{
		ID:             u.ID,
		Nickname:       u.Nickname,
		Email:          u.Email,
		Name:           u.Name,
		Source:         u.Source,
		FormID:         u.FormID,
		SubmissionID:   u.SubmissionID,
		AdditionalData: u.AdditionalData,
		CreatedAt:      u.CreatedAt,
		LastActive:     u.LastActive,
	}
	if len(u.FormData) > 0 {
		b, err := json.Marshal(u.FormData)
		if err != nil {
			return nil, fmt.Errorf("firestore: encoding form data: %w", err)
		}
		doc.FormDataJSON = string(b)
	}
	return doc, nil
}

func (d *userDoc) toModel() (*model.User, error) {
	u := &model.User{
		ID:             d.ID,
		Nickname:       d.Nickname,
		Email:          d.Email,
		Name:           d.Name,
		Source:         d.Source,
		FormID:         d.FormID,
		SubmissionID:   d.SubmissionID,
		FormData:       d.LegacyFormData,
		AdditionalData: d.AdditionalData,
		CreatedAt:      d.CreatedAt,
		LastActive:     d.LastActive,
	}
	if d.FormDataJSON != "" {
		if err := json.Unmarshal([]byte(d.FormDataJSON), &u.FormData); err != nil {
			return nil, fmt.Errorf("firestore: decoding form data of user %s: %w", d.ID, err)
		}
	}
	return u, nil
}

// CreateRegistrant creates the user, the card and (for the nickname flow) the
// nickname claim in one transaction. tx.Create fails if any document exists,
// so a nickname claimed concurrently surfaces as apperror.Conflict.
func (s *Store) CreateRegistrant(ctx context.Context, user *model.User, card *model.StampCard) error {
	doc, err := toUserDoc(user)
	if err != nil {
		return err
	}
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if user.Nickname != "" {
			claim := nicknameClaim{UserID: user.ID, Nickname: user.Nickname, ClaimedAt: user.CreatedAt}
			if err := tx.Create(s.client.Collection(nicknamesCollection).Doc(nicknameKey(user.Nickname)), claim); err != nil {
				return err
			}
		}
		if err := tx.Create(s.users().Doc(user.ID), doc); err != nil {
			return err
		}
		return tx.Create(s.stamps().Doc(card.UserID), card)
	})
	if err != nil {
		if isAlreadyExists(err) && user.Nickname != "" {
			return apperror.Conflict("nickname", user.Nickname)
		}
		return fmt.Errorf("firestore: creating registrant %s: %w", user.ID, err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	snap, err := s.users().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("firestore: getting user %s: %w", id, err)
	}
	return decodeUser(snap)
}

// FindUserByNickname follows the claim document. Users written before claims
// existed are found with an equality query instead.
func (s *Store) FindUserByNickname(ctx context.Context, nickname string) (*model.User, error) {
	snap, err := s.client.Collection(nicknamesCollection).Doc(nicknameKey(nickname)).Get(ctx)
	switch {
	case err == nil:
		var claim nicknameClaim
		if err := snap.DataTo(&claim); err != nil {
			return nil, fmt.Errorf("firestore: decoding nickname claim: %w", err)
		}
		return s.GetUser(ctx, claim.UserID)
	case !isNotFound(err):
		return nil, fmt.Errorf("firestore: reading nickname claim: %w", err)
	}

	iter := s.users().Where("nickname", "==", nickname).Limit(1).Documents(ctx)
	defer iter.Stop()
	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, apperror.NotFound("user with nickname", nickname)
	}
	if err != nil {
		return nil, fmt.Errorf("firestore: querying nickname: %w", err)
	}
	return decodeUser(doc)
}

func (s *Store) TouchUser(ctx context.Context, id string, at time.Time) error {
	_, err := s.users().Doc(id).Update(ctx, []firestore.Update{{Path: "lastActive", Value: at}})
	if err != nil {
		if isNotFound(err) {
			return apperror.NotFound("user", id)
		}
		return fmt.Errorf("firestore: touching user %s: %w", id, err)
	}
	return nil
}

func decodeUser(snap *firestore.DocumentSnapshot) (*model.User, error) {
	var d userDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("firestore: decoding user %s: %w", snap.Ref.ID, err)
	}
	if d.ID == "" {
		d.ID = snap.Ref.ID
	}
	return d.toModel()
}
