// Package repository declares the storage contract. Two backends implement
// it: repository/firestore (production) and repository/sqlite (local
// development and tests).
//
// Errors: a missing record comes back as apperror.NotFound, a nickname
// already claimed by someone else as apperror.Conflict, and a booth slot that
// was already filled as apperror.AlreadyMarked. Anything else is a backend
// failure that the service layer reports as a storage error.
package repository

import (
	"context"
	"time"

	"github.com/sakif/stampcard/internal/model"
)

type UserRepository interface {
	// CreateRegistrant stores a User and its StampCard as one atomic write.
	CreateRegistrant(ctx context.Context, user *model.User, card *model.StampCard) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	// FindUserByNickname is an exact, case-sensitive match.
	FindUserByNickname(ctx context.Context, nickname string) (*model.User, error)
	TouchUser(ctx context.Context, id string, at time.Time) error
}

type StampRepository interface {
	GetStampCard(ctx context.Context, userID string) (*model.StampCard, error)
	// MarkBooth fills one slot and touches the user's lastActive atomically.
	// Only the named slot is written, so marks on different booths for the
	// same user never overwrite each other. If the slot is already filled the
	// card is returned unchanged together with apperror.AlreadyMarked.
	MarkBooth(ctx context.Context, userID, boothID string, at time.Time) (*model.StampCard, error)
}

type SubmissionRepository interface {
	SaveSubmission(ctx context.Context, sub *model.Submission) error
}

type AdminRepository interface {
	Stats(ctx context.Context, recent int) (*model.Stats, error)
	// CheckStore writes, reads and deletes a disposable document.
	CheckStore(ctx context.Context) (*model.StoreCheck, error)
}

// Store is everything the application needs from a backend.
type Store interface {
	UserRepository
	StampRepository
	SubmissionRepository
	AdminRepository
	Close() error
}
