package repository

import (
	"context"
	"time"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/model"
)

var _ Store = (*Unavailable)(nil)

// Unavailable stands in for a backend that could not be constructed at
// startup, typically because the service-account credentials are missing or
// malformed. The server still boots and every storage call answers with a
// configuration error so operators can tell setup problems from outages.
type Unavailable struct {
	Cause error
}

func (u *Unavailable) err() error {
	return apperror.Misconfigured(u.Cause)
}

func (u *Unavailable) CreateRegistrant(context.Context, *model.User, *model.StampCard) error {
	return u.err()
}

func (u *Unavailable) GetUser(context.Context, string) (*model.User, error) {
	return nil, u.err()
}

func (u *Unavailable) FindUserByNickname(context.Context, string) (*model.User, error) {
	return nil, u.err()
}

func (u *Unavailable) TouchUser(context.Context, string, time.Time) error {
	return u.err()
}

func (u *Unavailable) GetStampCard(context.Context, string) (*model.StampCard, error) {
	return nil, u.err()
}

func (u *Unavailable) MarkBooth(context.Context, string, string, time.Time) (*model.StampCard, error) {
	return nil, u.err()
}

func (u *Unavailable) SaveSubmission(context.Context, *model.Submission) error {
	return u.err()
}

func (u *Unavailable) Stats(context.Context, int) (*model.Stats, error) {
	return nil, u.err()
}

func (u *Unavailable) CheckStore(context.Context) (*model.StoreCheck, error) {
	return nil, u.err()
}

func (u *Unavailable) Close() error { return nil }
