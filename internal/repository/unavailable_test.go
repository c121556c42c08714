package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/stampcard/internal/apperror"
)

func TestUnavailable(t *testing.T) {
	cause := errors.New("service account JSON is empty")
	store := &Unavailable{Cause: cause}
	ctx := context.Background()

	_, err := store.GetUser(ctx, "x")
	assert.ErrorIs(t, err, apperror.ErrConfiguration)
	assert.ErrorIs(t, err, cause)

	_, err = store.MarkBooth(ctx, "x", "booth1", time.Now())
	assert.ErrorIs(t, err, apperror.ErrConfiguration)

	assert.ErrorIs(t, store.CreateRegistrant(ctx, nil, nil), apperror.ErrConfiguration)
	assert.NoError(t, store.Close())
}
