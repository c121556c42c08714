// Package service contains the business rules of the stamp card.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)       → parses requests, writes JSON
//	Service (this)       → validates input, enforces card rules, orchestrates
//	Repository (storage) → Firestore or SQLite
//
// Services accept primitives and return domain errors from apperror. They
// never see HTTP types, so the same rules back the API and the CLI.
//
// STORAGE ERRORS:
// Repositories return apperror values for expected outcomes (not found,
// nickname taken, slot already filled) and plain wrapped errors for backend
// failures. storageError turns the latter into apperror.StorageFailed so the
// handler can answer with a generic 500 while the cause is still logged.
package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/metrics"
)

// Clock returns the current time. Timestamps are UTC and truncated to the
// microsecond, the precision Firestore keeps, so what a handler returns is
// exactly what a later read returns.
type Clock func() time.Time

func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// storageError passes domain errors through and wraps everything else.
func storageError(rec metrics.Recorder, op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	rec.RecordStorageError(op)
	return apperror.StorageFailed(op, err)
}

func errAttr(err error) slog.Attr {
	return slog.String("error", err.Error())
}
