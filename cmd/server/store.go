package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/config"
	"github.com/sakif/stampcard/internal/repository"
	firestoreRepo "github.com/sakif/stampcard/internal/repository/firestore"
	sqliteRepo "github.com/sakif/stampcard/internal/repository/sqlite"
)

// openStore builds the configured backend. Bad Firestore credentials do not
// stop the server: it boots with repository.Unavailable so every request
// reports a configuration error instead of the process crash-looping.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		if cfg.SQLitePath != ":memory:" {
			dir := filepath.Dir(cfg.SQLitePath)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite store", slog.String("path", cfg.SQLitePath))
		return db, nil

	case config.BackendFirestore:
		fs, err := firestoreRepo.New(ctx, firestoreRepo.Options{
			ProjectID:          cfg.FirebaseProjectID,
			ServiceAccountJSON: cfg.FirebaseServiceAccount,
		})
		if errors.Is(err, apperror.ErrConfiguration) {
			logger.Error("firestore is not configured, storage requests will fail",
				slog.String("error", apperror.Detail(err)),
			)
			return &repository.Unavailable{Cause: err}, nil
		}
		if err != nil {
			return nil, err
		}
		logger.Info("using firestore store", slog.String("project", cfg.FirebaseProjectID))
		return fs, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
