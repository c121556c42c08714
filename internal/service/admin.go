package service

import (
	"context"
	"log/slog"

	"github.com/sakif/stampcard/internal/metrics"
	"github.com/sakif/stampcard/internal/model"
	"github.com/sakif/stampcard/internal/repository"
)

// RecentUsers is how many registrants the dashboard lists.
const RecentUsers = 10

// AdminService backs the dashboard and the store health check.
type AdminService struct {
	store   repository.Store
	logger  *slog.Logger
	metrics metrics.Recorder
}

func NewAdminService(store repository.Store, logger *slog.Logger, rec metrics.Recorder) *AdminService {
	return &AdminService{store: store, logger: logger, metrics: rec}
}

func (s *AdminService) Stats(ctx context.Context) (*model.Stats, error) {
	stats, err := s.store.Stats(ctx, RecentUsers)
	if err != nil {
		return nil, storageError(s.metrics, "reading stats", err)
	}
	return stats, nil
}

// CheckStore round-trips a probe document through the backend.
func (s *AdminService) CheckStore(ctx context.Context) (*model.StoreCheck, error) {
	check, err := s.store.CheckStore(ctx)
	if err != nil {
		return nil, storageError(s.metrics, "checking store", err)
	}
	s.logger.Info("store check passed",
		slog.String("backend", check.Backend),
		slog.String("project", check.Project),
	)
	return check, nil
}
