package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/repositories"
)

// DashboardRecentLimit is how many recent collections and batches the summary lists.
const DashboardRecentLimit = 5

// DashboardService reports register-wide activity.
type DashboardService interface {
	Summary(ctx context.Context) (*models.DashboardSummary, error)
}

type dashboardService struct {
	tx         Transactor
	collectors repositories.CollectorRepository
	events     repositories.CollectionEventRepository
	batches    repositories.BatchRepository
	logger     *zap.Logger
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(
	tx Transactor,
	collectors repositories.CollectorRepository,
	events repositories.CollectionEventRepository,
	batches repositories.BatchRepository,
	logger *zap.Logger,
) DashboardService {
	return &dashboardService{
		tx:         tx,
		collectors: collectors,
		events:     events,
		batches:    batches,
		logger:     logger.Named("dashboard-service"),
	}
}

var _ DashboardService = (*dashboardService)(nil)

func (s *dashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{}

	err := s.tx.InSnapshot(ctx, func(ctx context.Context) error {
		var err error
		if summary.TotalCollections, err = s.events.Count(ctx); err != nil {
			return err
		}
		if summary.ActiveBatches, err = s.batches.CountByStatus(ctx, models.TestableStatuses...); err != nil {
			return err
		}
		if summary.CompletedBatches, err = s.batches.CountByStatus(ctx, models.BatchStatusCompleted); err != nil {
			return err
		}
		if summary.TotalCollectors, err = s.collectors.Count(ctx); err != nil {
			return err
		}
		if summary.RecentCollections, err = s.events.List(ctx, DashboardRecentLimit); err != nil {
			return err
		}
		summary.RecentBatches, err = s.batches.List(ctx, DashboardRecentLimit)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to build dashboard summary", zap.Error(err))
		return nil, err
	}
	return summary, nil
}
