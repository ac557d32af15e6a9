package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/repositories"
)

// CollectorInput identifies a collector and carries the details used when
// the collector is seen for the first time.
type CollectorInput struct {
	CollectorID   string `json:"collector_id" validate:"notblank,max=50"`
	Name          string `json:"collector_name" validate:"notblank,max=200"`
	Phone         string `json:"phone" validate:"max=15"`
	Village       string `json:"village" validate:"max=100"`
	State         string `json:"state" validate:"max=50"`
	LicenseNumber string `json:"license_number" validate:"max=100"`
}

// RegistryService provides access to collectors and herb species.
type RegistryService interface {
	// UpsertCollector registers the collector on first use. For a known
	// collector only a non-empty phone number is applied.
	UpsertCollector(ctx context.Context, input CollectorInput) (*models.Collector, error)
	GetCollector(ctx context.Context, collectorID string) (*models.Collector, error)
	ListCollectors(ctx context.Context) ([]*models.Collector, error)

	// ResolveSpecies looks up a species by key. An unknown key is a validation
	// failure of the caller's input, not a missing resource.
	ResolveSpecies(ctx context.Context, name string) (*models.HerbSpecies, error)
	ListSpecies(ctx context.Context) ([]*models.HerbSpecies, error)
}

type registryService struct {
	collectors repositories.CollectorRepository
	species    repositories.SpeciesRepository
	logger     *zap.Logger
}

// NewRegistryService creates a new RegistryService.
func NewRegistryService(
	collectors repositories.CollectorRepository,
	species repositories.SpeciesRepository,
	logger *zap.Logger,
) RegistryService {
	return &registryService{
		collectors: collectors,
		species:    species,
		logger:     logger.Named("registry-service"),
	}
}

var _ RegistryService = (*registryService)(nil)

func (s *registryService) UpsertCollector(ctx context.Context, input CollectorInput) (*models.Collector, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	collector, err := s.collectors.Upsert(ctx, &models.Collector{
		CollectorID:   strings.TrimSpace(input.CollectorID),
		Name:          strings.TrimSpace(input.Name),
		Phone:         strings.TrimSpace(input.Phone),
		Village:       strings.TrimSpace(input.Village),
		State:         strings.TrimSpace(input.State),
		LicenseNumber: strings.TrimSpace(input.LicenseNumber),
	})
	if err != nil {
		s.logger.Error("Failed to upsert collector",
			zap.String("collector_id", input.CollectorID),
			zap.Error(err))
		return nil, err
	}
	return collector, nil
}

func (s *registryService) GetCollector(ctx context.Context, collectorID string) (*models.Collector, error) {
	return s.collectors.GetByCollectorID(ctx, collectorID)
}

func (s *registryService) ListCollectors(ctx context.Context) ([]*models.Collector, error) {
	collectors, err := s.collectors.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list collectors", zap.Error(err))
		return nil, err
	}
	return collectors, nil
}

func (s *registryService) ResolveSpecies(ctx context.Context, name string) (*models.HerbSpecies, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, invalid("species is required")
	}

	species, err := s.species.GetByName(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, invalid("unknown species %q", name)
		}
		s.logger.Error("Failed to resolve species",
			zap.String("species", name),
			zap.Error(err))
		return nil, err
	}
	return species, nil
}

func (s *registryService) ListSpecies(ctx context.Context) ([]*models.HerbSpecies, error) {
	species, err := s.species.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list species", zap.Error(err))
		return nil, err
	}
	return species, nil
}
