package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/observability"
	"github.com/ekaya-inc/herbtrace/pkg/repositories"
)

// RecordCollectionInput is one collector submission. The embedded collector
// fields register the collector if the collector_id is new.
type RecordCollectionInput struct {
	CollectorInput

	Species            string   `json:"species" validate:"notblank"`
	HarvestDate        string   `json:"harvest_date" validate:"required,datetime=2006-01-02"`
	Latitude           *float64 `json:"gps_latitude" validate:"required,gte=-90,lte=90"`
	Longitude          *float64 `json:"gps_longitude" validate:"required,gte=-180,lte=180"`
	QuantityKg         float64  `json:"quantity_kg" validate:"gt=0"`
	QualityGrade       string   `json:"quality_grade" validate:"oneof=A B C"`
	WeatherConditions  string   `json:"weather_conditions" validate:"max=100"`
	SoilPH             *float64 `json:"soil_ph" validate:"omitempty,gte=0,lte=14"`
	OrganicCertified   bool     `json:"organic_certified"`
	FairTradeCertified bool     `json:"fair_trade_certified"`
}

// CollectionService records and reads the collection ledger.
type CollectionService interface {
	// RecordCollection validates the submission, upserts the collector and
	// appends a new event with a fresh identifier, all in one transaction.
	RecordCollection(ctx context.Context, input RecordCollectionInput) (*models.CollectionEvent, error)
	GetCollection(ctx context.Context, eventID string) (*models.CollectionEvent, error)
	// ListCollections returns events newest first; limit <= 0 returns all.
	ListCollections(ctx context.Context, limit int) ([]*models.CollectionEvent, error)
	// MapData projects every event onto a map point.
	MapData(ctx context.Context) ([]models.MapPoint, error)
}

type collectionService struct {
	tx       Transactor
	registry RegistryService
	events   repositories.CollectionEventRepository
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewCollectionService creates a new CollectionService.
func NewCollectionService(
	tx Transactor,
	registry RegistryService,
	events repositories.CollectionEventRepository,
	metrics *observability.Metrics,
	logger *zap.Logger,
) CollectionService {
	return &collectionService{
		tx:       tx,
		registry: registry,
		events:   events,
		metrics:  metrics,
		logger:   logger.Named("collection-service"),
	}
}

var _ CollectionService = (*collectionService)(nil)

func (s *collectionService) RecordCollection(ctx context.Context, input RecordCollectionInput) (*models.CollectionEvent, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	harvestDate, err := time.Parse(models.HarvestDateLayout, input.HarvestDate)
	if err != nil {
		return nil, invalid("harvest_date: %v", err)
	}

	var event *models.CollectionEvent
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		species, err := s.registry.ResolveSpecies(ctx, input.Species)
		if err != nil {
			return err
		}

		collector, err := s.registry.UpsertCollector(ctx, input.CollectorInput)
		if err != nil {
			return err
		}

		e := &models.CollectionEvent{
			CollectorID:        collector.ID,
			SpeciesID:          species.ID,
			HarvestDate:        harvestDate,
			Latitude:           *input.Latitude,
			Longitude:          *input.Longitude,
			QuantityKg:         input.QuantityKg,
			QualityGrade:       models.QualityGrade(input.QualityGrade),
			WeatherConditions:  strings.TrimSpace(input.WeatherConditions),
			SoilPH:             input.SoilPH,
			OrganicCertified:   input.OrganicCertified,
			FairTradeCertified: input.FairTradeCertified,
		}
		if err := s.events.Create(ctx, e); err != nil {
			return err
		}

		e.CollectorRef = collector.CollectorID
		e.CollectorName = collector.Name
		e.SpeciesName = species.Name
		e.SpeciesDisplay = species.DisplayName()
		event = e
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrValidation) {
			s.logger.Error("Failed to record collection",
				zap.String("collector_id", input.CollectorID),
				zap.String("species", input.Species),
				zap.Error(err))
		}
		return nil, err
	}

	s.metrics.RecordCollection()
	s.logger.Info("Recorded collection event",
		zap.String("event_id", event.ID.String()),
		zap.String("collector_id", event.CollectorRef),
		zap.String("species", event.SpeciesName),
		zap.Float64("quantity_kg", event.QuantityKg))
	return event, nil
}

func (s *collectionService) GetCollection(ctx context.Context, eventID string) (*models.CollectionEvent, error) {
	id, err := uuid.Parse(strings.TrimSpace(eventID))
	if err != nil {
		return nil, fmt.Errorf("%w: collection event %q", apperrors.ErrNotFound, eventID)
	}
	return s.events.GetByID(ctx, id)
}

func (s *collectionService) ListCollections(ctx context.Context, limit int) ([]*models.CollectionEvent, error) {
	events, err := s.events.List(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list collections", zap.Error(err))
		return nil, err
	}
	return events, nil
}

func (s *collectionService) MapData(ctx context.Context) ([]models.MapPoint, error) {
	events, err := s.events.List(ctx, 0)
	if err != nil {
		s.logger.Error("Failed to load map data", zap.Error(err))
		return nil, err
	}

	points := make([]models.MapPoint, 0, len(events))
	for _, e := range events {
		points = append(points, e.ToMapPoint())
	}
	return points, nil
}
