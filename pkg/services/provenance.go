package services

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/repositories"
)

// ProvenanceService assembles the consumer-facing record of a batch.
type ProvenanceService interface {
	// AssembleProvenance reads the batch, its collection events, processing
	// timeline and quality tests from one consistent snapshot.
	AssembleProvenance(ctx context.Context, batchID string) (*models.Provenance, error)
}

type provenanceService struct {
	tx      Transactor
	batches repositories.BatchRepository
	events  repositories.CollectionEventRepository
	steps   repositories.ProcessingStepRepository
	tests   repositories.QualityTestRepository
	logger  *zap.Logger
}

// NewProvenanceService creates a new ProvenanceService.
func NewProvenanceService(
	tx Transactor,
	batches repositories.BatchRepository,
	events repositories.CollectionEventRepository,
	steps repositories.ProcessingStepRepository,
	tests repositories.QualityTestRepository,
	logger *zap.Logger,
) ProvenanceService {
	return &provenanceService{
		tx:      tx,
		batches: batches,
		events:  events,
		steps:   steps,
		tests:   tests,
		logger:  logger.Named("provenance-service"),
	}
}

var _ ProvenanceService = (*provenanceService)(nil)

func (s *provenanceService) AssembleProvenance(ctx context.Context, batchID string) (*models.Provenance, error) {
	var (
		batch  *models.ProcessingBatch
		events []*models.CollectionEvent
		steps  []*models.ProcessingStep
		tests  []*models.QualityTest
	)

	err := s.tx.InSnapshot(ctx, func(ctx context.Context) error {
		var err error
		if batch, err = s.batches.GetByBatchID(ctx, batchID); err != nil {
			return err
		}
		if events, err = s.events.ListByBatch(ctx, batchID); err != nil {
			return err
		}
		if steps, err = s.steps.ListByBatch(ctx, batchID); err != nil {
			return err
		}
		tests, err = s.tests.ListByBatch(ctx, batchID)
		return err
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("Failed to assemble provenance",
				zap.String("batch_id", batchID),
				zap.Error(err))
		}
		return nil, err
	}

	return buildProvenance(batch, events, steps, tests), nil
}

func buildProvenance(
	batch *models.ProcessingBatch,
	events []*models.CollectionEvent,
	steps []*models.ProcessingStep,
	tests []*models.QualityTest,
) *models.Provenance {
	p := &models.Provenance{
		BatchID:            batch.BatchID,
		Status:             batch.Status,
		StatusLabel:        batch.Status.Label(),
		Facility:           batch.ProcessingFacility,
		StartDate:          batch.StartDate,
		EndDate:            batch.EndDate,
		BatchSizeKg:        batch.BatchSizeKg,
		LocatorURL:         batch.LocatorURL,
		CollectionEvents:   make([]models.MapPoint, 0, len(events)),
		ProcessingTimeline: make([]models.TimelineEntry, 0, len(steps)),
		QualityTests:       make([]models.QualityTestSummary, 0, len(tests)),
	}

	for _, e := range events {
		p.CollectionEvents = append(p.CollectionEvents, e.ToMapPoint())
	}

	for _, st := range steps {
		p.ProcessingTimeline = append(p.ProcessingTimeline, models.TimelineEntry{
			Step:        st.StepType.Label(),
			StepType:    st.StepType,
			Timestamp:   st.Timestamp,
			Operator:    st.OperatorName,
			Temperature: st.Temperature,
			Humidity:    st.Humidity,
		})
	}

	for _, t := range tests {
		p.QualityTests = append(p.QualityTests, models.QualityTestSummary{
			Lab:         t.LabName,
			Date:        t.TestDate.Format(models.HarvestDateLayout),
			Status:      t.TestStatus,
			StatusLabel: t.TestStatus.Label(),
			Moisture:    t.MoistureContent,
			Pesticide:   t.PesticideResidue.Label(),
			Certificate: t.CertificateNumber,
		})
	}

	p.Certification = summarizeCertification(batch, events, tests)
	return p
}

func summarizeCertification(
	batch *models.ProcessingBatch,
	events []*models.CollectionEvent,
	tests []*models.QualityTest,
) models.CertificationSummary {
	summary := models.CertificationSummary{
		Certified: batch.Status == models.BatchStatusCompleted,
		Organic:   len(events) > 0,
		FairTrade: len(events) > 0,
		Species:   []string{},
	}

	if n := len(tests); n > 0 {
		latest := tests[n-1]
		summary.LatestTestStatus = latest.TestStatus
		summary.LatestCertificate = latest.CertificateNumber
	}

	seen := make(map[string]bool)
	for _, e := range events {
		summary.TotalCollectedKg += e.QuantityKg
		summary.Organic = summary.Organic && e.OrganicCertified
		summary.FairTrade = summary.FairTrade && e.FairTradeCertified
		if !seen[e.SpeciesDisplay] {
			seen[e.SpeciesDisplay] = true
			summary.Species = append(summary.Species, e.SpeciesDisplay)
		}
	}
	sort.Strings(summary.Species)

	return summary
}
