package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
	"github.com/ekaya-inc/herbtrace/pkg/audit"
	"github.com/ekaya-inc/herbtrace/pkg/jsonutil"
	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/observability"
	"github.com/ekaya-inc/herbtrace/pkg/repositories"
)

// RecordQualityTestInput is one lab submission for a batch.
type RecordQualityTestInput struct {
	TestDate          string                   `json:"test_date" validate:"omitempty,datetime=2006-01-02"` // defaults to today
	LabName           string                   `json:"lab_name" validate:"notblank,max=200"`
	LabLicense        string                   `json:"lab_license" validate:"max=100"`
	MoistureContent   float64                  `json:"moisture_content" validate:"gte=0,lte=100"`
	PesticideResidue  string                   `json:"pesticide_residue" validate:"oneof=none low high"`
	HeavyMetals       string                   `json:"heavy_metals" validate:"oneof=pass fail"`
	MicrobialCount    int                      `json:"microbial_count" validate:"gte=0"`
	DNAVerification   *bool                    `json:"dna_verification"` // defaults to true
	ActiveCompounds   jsonutil.FlexibleStrings `json:"active_compounds"`
	TestStatus        string                   `json:"test_status" validate:"omitempty,oneof=pending passed failed"`
	CertificateNumber string                   `json:"certificate_number" validate:"notblank,max=100"`
	Notes             string                   `json:"notes"`
}

// QualityTestResult is the recorded test and the batch as it stands afterwards.
// Transition is nil when the status did not change.
type QualityTestResult struct {
	Test       *models.QualityTest      `json:"test"`
	Batch      *models.ProcessingBatch  `json:"batch"`
	Transition *models.StatusTransition `json:"transition,omitempty"`
}

// QualityService records lab results and drives the batch status machine.
type QualityService interface {
	// RecordQualityTest stores the test and applies its status side effect in
	// one transaction. A certificate number already on file is ErrConflict.
	RecordQualityTest(ctx context.Context, batchID string, input RecordQualityTestInput) (*QualityTestResult, error)

	// MarkReadyForTesting moves a processing batch to quality_testing.
	MarkReadyForTesting(ctx context.Context, batchID string) (*models.ProcessingBatch, error)

	// EligibleForTesting returns batches a lab may still submit results for.
	EligibleForTesting(ctx context.Context) ([]*models.ProcessingBatch, error)

	ListTests(ctx context.Context, batchID string) ([]*models.QualityTest, error)
	StatusHistory(ctx context.Context, batchID string) ([]*models.StatusTransition, error)
}

type qualityService struct {
	tx          Transactor
	batches     repositories.BatchRepository
	tests       repositories.QualityTestRepository
	transitions repositories.StatusTransitionRepository
	policy      TransitionPolicy
	metrics     *observability.Metrics
	auditor     *audit.LedgerAuditor
	logger      *zap.Logger
	now         func() time.Time
}

// NewQualityService creates a new QualityService.
func NewQualityService(
	tx Transactor,
	batches repositories.BatchRepository,
	tests repositories.QualityTestRepository,
	transitions repositories.StatusTransitionRepository,
	policy TransitionPolicy,
	metrics *observability.Metrics,
	auditor *audit.LedgerAuditor,
	logger *zap.Logger,
) QualityService {
	if policy == nil {
		policy = RetestPolicy{}
	}
	return &qualityService{
		tx:          tx,
		batches:     batches,
		tests:       tests,
		transitions: transitions,
		policy:      policy,
		metrics:     metrics,
		auditor:     auditor,
		logger:      logger.Named("quality-service"),
		now:         time.Now,
	}
}

var _ QualityService = (*qualityService)(nil)

func (s *qualityService) RecordQualityTest(ctx context.Context, batchID string, input RecordQualityTestInput) (*QualityTestResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	testDate := s.now().UTC().Truncate(24 * time.Hour)
	if input.TestDate != "" {
		parsed, err := time.Parse(models.HarvestDateLayout, input.TestDate)
		if err != nil {
			return nil, invalid("test_date: %v", err)
		}
		testDate = parsed
	}

	test := &models.QualityTest{
		BatchID:           batchID,
		TestDate:          testDate,
		LabName:           strings.TrimSpace(input.LabName),
		LabLicense:        strings.TrimSpace(input.LabLicense),
		MoistureContent:   input.MoistureContent,
		PesticideResidue:  models.PesticideLevel(input.PesticideResidue),
		HeavyMetals:       models.HeavyMetalsVerdict(input.HeavyMetals),
		MicrobialCount:    input.MicrobialCount,
		DNAVerification:   true,
		ActiveCompounds:   input.ActiveCompounds,
		TestStatus:        models.TestStatus(input.TestStatus),
		CertificateNumber: strings.TrimSpace(input.CertificateNumber),
		Notes:             input.Notes,
	}
	if input.DNAVerification != nil {
		test.DNAVerification = *input.DNAVerification
	}
	if test.TestStatus == "" {
		test.TestStatus = models.TestStatusPending
	}
	if test.ActiveCompounds == nil {
		test.ActiveCompounds = map[string]string{}
	}

	result := &QualityTestResult{Test: test}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		// Lock the batch first so concurrent verdicts for it apply in order.
		batch, err := s.batches.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}

		exists, err := s.tests.CertificateExists(ctx, test.CertificateNumber)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: certificate %q already recorded", apperrors.ErrConflict, test.CertificateNumber)
		}

		if err := s.tests.Create(ctx, test); err != nil {
			return err
		}

		next, apply := s.policy.Next(batch.Status, test.TestStatus)
		if !apply {
			result.Batch = batch
			return nil
		}

		var endDate *time.Time
		if test.TestStatus == models.TestStatusPassed && next == models.BatchStatusCompleted {
			now := s.now()
			endDate = &now
		}
		if err := s.batches.SetStatus(ctx, batchID, next, endDate); err != nil {
			return err
		}

		if next != batch.Status {
			testID := test.ID
			transition := &models.StatusTransition{
				BatchID:       batchID,
				FromStatus:    batch.Status,
				ToStatus:      next,
				QualityTestID: &testID,
				Reason:        models.TransitionReasonQualityTest,
			}
			if err := s.transitions.Create(ctx, transition); err != nil {
				return err
			}
			result.Transition = transition
		}

		updated := *batch
		updated.Status = next
		if endDate != nil {
			updated.EndDate = endDate
		}
		result.Batch = &updated
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			s.auditor.LogCertificateConflict(batchID, test.CertificateNumber)
		}
		if !errors.Is(err, apperrors.ErrConflict) && !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("Failed to record quality test",
				zap.String("batch_id", batchID),
				zap.String("certificate_number", test.CertificateNumber),
				zap.Error(err))
		}
		return nil, err
	}

	s.metrics.RecordQualityTest(string(test.TestStatus))
	fields := []zap.Field{
		zap.String("batch_id", batchID),
		zap.String("certificate_number", test.CertificateNumber),
		zap.String("test_status", string(test.TestStatus)),
		zap.String("batch_status", string(result.Batch.Status)),
	}
	if t := result.Transition; t != nil {
		s.metrics.RecordStatusTransition(string(t.FromStatus), string(t.ToStatus))
		s.auditor.LogStatusTransition(t, test.CertificateNumber)
		fields = append(fields, zap.String("previous_status", string(t.FromStatus)))
	}
	s.logger.Info("Recorded quality test", fields...)
	return result, nil
}

func (s *qualityService) MarkReadyForTesting(ctx context.Context, batchID string) (*models.ProcessingBatch, error) {
	var (
		result     *models.ProcessingBatch
		transition *models.StatusTransition
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		batch, err := s.batches.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}

		switch batch.Status {
		case models.BatchStatusQualityTesting:
			result = batch
			return nil
		case models.BatchStatusProcessing:
		default:
			return invalid("batch %q is %s and cannot move to quality testing", batchID, batch.Status)
		}

		if err := s.batches.SetStatus(ctx, batchID, models.BatchStatusQualityTesting, nil); err != nil {
			return err
		}
		transition = &models.StatusTransition{
			BatchID:    batchID,
			FromStatus: batch.Status,
			ToStatus:   models.BatchStatusQualityTesting,
			Reason:     models.TransitionReasonOperator,
		}
		if err := s.transitions.Create(ctx, transition); err != nil {
			return err
		}

		updated := *batch
		updated.Status = models.BatchStatusQualityTesting
		result = &updated
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrValidation) && !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("Failed to mark batch ready for testing",
				zap.String("batch_id", batchID),
				zap.Error(err))
		}
		return nil, err
	}

	if transition != nil {
		s.metrics.RecordStatusTransition(string(transition.FromStatus), string(transition.ToStatus))
		s.auditor.LogStatusTransition(transition, "")
		s.logger.Info("Batch ready for testing", zap.String("batch_id", batchID))
	}
	return result, nil
}

func (s *qualityService) EligibleForTesting(ctx context.Context) ([]*models.ProcessingBatch, error) {
	batches, err := s.batches.List(ctx, 0, models.TestableStatuses...)
	if err != nil {
		s.logger.Error("Failed to list batches eligible for testing", zap.Error(err))
		return nil, err
	}
	return batches, nil
}

func (s *qualityService) ListTests(ctx context.Context, batchID string) ([]*models.QualityTest, error) {
	if _, err := s.batches.GetByBatchID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.tests.ListByBatch(ctx, batchID)
}

func (s *qualityService) StatusHistory(ctx context.Context, batchID string) ([]*models.StatusTransition, error) {
	if _, err := s.batches.GetByBatchID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.transitions.ListByBatch(ctx, batchID)
}
