package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/repositories"
)

// AppendStepInput describes one facility operation. Temperature and humidity
// are accepted for any step type.
type AppendStepInput struct {
	StepType      string   `json:"step_type" validate:"oneof=cleaning drying grinding sieving packaging"`
	OperatorName  string   `json:"operator_name" validate:"notblank,max=100"`
	Temperature   *float64 `json:"temperature"`
	Humidity      *float64 `json:"humidity" validate:"omitempty,gte=0,lte=100"`
	DurationHours *float64 `json:"duration_hours" validate:"omitempty,gte=0"`
	EquipmentUsed string   `json:"equipment_used" validate:"max=200"`
	Notes         string   `json:"notes"`
}

// SubmitStepInput is a facility submission: the batch it belongs to, the
// collection events to attach if the batch is new, and the step itself.
type SubmitStepInput struct {
	GetOrCreateBatchInput
	AppendStepInput

	CollectionEvents []string `json:"collection_events"`
}

// SubmitStepResult reports what a facility submission did.
// Attach is nil when the batch already existed.
type SubmitStepResult struct {
	Batch   *models.ProcessingBatch `json:"batch"`
	Created bool                    `json:"created"`
	Attach  *models.AttachResult    `json:"attach,omitempty"`
	Step    *models.ProcessingStep  `json:"step"`
}

// ProcessingService maintains the per-batch processing log.
type ProcessingService interface {
	// AppendStep adds a step stamped with the current time.
	AppendStep(ctx context.Context, batchID string, input AppendStepInput) (*models.ProcessingStep, error)

	// SubmitProcessingStep gets or creates the batch, attaches the given
	// collection events only when this call created it, then appends the step.
	SubmitProcessingStep(ctx context.Context, input SubmitStepInput) (*SubmitStepResult, error)

	// ListSteps returns the batch's steps in timestamp order.
	ListSteps(ctx context.Context, batchID string) ([]*models.ProcessingStep, error)
}

type processingService struct {
	tx      Transactor
	batches BatchService
	steps   repositories.ProcessingStepRepository
	logger  *zap.Logger
}

// NewProcessingService creates a new ProcessingService.
func NewProcessingService(
	tx Transactor,
	batches BatchService,
	steps repositories.ProcessingStepRepository,
	logger *zap.Logger,
) ProcessingService {
	return &processingService{
		tx:      tx,
		batches: batches,
		steps:   steps,
		logger:  logger.Named("processing-service"),
	}
}

var _ ProcessingService = (*processingService)(nil)

func (s *processingService) AppendStep(ctx context.Context, batchID string, input AppendStepInput) (*models.ProcessingStep, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	step, err := s.appendStep(ctx, batchID, input)
	if err != nil {
		s.logger.Error("Failed to append processing step",
			zap.String("batch_id", batchID),
			zap.String("step_type", input.StepType),
			zap.Error(err))
		return nil, err
	}
	return step, nil
}

func (s *processingService) appendStep(ctx context.Context, batchID string, input AppendStepInput) (*models.ProcessingStep, error) {
	step := &models.ProcessingStep{
		BatchID:       batchID,
		StepType:      models.StepType(input.StepType),
		Temperature:   input.Temperature,
		Humidity:      input.Humidity,
		DurationHours: input.DurationHours,
		OperatorName:  strings.TrimSpace(input.OperatorName),
		EquipmentUsed: strings.TrimSpace(input.EquipmentUsed),
		Notes:         input.Notes,
	}
	if err := s.steps.Create(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

func (s *processingService) SubmitProcessingStep(ctx context.Context, input SubmitStepInput) (*SubmitStepResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	result := &SubmitStepResult{}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		br, err := s.batches.CreateBatchRecord(ctx, input.GetOrCreateBatchInput)
		if err != nil {
			return err
		}
		result.Batch = br.Batch
		result.Created = br.Created

		if br.Created && len(input.CollectionEvents) > 0 {
			attach, err := s.batches.AttachCollectionEvents(ctx, br.Batch.BatchID, input.CollectionEvents)
			if err != nil {
				return err
			}
			result.Attach = attach
		}

		step, err := s.appendStep(ctx, br.Batch.BatchID, input.AppendStepInput)
		if err != nil {
			return err
		}
		result.Step = step
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit processing step",
			zap.String("batch_id", input.BatchID),
			zap.String("step_type", input.StepType),
			zap.Error(err))
		return nil, err
	}

	if !result.Batch.HasLocator() {
		batch, err := s.batches.EnsureLocator(ctx, result.Batch.BatchID)
		if err != nil {
			s.logger.Warn("Batch saved without locator",
				zap.String("batch_id", result.Batch.BatchID),
				zap.Error(err))
		} else {
			result.Batch = batch
		}
	}

	s.logger.Info("Recorded processing step",
		zap.String("batch_id", result.Batch.BatchID),
		zap.String("step_type", string(result.Step.StepType)),
		zap.Bool("batch_created", result.Created))
	return result, nil
}

func (s *processingService) ListSteps(ctx context.Context, batchID string) ([]*models.ProcessingStep, error) {
	if _, err := s.batches.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}

	steps, err := s.steps.ListByBatch(ctx, batchID)
	if err != nil {
		s.logger.Error("Failed to list processing steps",
			zap.String("batch_id", batchID),
			zap.Error(err))
		return nil, err
	}
	return steps, nil
}
