package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
	"github.com/ekaya-inc/herbtrace/pkg/models"
)

// ProcessingStepRepository provides data access for the processing log.
type ProcessingStepRepository interface {
	// Create appends a step. The database assigns ID and Timestamp.
	// Returns ErrNotFound when the batch does not exist.
	Create(ctx context.Context, step *models.ProcessingStep) error

	// ListByBatch returns the batch's steps ordered by timestamp.
	ListByBatch(ctx context.Context, batchID string) ([]*models.ProcessingStep, error)
}

type processingStepRepository struct{}

// NewProcessingStepRepository creates a new ProcessingStepRepository.
func NewProcessingStepRepository() ProcessingStepRepository {
	return &processingStepRepository{}
}

var _ ProcessingStepRepository = (*processingStepRepository)(nil)

func (r *processingStepRepository) Create(ctx context.Context, step *models.ProcessingStep) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO processing_steps (
			batch_id, step_type, temperature, humidity, duration_hours,
			operator_name, equipment_used, notes, "timestamp"
		)
		SELECT b.id, $2, $3, $4, $5, $6, $7, $8, clock_timestamp()
		FROM processing_batches b
		WHERE b.batch_id = $1
		RETURNING id, "timestamp"`

	err = q.QueryRow(ctx, query,
		step.BatchID,
		string(step.StepType),
		step.Temperature,
		step.Humidity,
		step.DurationHours,
		step.OperatorName,
		step.EquipmentUsed,
		step.Notes,
	).Scan(&step.ID, &step.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to create processing step: %w", err)
	}
	return nil
}

func (r *processingStepRepository) ListByBatch(ctx context.Context, batchID string) ([]*models.ProcessingStep, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT s.id, b.batch_id, s.step_type, s.temperature, s.humidity, s.duration_hours,
		       s.operator_name, s.equipment_used, s.notes, s."timestamp"
		FROM processing_steps s
		JOIN processing_batches b ON b.id = s.batch_id
		WHERE b.batch_id = $1
		ORDER BY s."timestamp", s.id`

	rows, err := q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query processing steps: %w", err)
	}
	defer rows.Close()

	steps := make([]*models.ProcessingStep, 0)
	for rows.Next() {
		var (
			s        models.ProcessingStep
			stepType string
		)
		err := rows.Scan(
			&s.ID,
			&s.BatchID,
			&stepType,
			&s.Temperature,
			&s.Humidity,
			&s.DurationHours,
			&s.OperatorName,
			&s.EquipmentUsed,
			&s.Notes,
			&s.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan processing step: %w", err)
		}
		s.StepType = models.StepType(stepType)
		steps = append(steps, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processing steps: %w", err)
	}
	return steps, nil
}
