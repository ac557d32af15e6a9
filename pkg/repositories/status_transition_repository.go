package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
	"github.com/ekaya-inc/herbtrace/pkg/models"
)

// StatusTransitionRepository provides data access for the batch status audit trail.
type StatusTransitionRepository interface {
	// Create inserts a new transition entry.
	Create(ctx context.Context, transition *models.StatusTransition) error

	// ListByBatch returns the batch's transitions, oldest first.
	ListByBatch(ctx context.Context, batchID string) ([]*models.StatusTransition, error)
}

type statusTransitionRepository struct{}

// NewStatusTransitionRepository creates a new StatusTransitionRepository.
func NewStatusTransitionRepository() StatusTransitionRepository {
	return &statusTransitionRepository{}
}

var _ StatusTransitionRepository = (*statusTransitionRepository)(nil)

func (r *statusTransitionRepository) Create(ctx context.Context, transition *models.StatusTransition) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	if transition.ID == uuid.Nil {
		transition.ID = uuid.New()
	}

	query := `
		INSERT INTO batch_status_transitions (
			id, batch_id, from_status, to_status, quality_test_id, reason, created_at
		)
		SELECT $1, b.id, $3, $4, $5, $6, clock_timestamp()
		FROM processing_batches b
		WHERE b.batch_id = $2
		RETURNING created_at`

	err = q.QueryRow(ctx, query,
		transition.ID,
		transition.BatchID,
		string(transition.FromStatus),
		string(transition.ToStatus),
		transition.QualityTestID,
		transition.Reason,
	).Scan(&transition.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to create status transition: %w", err)
	}
	return nil
}

func (r *statusTransitionRepository) ListByBatch(ctx context.Context, batchID string) ([]*models.StatusTransition, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT t.id, b.batch_id, t.from_status, t.to_status, t.quality_test_id, t.reason, t.created_at
		FROM batch_status_transitions t
		JOIN processing_batches b ON b.id = t.batch_id
		WHERE b.batch_id = $1
		ORDER BY t.created_at, t.id`

	rows, err := q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status transitions: %w", err)
	}
	defer rows.Close()

	transitions := make([]*models.StatusTransition, 0)
	for rows.Next() {
		var (
			t        models.StatusTransition
			from, to string
		)
		if err := rows.Scan(&t.ID, &t.BatchID, &from, &to, &t.QualityTestID, &t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status transition: %w", err)
		}
		t.FromStatus = models.BatchStatus(from)
		t.ToStatus = models.BatchStatus(to)
		transitions = append(transitions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status transitions: %w", err)
	}
	return transitions, nil
}
