package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
	"github.com/ekaya-inc/herbtrace/pkg/models"
)

// BatchRepository provides data access for processing batches and their
// collection event associations.
type BatchRepository interface {
	// CreateIfAbsent inserts the batch unless one with the same BatchID exists.
	// Returns the stored batch and whether this call created it.
	CreateIfAbsent(ctx context.Context, batch *models.ProcessingBatch) (*models.ProcessingBatch, bool, error)

	GetByBatchID(ctx context.Context, batchID string) (*models.ProcessingBatch, error)

	// GetForUpdate reads the batch and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, batchID string) (*models.ProcessingBatch, error)

	// List returns batches newest first, optionally filtered by status.
	// A non-positive limit returns all matching batches.
	List(ctx context.Context, limit int, statuses ...models.BatchStatus) ([]*models.ProcessingBatch, error)

	CountByStatus(ctx context.Context, statuses ...models.BatchStatus) (int, error)

	// SetStatus overwrites the status unconditionally. A nil endDate leaves end_date unchanged.
	SetStatus(ctx context.Context, batchID string, status models.BatchStatus, endDate *time.Time) error

	// SetLocator stores the locator only when the batch does not have one yet.
	// Returns false when a locator was already present.
	SetLocator(ctx context.Context, batchID, url string, png []byte) (bool, error)

	// AttachEvent links a collection event to a batch. Linking an already linked
	// event is a no-op. Returns false when the event does not exist.
	AttachEvent(ctx context.Context, batchID string, eventID uuid.UUID) (bool, error)
}

type batchRepository struct{}

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository() BatchRepository {
	return &batchRepository{}
}

var _ BatchRepository = (*batchRepository)(nil)

const batchColumns = `id, batch_id, processing_facility, start_date, end_date, batch_size_kg,
	status, locator_url, locator_png, created_at`

func (r *batchRepository) CreateIfAbsent(ctx context.Context, batch *models.ProcessingBatch) (*models.ProcessingBatch, bool, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, false, err
	}

	if batch.Status == "" {
		batch.Status = models.BatchStatusProcessing
	}
	if batch.StartDate.IsZero() {
		batch.StartDate = time.Now()
	}

	query := `
		INSERT INTO processing_batches (batch_id, processing_facility, start_date, batch_size_kg, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (batch_id) DO NOTHING
		RETURNING ` + batchColumns

	created, err := scanBatch(q.QueryRow(ctx, query,
		batch.BatchID,
		batch.ProcessingFacility,
		batch.StartDate,
		batch.BatchSizeKg,
		string(batch.Status),
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create batch: %w", err)
	}

	// Lost the race or the batch already existed: first writer wins.
	existing, err := r.GetByBatchID(ctx, batch.BatchID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *batchRepository) GetByBatchID(ctx context.Context, batchID string) (*models.ProcessingBatch, error) {
	return r.get(ctx, batchID, "")
}

func (r *batchRepository) GetForUpdate(ctx context.Context, batchID string) (*models.ProcessingBatch, error) {
	return r.get(ctx, batchID, " FOR UPDATE")
}

func (r *batchRepository) get(ctx context.Context, batchID, suffix string) (*models.ProcessingBatch, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + batchColumns + ` FROM processing_batches WHERE batch_id = $1` + suffix

	batch, err := scanBatch(q.QueryRow(ctx, query, batchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

func (r *batchRepository) List(ctx context.Context, limit int, statuses ...models.BatchStatus) ([]*models.ProcessingBatch, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + batchColumns + ` FROM processing_batches`
	args := []any{}
	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		args = append(args, statusStrings(statuses))
	}
	query += ` ORDER BY start_date DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	batches := make([]*models.ProcessingBatch, 0)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}
	return batches, nil
}

func (r *batchRepository) CountByStatus(ctx context.Context, statuses ...models.BatchStatus) (int, error) {
	q, err := querier(ctx)
	if err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM processing_batches`
	args := []any{}
	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		args = append(args, statusStrings(statuses))
	}

	var n int
	if err := q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count batches: %w", err)
	}
	return n, nil
}

func (r *batchRepository) SetStatus(ctx context.Context, batchID string, status models.BatchStatus, endDate *time.Time) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE processing_batches
		SET status = $2, end_date = COALESCE($3, end_date)
		WHERE batch_id = $1`, batchID, string(status), endDate)
	if err != nil {
		return fmt.Errorf("failed to set batch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *batchRepository) SetLocator(ctx context.Context, batchID, url string, png []byte) (bool, error) {
	q, err := querier(ctx)
	if err != nil {
		return false, err
	}

	tag, err := q.Exec(ctx, `
		UPDATE processing_batches
		SET locator_url = $2, locator_png = $3
		WHERE batch_id = $1 AND (locator_url = '' OR locator_png IS NULL)`, batchID, url, png)
	if err != nil {
		return false, fmt.Errorf("failed to set batch locator: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *batchRepository) AttachEvent(ctx context.Context, batchID string, eventID uuid.UUID) (bool, error) {
	q, err := querier(ctx)
	if err != nil {
		return false, err
	}

	// The outer SELECT sees the snapshot taken before the insert, which is
	// enough to tell an unknown event from an already linked one.
	query := `
		WITH linked AS (
			INSERT INTO batch_collection_events (batch_id, event_id)
			SELECT b.id, e.id
			FROM processing_batches b, collection_events e
			WHERE b.batch_id = $1 AND e.id = $2
			ON CONFLICT (batch_id, event_id) DO NOTHING
			RETURNING event_id
		)
		SELECT EXISTS (SELECT 1 FROM collection_events WHERE id = $2)`

	var found bool
	if err := q.QueryRow(ctx, query, batchID, eventID).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to attach collection event: %w", err)
	}
	return found, nil
}

func statusStrings(statuses []models.BatchStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanBatch(row pgx.Row) (*models.ProcessingBatch, error) {
	var (
		b      models.ProcessingBatch
		status string
	)
	err := row.Scan(
		&b.ID,
		&b.BatchID,
		&b.ProcessingFacility,
		&b.StartDate,
		&b.EndDate,
		&b.BatchSizeKg,
		&status,
		&b.LocatorURL,
		&b.LocatorPNG,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = models.BatchStatus(status)
	return &b, nil
}
