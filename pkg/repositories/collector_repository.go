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

// CollectorRepository provides data access for registered collectors.
type CollectorRepository interface {
	// Upsert creates the collector on first use of its CollectorID.
	// An existing collector keeps its identity fields; only a non-empty phone is applied.
	Upsert(ctx context.Context, collector *models.Collector) (*models.Collector, error)
	GetByCollectorID(ctx context.Context, collectorID string) (*models.Collector, error)
	List(ctx context.Context) ([]*models.Collector, error)
	Count(ctx context.Context) (int, error)
}

type collectorRepository struct{}

// NewCollectorRepository creates a new CollectorRepository.
func NewCollectorRepository() CollectorRepository {
	return &collectorRepository{}
}

var _ CollectorRepository = (*collectorRepository)(nil)

const collectorColumns = `id, collector_id, name, phone, village, state, license_number, created_at`

func (r *collectorRepository) Upsert(ctx context.Context, collector *models.Collector) (*models.Collector, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	if collector.ID == uuid.Nil {
		collector.ID = uuid.New()
	}

	query := `
		INSERT INTO collectors (id, collector_id, name, phone, village, state, license_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (collector_id) DO UPDATE SET
			phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE collectors.phone END
		RETURNING ` + collectorColumns

	row := q.QueryRow(ctx, query,
		collector.ID,
		collector.CollectorID,
		collector.Name,
		collector.Phone,
		collector.Village,
		collector.State,
		collector.LicenseNumber,
	)
	saved, err := scanCollector(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert collector: %w", err)
	}
	return saved, nil
}

func (r *collectorRepository) GetByCollectorID(ctx context.Context, collectorID string) (*models.Collector, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + collectorColumns + ` FROM collectors WHERE collector_id = $1`

	c, err := scanCollector(q.QueryRow(ctx, query, collectorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get collector: %w", err)
	}
	return c, nil
}

func (r *collectorRepository) List(ctx context.Context) ([]*models.Collector, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + collectorColumns + ` FROM collectors ORDER BY name, collector_id`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query collectors: %w", err)
	}
	defer rows.Close()

	collectors := make([]*models.Collector, 0)
	for rows.Next() {
		c, err := scanCollector(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collector: %w", err)
		}
		collectors = append(collectors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collectors: %w", err)
	}
	return collectors, nil
}

func (r *collectorRepository) Count(ctx context.Context) (int, error) {
	q, err := querier(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM collectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count collectors: %w", err)
	}
	return n, nil
}

func scanCollector(row pgx.Row) (*models.Collector, error) {
	var c models.Collector
	err := row.Scan(
		&c.ID,
		&c.CollectorID,
		&c.Name,
		&c.Phone,
		&c.Village,
		&c.State,
		&c.LicenseNumber,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
