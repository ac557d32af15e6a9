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

// CollectionEventRepository provides data access for the append-only collection ledger.
// There is deliberately no update or delete method.
type CollectionEventRepository interface {
	// Create inserts a new event. ID is generated when unset.
	Create(ctx context.Context, event *models.CollectionEvent) error

	// GetByID returns the event with collector and species joined in.
	GetByID(ctx context.Context, id uuid.UUID) (*models.CollectionEvent, error)

	// List returns events newest first. A non-positive limit returns all events.
	List(ctx context.Context, limit int) ([]*models.CollectionEvent, error)

	// ListByBatch returns the events attached to a batch, in attach order.
	ListByBatch(ctx context.Context, batchID string) ([]*models.CollectionEvent, error)

	Count(ctx context.Context) (int, error)
}

type collectionEventRepository struct{}

// NewCollectionEventRepository creates a new CollectionEventRepository.
func NewCollectionEventRepository() CollectionEventRepository {
	return &collectionEventRepository{}
}

var _ CollectionEventRepository = (*collectionEventRepository)(nil)

const collectionEventSelect = `
	SELECT e.id, e.collector_id, e.species_id, e.harvest_date, e.gps_latitude, e.gps_longitude,
	       e.quantity_kg, e.quality_grade, e.weather_conditions, e.soil_ph,
	       e.organic_certified, e.fair_trade_certified, e.created_at,
	       c.collector_id, c.name, s.name, s.scientific_name
	FROM collection_events e
	JOIN collectors c ON c.id = e.collector_id
	JOIN herb_species s ON s.id = e.species_id`

func (r *collectionEventRepository) Create(ctx context.Context, event *models.CollectionEvent) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()

	query := `
		INSERT INTO collection_events (
			id, collector_id, species_id, harvest_date, gps_latitude, gps_longitude,
			quantity_kg, quality_grade, weather_conditions, soil_ph,
			organic_certified, fair_trade_certified, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = q.Exec(ctx, query,
		event.ID,
		event.CollectorID,
		event.SpeciesID,
		event.HarvestDate,
		event.Latitude,
		event.Longitude,
		event.QuantityKg,
		string(event.QualityGrade),
		event.WeatherConditions,
		event.SoilPH,
		event.OrganicCertified,
		event.FairTradeCertified,
		event.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: collection event %s already exists", apperrors.ErrConflict, event.ID)
		}
		return fmt.Errorf("failed to create collection event: %w", err)
	}
	return nil
}

func (r *collectionEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CollectionEvent, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	event, err := scanCollectionEvent(q.QueryRow(ctx, collectionEventSelect+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get collection event: %w", err)
	}
	return event, nil
}

func (r *collectionEventRepository) List(ctx context.Context, limit int) ([]*models.CollectionEvent, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := collectionEventSelect + ` ORDER BY e.created_at DESC, e.id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection events: %w", err)
	}
	return collectCollectionEvents(rows)
}

func (r *collectionEventRepository) ListByBatch(ctx context.Context, batchID string) ([]*models.CollectionEvent, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := collectionEventSelect + `
	JOIN batch_collection_events bce ON bce.event_id = e.id
	JOIN processing_batches b ON b.id = bce.batch_id
	WHERE b.batch_id = $1
	ORDER BY bce.attached_at, e.created_at, e.id`

	rows, err := q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch collection events: %w", err)
	}
	return collectCollectionEvents(rows)
}

func (r *collectionEventRepository) Count(ctx context.Context) (int, error) {
	q, err := querier(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM collection_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count collection events: %w", err)
	}
	return n, nil
}

func collectCollectionEvents(rows pgx.Rows) ([]*models.CollectionEvent, error) {
	defer rows.Close()

	events := make([]*models.CollectionEvent, 0)
	for rows.Next() {
		event, err := scanCollectionEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection events: %w", err)
	}
	return events, nil
}

func scanCollectionEvent(row pgx.Row) (*models.CollectionEvent, error) {
	var (
		e              models.CollectionEvent
		grade          string
		scientificName string
	)
	err := row.Scan(
		&e.ID,
		&e.CollectorID,
		&e.SpeciesID,
		&e.HarvestDate,
		&e.Latitude,
		&e.Longitude,
		&e.QuantityKg,
		&grade,
		&e.WeatherConditions,
		&e.SoilPH,
		&e.OrganicCertified,
		&e.FairTradeCertified,
		&e.CreatedAt,
		&e.CollectorRef,
		&e.CollectorName,
		&e.SpeciesName,
		&scientificName,
	)
	if err != nil {
		return nil, err
	}
	e.QualityGrade = models.QualityGrade(grade)
	e.SpeciesDisplay = models.SpeciesDisplayName(e.SpeciesName, scientificName)
	return &e, nil
}
