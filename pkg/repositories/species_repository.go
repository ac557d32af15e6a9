package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
	"github.com/ekaya-inc/herbtrace/pkg/models"
)

// SpeciesRepository reads the herb species reference data.
type SpeciesRepository interface {
	GetByName(ctx context.Context, name string) (*models.HerbSpecies, error)
	List(ctx context.Context) ([]*models.HerbSpecies, error)
}

type speciesRepository struct{}

// NewSpeciesRepository creates a new SpeciesRepository.
func NewSpeciesRepository() SpeciesRepository {
	return &speciesRepository{}
}

var _ SpeciesRepository = (*speciesRepository)(nil)

func (r *speciesRepository) GetByName(ctx context.Context, name string) (*models.HerbSpecies, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	var s models.HerbSpecies
	err = q.QueryRow(ctx, `
		SELECT id, name, scientific_name, description
		FROM herb_species
		WHERE name = $1`, name).Scan(&s.ID, &s.Name, &s.ScientificName, &s.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get species: %w", err)
	}
	return &s, nil
}

func (r *speciesRepository) List(ctx context.Context) ([]*models.HerbSpecies, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT id, name, scientific_name, description FROM herb_species ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query species: %w", err)
	}
	defer rows.Close()

	species := make([]*models.HerbSpecies, 0)
	for rows.Next() {
		var s models.HerbSpecies
		if err := rows.Scan(&s.ID, &s.Name, &s.ScientificName, &s.Description); err != nil {
			return nil, fmt.Errorf("failed to scan species: %w", err)
		}
		species = append(species, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating species: %w", err)
	}
	return species, nil
}
