package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
	"github.com/ekaya-inc/herbtrace/pkg/models"
)

// QualityTestRepository provides data access for the append-only quality ledger.
type QualityTestRepository interface {
	// Create inserts a test. A certificate number already on file yields ErrConflict;
	// an unknown batch yields ErrNotFound.
	Create(ctx context.Context, test *models.QualityTest) error

	// CertificateExists reports whether any batch already holds the certificate number.
	CertificateExists(ctx context.Context, certificateNumber string) (bool, error)

	// ListByBatch returns the batch's tests in insertion order.
	ListByBatch(ctx context.Context, batchID string) ([]*models.QualityTest, error)
}

type qualityTestRepository struct{}

// NewQualityTestRepository creates a new QualityTestRepository.
func NewQualityTestRepository() QualityTestRepository {
	return &qualityTestRepository{}
}

var _ QualityTestRepository = (*qualityTestRepository)(nil)

func (r *qualityTestRepository) Create(ctx context.Context, test *models.QualityTest) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	if test.ID == uuid.Nil {
		test.ID = uuid.New()
	}
	if test.TestStatus == "" {
		test.TestStatus = models.TestStatusPending
	}

	compounds := test.ActiveCompounds
	if compounds == nil {
		compounds = map[string]string{}
	}
	compoundsJSON, err := json.Marshal(compounds)
	if err != nil {
		return fmt.Errorf("failed to marshal active_compounds: %w", err)
	}

	query := `
		INSERT INTO quality_tests (
			id, batch_id, test_date, lab_name, lab_license, moisture_content,
			pesticide_residue, heavy_metals, microbial_count, dna_verification,
			active_compounds, test_status, certificate_number, notes
		)
		SELECT $1, b.id, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		FROM processing_batches b
		WHERE b.batch_id = $2
		RETURNING created_at`

	err = q.QueryRow(ctx, query,
		test.ID,
		test.BatchID,
		test.TestDate,
		test.LabName,
		test.LabLicense,
		test.MoistureContent,
		string(test.PesticideResidue),
		string(test.HeavyMetals),
		test.MicrobialCount,
		test.DNAVerification,
		compoundsJSON,
		string(test.TestStatus),
		test.CertificateNumber,
		test.Notes,
	).Scan(&test.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: certificate %q already recorded", apperrors.ErrConflict, test.CertificateNumber)
		}
		return fmt.Errorf("failed to create quality test: %w", err)
	}
	return nil
}

func (r *qualityTestRepository) CertificateExists(ctx context.Context, certificateNumber string) (bool, error) {
	q, err := querier(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM quality_tests WHERE certificate_number = $1)`,
		certificateNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check certificate: %w", err)
	}
	return exists, nil
}

func (r *qualityTestRepository) ListByBatch(ctx context.Context, batchID string) ([]*models.QualityTest, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT t.id, b.batch_id, t.test_date, t.lab_name, t.lab_license, t.moisture_content,
		       t.pesticide_residue, t.heavy_metals, t.microbial_count, t.dna_verification,
		       t.active_compounds, t.test_status, t.certificate_number, t.notes, t.created_at
		FROM quality_tests t
		JOIN processing_batches b ON b.id = t.batch_id
		WHERE b.batch_id = $1
		ORDER BY t.created_at, t.id`

	rows, err := q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quality tests: %w", err)
	}
	defer rows.Close()

	tests := make([]*models.QualityTest, 0)
	for rows.Next() {
		test, err := scanQualityTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quality tests: %w", err)
	}
	return tests, nil
}

func scanQualityTest(row pgx.Row) (*models.QualityTest, error) {
	var (
		t             models.QualityTest
		pesticide     string
		heavyMetals   string
		status        string
		compoundsJSON []byte
	)
	err := row.Scan(
		&t.ID,
		&t.BatchID,
		&t.TestDate,
		&t.LabName,
		&t.LabLicense,
		&t.MoistureContent,
		&pesticide,
		&heavyMetals,
		&t.MicrobialCount,
		&t.DNAVerification,
		&compoundsJSON,
		&status,
		&t.CertificateNumber,
		&t.Notes,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan quality test: %w", err)
	}

	t.PesticideResidue = models.PesticideLevel(pesticide)
	t.HeavyMetals = models.HeavyMetalsVerdict(heavyMetals)
	t.TestStatus = models.TestStatus(status)

	t.ActiveCompounds = map[string]string{}
	if len(compoundsJSON) > 0 {
		if err := json.Unmarshal(compoundsJSON, &t.ActiveCompounds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal active_compounds: %w", err)
		}
	}
	return &t, nil
}
