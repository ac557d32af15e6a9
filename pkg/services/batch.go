package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/locator"
	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/observability"
	"github.com/ekaya-inc/herbtrace/pkg/repositories"
	"github.com/ekaya-inc/herbtrace/pkg/retry"
)

// LocatorGenerator produces the public URL and QR image for a batch.
// *locator.Generator satisfies it.
type LocatorGenerator interface {
	Generate(batchID string) (*locator.Locator, error)
	URL(batchID string) string
}

// GetOrCreateBatchInput carries the metadata used only when the batch is new.
type GetOrCreateBatchInput struct {
	BatchID            string     `json:"batch_id" validate:"notblank,max=50"`
	ProcessingFacility string     `json:"processing_facility" validate:"max=200"`
	StartDate          *time.Time `json:"start_date"`
	BatchSizeKg        float64    `json:"batch_size_kg" validate:"gte=0"`
}

// BatchResult is the outcome of a get-or-create.
type BatchResult struct {
	Batch   *models.ProcessingBatch `json:"batch"`
	Created bool                    `json:"created"`
}

// BatchService manages processing batches.
type BatchService interface {
	// GetOrCreateBatch returns the existing batch unchanged or creates it.
	// Creation persists the row first and then attaches the locator; a batch
	// whose locator could not be attached is still returned without error.
	GetOrCreateBatch(ctx context.Context, input GetOrCreateBatchInput) (*BatchResult, error)

	// CreateBatchRecord is the first phase of GetOrCreateBatch only. Callers
	// running it inside a transaction call EnsureLocator after commit.
	CreateBatchRecord(ctx context.Context, input GetOrCreateBatchInput) (*BatchResult, error)

	// EnsureLocator attaches the locator when it is missing. Idempotent.
	EnsureLocator(ctx context.Context, batchID string) (*models.ProcessingBatch, error)

	// Locator returns the batch's locator, generating it if missing.
	Locator(ctx context.Context, batchID string) (*locator.Locator, error)

	// AttachCollectionEvents links events to the batch. References that do not
	// resolve are reported in Skipped rather than failing the call.
	AttachCollectionEvents(ctx context.Context, batchID string, eventRefs []string) (*models.AttachResult, error)

	// SetStatus overwrites the status without checking the transition.
	SetStatus(ctx context.Context, batchID string, status models.BatchStatus) error

	GetBatch(ctx context.Context, batchID string) (*models.ProcessingBatch, error)
	ListBatches(ctx context.Context, statuses ...models.BatchStatus) ([]*models.ProcessingBatch, error)
}

type batchService struct {
	tx       Transactor
	batches  repositories.BatchRepository
	locators LocatorGenerator
	retryCfg *retry.Config
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewBatchService creates a new BatchService. locatorRetries is the number of
// extra attempts made when attaching a locator fails transiently.
func NewBatchService(
	tx Transactor,
	batches repositories.BatchRepository,
	locators LocatorGenerator,
	locatorRetries int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) BatchService {
	return &batchService{
		tx:       tx,
		batches:  batches,
		locators: locators,
		retryCfg: retry.DefaultConfig().WithMaxRetries(locatorRetries),
		metrics:  metrics,
		logger:   logger.Named("batch-service"),
	}
}

var _ BatchService = (*batchService)(nil)

func (s *batchService) GetOrCreateBatch(ctx context.Context, input GetOrCreateBatchInput) (*BatchResult, error) {
	result, err := s.CreateBatchRecord(ctx, input)
	if err != nil {
		return nil, err
	}
	if result.Batch.HasLocator() {
		return result, nil
	}

	batch, err := s.attachLocator(ctx, result.Batch)
	if err != nil {
		// The batch exists and is usable; the locator is regenerated on access.
		s.metrics.RecordLocatorFailure()
		s.logger.Warn("Batch saved without locator",
			zap.String("batch_id", result.Batch.BatchID),
			zap.Error(err))
		return result, nil
	}
	result.Batch = batch
	return result, nil
}

func (s *batchService) CreateBatchRecord(ctx context.Context, input GetOrCreateBatchInput) (*BatchResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	candidate := &models.ProcessingBatch{
		BatchID:            strings.TrimSpace(input.BatchID),
		ProcessingFacility: strings.TrimSpace(input.ProcessingFacility),
		BatchSizeKg:        input.BatchSizeKg,
		Status:             models.BatchStatusProcessing,
	}
	if input.StartDate != nil {
		candidate.StartDate = *input.StartDate
	}

	batch, created, err := s.batches.CreateIfAbsent(ctx, candidate)
	if err != nil {
		s.logger.Error("Failed to get or create batch",
			zap.String("batch_id", candidate.BatchID),
			zap.Error(err))
		return nil, err
	}

	if created {
		s.metrics.RecordBatchCreated()
		s.logger.Info("Created batch",
			zap.String("batch_id", batch.BatchID),
			zap.String("facility", batch.ProcessingFacility))
	}
	return &BatchResult{Batch: batch, Created: created}, nil
}

func (s *batchService) EnsureLocator(ctx context.Context, batchID string) (*models.ProcessingBatch, error) {
	batch, err := s.batches.GetByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.HasLocator() {
		return batch, nil
	}

	batch, err = s.attachLocator(ctx, batch)
	if err != nil {
		s.metrics.RecordLocatorFailure()
		s.logger.Error("Failed to attach locator",
			zap.String("batch_id", batchID),
			zap.Error(err))
		return nil, err
	}
	return batch, nil
}

func (s *batchService) Locator(ctx context.Context, batchID string) (*locator.Locator, error) {
	batch, err := s.EnsureLocator(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return &locator.Locator{URL: batch.LocatorURL, PNG: batch.LocatorPNG}, nil
}

// attachLocator is phase two of batch creation. It only writes when the
// batch has no locator yet, so repeating it is harmless.
func (s *batchService) attachLocator(ctx context.Context, batch *models.ProcessingBatch) (*models.ProcessingBatch, error) {
	loc, err := s.locators.Generate(batch.BatchID)
	if err != nil {
		return nil, err
	}

	var stored bool
	err = retry.Do(ctx, s.retryCfg, func() error {
		ok, err := s.batches.SetLocator(ctx, batch.BatchID, loc.URL, loc.PNG)
		if err != nil {
			if !retry.IsRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		stored = ok
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !stored {
		// Someone else attached it first.
		return s.batches.GetByBatchID(ctx, batch.BatchID)
	}

	updated := *batch
	updated.LocatorURL = loc.URL
	updated.LocatorPNG = loc.PNG
	return &updated, nil
}

func (s *batchService) AttachCollectionEvents(ctx context.Context, batchID string, eventRefs []string) (*models.AttachResult, error) {
	result := &models.AttachResult{
		Attached: make([]string, 0, len(eventRefs)),
		Skipped:  make([]string, 0),
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.batches.GetByBatchID(ctx, batchID); err != nil {
			return err
		}

		seen := make(map[string]bool, len(eventRefs))
		for _, ref := range eventRefs {
			ref = strings.TrimSpace(ref)
			if ref == "" || seen[ref] {
				continue
			}
			seen[ref] = true

			eventID, err := uuid.Parse(ref)
			if err != nil {
				result.Skipped = append(result.Skipped, ref)
				continue
			}

			found, err := s.batches.AttachEvent(ctx, batchID, eventID)
			if err != nil {
				return err
			}
			if found {
				result.Attached = append(result.Attached, ref)
			} else {
				result.Skipped = append(result.Skipped, ref)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to attach collection events",
			zap.String("batch_id", batchID),
			zap.Int("refs", len(eventRefs)),
			zap.Error(err))
		return nil, err
	}

	if len(result.Skipped) > 0 {
		s.logger.Info("Skipped unresolved collection events",
			zap.String("batch_id", batchID),
			zap.Strings("skipped", result.Skipped))
	}
	return result, nil
}

func (s *batchService) SetStatus(ctx context.Context, batchID string, status models.BatchStatus) error {
	if !status.IsValid() {
		return invalid("unknown batch status %q", status)
	}
	if err := s.batches.SetStatus(ctx, batchID, status, nil); err != nil {
		s.logger.Error("Failed to set batch status",
			zap.String("batch_id", batchID),
			zap.String("status", string(status)),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *batchService) GetBatch(ctx context.Context, batchID string) (*models.ProcessingBatch, error) {
	return s.batches.GetByBatchID(ctx, batchID)
}

func (s *batchService) ListBatches(ctx context.Context, statuses ...models.BatchStatus) ([]*models.ProcessingBatch, error) {
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, invalid("unknown batch status %q", st)
		}
	}

	batches, err := s.batches.List(ctx, 0, statuses...)
	if err != nil {
		s.logger.Error("Failed to list batches", zap.Error(err))
		return nil, err
	}
	return batches, nil
}
