package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ekaya-inc/herbtrace/pkg/locator"
	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/services"
)

// passthroughScope stands in for database.WithScopeContext.
func passthroughScope(next http.HandlerFunc) http.HandlerFunc { return next }

// mockCollectionService implements services.CollectionService for handler testing.
type mockCollectionService struct {
	event     *models.CollectionEvent
	events    []*models.CollectionEvent
	err       error
	lastInput services.RecordCollectionInput
	lastLimit int
}

func (m *mockCollectionService) RecordCollection(_ context.Context, input services.RecordCollectionInput) (*models.CollectionEvent, error) {
	m.lastInput = input
	if m.err != nil {
		return nil, m.err
	}
	return m.event, nil
}

func (m *mockCollectionService) GetCollection(_ context.Context, eventID string) (*models.CollectionEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.event, nil
}

func (m *mockCollectionService) ListCollections(_ context.Context, limit int) ([]*models.CollectionEvent, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.events, nil
}

func (m *mockCollectionService) MapData(_ context.Context) ([]models.MapPoint, error) {
	if m.err != nil {
		return nil, m.err
	}
	points := make([]models.MapPoint, 0, len(m.events))
	for _, e := range m.events {
		points = append(points, e.ToMapPoint())
	}
	return points, nil
}

// mockRegistryService implements services.RegistryService for handler testing.
type mockRegistryService struct {
	collectors []*models.Collector
	species    []*models.HerbSpecies
	err        error
}

func (m *mockRegistryService) UpsertCollector(_ context.Context, input services.CollectorInput) (*models.Collector, error) {
	return &models.Collector{ID: uuid.New(), CollectorID: input.CollectorID, Name: input.Name}, m.err
}

func (m *mockRegistryService) GetCollector(_ context.Context, _ string) (*models.Collector, error) {
	return nil, m.err
}

func (m *mockRegistryService) ListCollectors(_ context.Context) ([]*models.Collector, error) {
	return m.collectors, m.err
}

func (m *mockRegistryService) ResolveSpecies(_ context.Context, _ string) (*models.HerbSpecies, error) {
	return nil, m.err
}

func (m *mockRegistryService) ListSpecies(_ context.Context) ([]*models.HerbSpecies, error) {
	return m.species, m.err
}

// mockBatchService implements services.BatchService for handler testing.
type mockBatchService struct {
	batch       *models.ProcessingBatch
	batches     []*models.ProcessingBatch
	created     bool
	attach      *models.AttachResult
	locator     *locator.Locator
	err         error
	attachCalls int
	lastStatus  []models.BatchStatus
}

func (m *mockBatchService) GetOrCreateBatch(_ context.Context, input services.GetOrCreateBatchInput) (*services.BatchResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &services.BatchResult{Batch: m.batch, Created: m.created}, nil
}

func (m *mockBatchService) CreateBatchRecord(ctx context.Context, input services.GetOrCreateBatchInput) (*services.BatchResult, error) {
	return m.GetOrCreateBatch(ctx, input)
}

func (m *mockBatchService) EnsureLocator(_ context.Context, _ string) (*models.ProcessingBatch, error) {
	return m.batch, m.err
}

func (m *mockBatchService) Locator(_ context.Context, _ string) (*locator.Locator, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.locator, nil
}

func (m *mockBatchService) AttachCollectionEvents(_ context.Context, _ string, refs []string) (*models.AttachResult, error) {
	m.attachCalls++
	if m.err != nil {
		return nil, m.err
	}
	if m.attach != nil {
		return m.attach, nil
	}
	return &models.AttachResult{Attached: refs, Skipped: []string{}}, nil
}

func (m *mockBatchService) SetStatus(_ context.Context, _ string, _ models.BatchStatus) error {
	return m.err
}

func (m *mockBatchService) GetBatch(_ context.Context, batchID string) (*models.ProcessingBatch, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.batch, nil
}

func (m *mockBatchService) ListBatches(_ context.Context, statuses ...models.BatchStatus) ([]*models.ProcessingBatch, error) {
	m.lastStatus = statuses
	if m.err != nil {
		return nil, m.err
	}
	return m.batches, nil
}

// mockProcessingService implements services.ProcessingService for handler testing.
type mockProcessingService struct {
	result    *services.SubmitStepResult
	step      *models.ProcessingStep
	steps     []*models.ProcessingStep
	err       error
	lastBatch string
}

func (m *mockProcessingService) AppendStep(_ context.Context, batchID string, _ services.AppendStepInput) (*models.ProcessingStep, error) {
	m.lastBatch = batchID
	return m.step, m.err
}

func (m *mockProcessingService) SubmitProcessingStep(_ context.Context, _ services.SubmitStepInput) (*services.SubmitStepResult, error) {
	return m.result, m.err
}

func (m *mockProcessingService) ListSteps(_ context.Context, batchID string) ([]*models.ProcessingStep, error) {
	m.lastBatch = batchID
	return m.steps, m.err
}

// mockQualityService implements services.QualityService for handler testing.
type mockQualityService struct {
	result    *services.QualityTestResult
	batch     *models.ProcessingBatch
	batches   []*models.ProcessingBatch
	tests     []*models.QualityTest
	history   []*models.StatusTransition
	err       error
	lastBatch string
	lastInput services.RecordQualityTestInput
}

func (m *mockQualityService) RecordQualityTest(_ context.Context, batchID string, input services.RecordQualityTestInput) (*services.QualityTestResult, error) {
	m.lastBatch = batchID
	m.lastInput = input
	return m.result, m.err
}

func (m *mockQualityService) MarkReadyForTesting(_ context.Context, batchID string) (*models.ProcessingBatch, error) {
	m.lastBatch = batchID
	return m.batch, m.err
}

func (m *mockQualityService) EligibleForTesting(_ context.Context) ([]*models.ProcessingBatch, error) {
	return m.batches, m.err
}

func (m *mockQualityService) ListTests(_ context.Context, batchID string) ([]*models.QualityTest, error) {
	m.lastBatch = batchID
	return m.tests, m.err
}

func (m *mockQualityService) StatusHistory(_ context.Context, batchID string) ([]*models.StatusTransition, error) {
	m.lastBatch = batchID
	return m.history, m.err
}

// mockProvenanceService implements services.ProvenanceService for handler testing.
type mockProvenanceService struct {
	provenance *models.Provenance
	err        error
	lastBatch  string
}

func (m *mockProvenanceService) AssembleProvenance(_ context.Context, batchID string) (*models.Provenance, error) {
	m.lastBatch = batchID
	return m.provenance, m.err
}

// mockDashboardService implements services.DashboardService for handler testing.
type mockDashboardService struct {
	summary *models.DashboardSummary
	err     error
}

func (m *mockDashboardService) Summary(_ context.Context) (*models.DashboardSummary, error) {
	return m.summary, m.err
}
