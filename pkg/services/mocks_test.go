package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
	"github.com/ekaya-inc/herbtrace/pkg/locator"
	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/repositories"
)

// passthroughTx implements Transactor by calling fn directly.
type passthroughTx struct {
	inTx       int
	inSnapshot int
}

func (t *passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.inTx++
	return fn(ctx)
}

func (t *passthroughTx) InSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	t.inSnapshot++
	return fn(ctx)
}

// memStore backs the in-memory repositories below. Repositories sharing a
// store see each other's writes, as tables in one database would.
type memStore struct {
	clock time.Time

	collectors  []*models.Collector
	species     []*models.HerbSpecies
	events      []*models.CollectionEvent
	batches     []*models.ProcessingBatch
	attachments map[string][]uuid.UUID
	steps       []*models.ProcessingStep
	tests       []*models.QualityTest
	transitions []*models.StatusTransition
}

func newMemStore() *memStore {
	return &memStore{
		clock: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		species: []*models.HerbSpecies{
			{ID: 1, Name: models.SpeciesAshwagandha, ScientificName: "Withania somnifera"},
			{ID: 2, Name: models.SpeciesTulsi, ScientificName: "Ocimum tenuiflorum"},
			{ID: 3, Name: models.SpeciesBrahmi, ScientificName: "Bacopa monnieri"},
		},
		attachments: make(map[string][]uuid.UUID),
	}
}

// tick returns a strictly increasing timestamp.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) findBatch(batchID string) *models.ProcessingBatch {
	for _, b := range s.batches {
		if b.BatchID == batchID {
			return b
		}
	}
	return nil
}

func (s *memStore) joinEvent(e *models.CollectionEvent) *models.CollectionEvent {
	out := *e
	for _, c := range s.collectors {
		if c.ID == e.CollectorID {
			out.CollectorRef = c.CollectorID
			out.CollectorName = c.Name
		}
	}
	for _, sp := range s.species {
		if sp.ID == e.SpeciesID {
			out.SpeciesName = sp.Name
			out.SpeciesDisplay = sp.DisplayName()
		}
	}
	return &out
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", apperrors.ErrNotFound, what)
}

// mockCollectorRepo implements repositories.CollectorRepository.
type mockCollectorRepo struct {
	store     *memStore
	upsertErr error
}

var _ repositories.CollectorRepository = (*mockCollectorRepo)(nil)

func (m *mockCollectorRepo) Upsert(_ context.Context, c *models.Collector) (*models.Collector, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	for _, existing := range m.store.collectors {
		if existing.CollectorID == c.CollectorID {
			if c.Phone != "" {
				existing.Phone = c.Phone
			}
			out := *existing
			return &out, nil
		}
	}
	stored := *c
	stored.ID = uuid.New()
	stored.CreatedAt = m.store.tick()
	m.store.collectors = append(m.store.collectors, &stored)
	out := stored
	return &out, nil
}

func (m *mockCollectorRepo) GetByCollectorID(_ context.Context, collectorID string) (*models.Collector, error) {
	for _, c := range m.store.collectors {
		if c.CollectorID == collectorID {
			out := *c
			return &out, nil
		}
	}
	return nil, notFound("collector")
}

func (m *mockCollectorRepo) List(_ context.Context) ([]*models.Collector, error) {
	return m.store.collectors, nil
}

func (m *mockCollectorRepo) Count(_ context.Context) (int, error) {
	return len(m.store.collectors), nil
}

// mockSpeciesRepo implements repositories.SpeciesRepository.
type mockSpeciesRepo struct {
	store  *memStore
	getErr error
}

var _ repositories.SpeciesRepository = (*mockSpeciesRepo)(nil)

func (m *mockSpeciesRepo) GetByName(_ context.Context, name string) (*models.HerbSpecies, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, sp := range m.store.species {
		if sp.Name == name {
			return sp, nil
		}
	}
	return nil, notFound("species")
}

func (m *mockSpeciesRepo) List(_ context.Context) ([]*models.HerbSpecies, error) {
	return m.store.species, nil
}

// mockEventRepo implements repositories.CollectionEventRepository.
type mockEventRepo struct {
	store     *memStore
	createErr error
}

var _ repositories.CollectionEventRepository = (*mockEventRepo)(nil)

func (m *mockEventRepo) Create(_ context.Context, e *models.CollectionEvent) error {
	if m.createErr != nil {
		return m.createErr
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = m.store.tick()
	stored := *e
	m.store.events = append(m.store.events, &stored)
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id uuid.UUID) (*models.CollectionEvent, error) {
	for _, e := range m.store.events {
		if e.ID == id {
			return m.store.joinEvent(e), nil
		}
	}
	return nil, notFound("collection event")
}

func (m *mockEventRepo) List(_ context.Context, limit int) ([]*models.CollectionEvent, error) {
	out := make([]*models.CollectionEvent, 0, len(m.store.events))
	for i := len(m.store.events) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.store.joinEvent(m.store.events[i]))
	}
	return out, nil
}

func (m *mockEventRepo) ListByBatch(_ context.Context, batchID string) ([]*models.CollectionEvent, error) {
	var out []*models.CollectionEvent
	for _, id := range m.store.attachments[batchID] {
		for _, e := range m.store.events {
			if e.ID == id {
				out = append(out, m.store.joinEvent(e))
			}
		}
	}
	return out, nil
}

func (m *mockEventRepo) Count(_ context.Context) (int, error) {
	return len(m.store.events), nil
}

// mockBatchRepo implements repositories.BatchRepository.
type mockBatchRepo struct {
	store        *memStore
	createErr    error
	setLocErrs   []error // consumed one per SetLocator call
	setLocCalls  int
	forUpdateHit int
}

var _ repositories.BatchRepository = (*mockBatchRepo)(nil)

func (m *mockBatchRepo) CreateIfAbsent(_ context.Context, b *models.ProcessingBatch) (*models.ProcessingBatch, bool, error) {
	if m.createErr != nil {
		return nil, false, m.createErr
	}
	if existing := m.store.findBatch(b.BatchID); existing != nil {
		out := *existing
		return &out, false, nil
	}
	stored := *b
	stored.ID = int64(len(m.store.batches) + 1)
	stored.CreatedAt = m.store.tick()
	if stored.StartDate.IsZero() {
		stored.StartDate = stored.CreatedAt
	}
	m.store.batches = append(m.store.batches, &stored)
	out := stored
	return &out, true, nil
}

func (m *mockBatchRepo) GetByBatchID(_ context.Context, batchID string) (*models.ProcessingBatch, error) {
	if b := m.store.findBatch(batchID); b != nil {
		out := *b
		return &out, nil
	}
	return nil, notFound("batch")
}

func (m *mockBatchRepo) GetForUpdate(ctx context.Context, batchID string) (*models.ProcessingBatch, error) {
	m.forUpdateHit++
	return m.GetByBatchID(ctx, batchID)
}

func (m *mockBatchRepo) List(_ context.Context, limit int, statuses ...models.BatchStatus) ([]*models.ProcessingBatch, error) {
	var out []*models.ProcessingBatch
	for i := len(m.store.batches) - 1; i >= 0; i-- {
		b := m.store.batches[i]
		if len(statuses) > 0 && !containsStatus(statuses, b.Status) {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockBatchRepo) CountByStatus(_ context.Context, statuses ...models.BatchStatus) (int, error) {
	n := 0
	for _, b := range m.store.batches {
		if len(statuses) == 0 || containsStatus(statuses, b.Status) {
			n++
		}
	}
	return n, nil
}

func (m *mockBatchRepo) SetStatus(_ context.Context, batchID string, status models.BatchStatus, endDate *time.Time) error {
	b := m.store.findBatch(batchID)
	if b == nil {
		return notFound("batch")
	}
	b.Status = status
	if endDate != nil {
		d := *endDate
		b.EndDate = &d
	}
	return nil
}

func (m *mockBatchRepo) SetLocator(_ context.Context, batchID, url string, png []byte) (bool, error) {
	m.setLocCalls++
	if len(m.setLocErrs) > 0 {
		err := m.setLocErrs[0]
		m.setLocErrs = m.setLocErrs[1:]
		if err != nil {
			return false, err
		}
	}
	b := m.store.findBatch(batchID)
	if b == nil || b.HasLocator() {
		return false, nil
	}
	b.LocatorURL = url
	b.LocatorPNG = png
	return true, nil
}

func (m *mockBatchRepo) AttachEvent(_ context.Context, batchID string, eventID uuid.UUID) (bool, error) {
	found := false
	for _, e := range m.store.events {
		if e.ID == eventID {
			found = true
		}
	}
	if !found {
		return false, nil
	}
	for _, id := range m.store.attachments[batchID] {
		if id == eventID {
			return true, nil
		}
	}
	m.store.attachments[batchID] = append(m.store.attachments[batchID], eventID)
	return true, nil
}

func containsStatus(statuses []models.BatchStatus, s models.BatchStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// mockStepRepo implements repositories.ProcessingStepRepository.
type mockStepRepo struct {
	store *memStore
}

var _ repositories.ProcessingStepRepository = (*mockStepRepo)(nil)

func (m *mockStepRepo) Create(_ context.Context, step *models.ProcessingStep) error {
	if m.store.findBatch(step.BatchID) == nil {
		return notFound("batch")
	}
	step.ID = int64(len(m.store.steps) + 1)
	step.Timestamp = m.store.tick()
	stored := *step
	m.store.steps = append(m.store.steps, &stored)
	return nil
}

func (m *mockStepRepo) ListByBatch(_ context.Context, batchID string) ([]*models.ProcessingStep, error) {
	var out []*models.ProcessingStep
	for _, st := range m.store.steps {
		if st.BatchID == batchID {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// mockTestRepo implements repositories.QualityTestRepository.
type mockTestRepo struct {
	store       *memStore
	createCalls int
}

var _ repositories.QualityTestRepository = (*mockTestRepo)(nil)

func (m *mockTestRepo) Create(_ context.Context, test *models.QualityTest) error {
	m.createCalls++
	if m.store.findBatch(test.BatchID) == nil {
		return notFound("batch")
	}
	for _, existing := range m.store.tests {
		if existing.CertificateNumber == test.CertificateNumber {
			return apperrors.ErrConflict
		}
	}
	if test.ID == uuid.Nil {
		test.ID = uuid.New()
	}
	test.CreatedAt = m.store.tick()
	stored := *test
	m.store.tests = append(m.store.tests, &stored)
	return nil
}

func (m *mockTestRepo) CertificateExists(_ context.Context, certificateNumber string) (bool, error) {
	for _, t := range m.store.tests {
		if t.CertificateNumber == certificateNumber {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTestRepo) ListByBatch(_ context.Context, batchID string) ([]*models.QualityTest, error) {
	var out []*models.QualityTest
	for _, t := range m.store.tests {
		if t.BatchID == batchID {
			out = append(out, t)
		}
	}
	return out, nil
}

// mockTransitionRepo implements repositories.StatusTransitionRepository.
type mockTransitionRepo struct {
	store *memStore
}

var _ repositories.StatusTransitionRepository = (*mockTransitionRepo)(nil)

func (m *mockTransitionRepo) Create(_ context.Context, tr *models.StatusTransition) error {
	tr.ID = uuid.New()
	tr.CreatedAt = m.store.tick()
	stored := *tr
	m.store.transitions = append(m.store.transitions, &stored)
	return nil
}

func (m *mockTransitionRepo) ListByBatch(_ context.Context, batchID string) ([]*models.StatusTransition, error) {
	var out []*models.StatusTransition
	for _, tr := range m.store.transitions {
		if tr.BatchID == batchID {
			out = append(out, tr)
		}
	}
	return out, nil
}

// mockLocatorGenerator implements LocatorGenerator without encoding images.
type mockLocatorGenerator struct {
	err   error
	calls int
}

func (g *mockLocatorGenerator) URL(batchID string) string {
	return "https://trace.example.com/batch/" + batchID + "/"
}

func (g *mockLocatorGenerator) Generate(batchID string) (*locator.Locator, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &locator.Locator{URL: g.URL(batchID), PNG: []byte("png:" + batchID)}, nil
}

var errLocatorDown = errors.New("qr encoder unavailable")
