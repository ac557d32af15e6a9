package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/services"
)

// QualityHandler serves lab results and batch status changes.
type QualityHandler struct {
	quality services.QualityService
	logger  *zap.Logger
}

// NewQualityHandler creates a new QualityHandler.
func NewQualityHandler(quality services.QualityService, logger *zap.Logger) *QualityHandler {
	return &QualityHandler{
		quality: quality,
		logger:  logger,
	}
}

// RegisterRoutes registers the quality routes on the given mux.
func (h *QualityHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/batches/eligible-for-testing", scope(h.Eligible))
	mux.HandleFunc("POST /api/batches/{batch_id}/quality-tests", scope(h.Record))
	mux.HandleFunc("GET /api/batches/{batch_id}/quality-tests", scope(h.List))
	mux.HandleFunc("POST /api/batches/{batch_id}/ready-for-testing", scope(h.ReadyForTesting))
	mux.HandleFunc("GET /api/batches/{batch_id}/status-history", scope(h.StatusHistory))
}

// Record handles POST /api/batches/{batch_id}/quality-tests
func (h *QualityHandler) Record(w http.ResponseWriter, r *http.Request) {
	batchID, ok := batchIDParam(w, r, h.logger)
	if !ok {
		return
	}

	var req services.RecordQualityTestInput
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	res, err := h.quality.RecordQualityTest(r.Context(), batchID, req)
	if err != nil {
		writeServiceError(w, h.logger, err, "record_quality_test")
		return
	}

	writeData(w, h.logger, http.StatusCreated, res)
}

// List handles GET /api/batches/{batch_id}/quality-tests
func (h *QualityHandler) List(w http.ResponseWriter, r *http.Request) {
	batchID, ok := batchIDParam(w, r, h.logger)
	if !ok {
		return
	}

	tests, err := h.quality.ListTests(r.Context(), batchID)
	if err != nil {
		writeServiceError(w, h.logger, err, "list_quality_tests")
		return
	}
	if tests == nil {
		tests = make([]*models.QualityTest, 0)
	}

	writeData(w, h.logger, http.StatusOK, tests)
}

// Eligible handles GET /api/batches/eligible-for-testing
func (h *QualityHandler) Eligible(w http.ResponseWriter, r *http.Request) {
	batches, err := h.quality.EligibleForTesting(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "eligible_batches")
		return
	}
	if batches == nil {
		batches = make([]*models.ProcessingBatch, 0)
	}

	writeData(w, h.logger, http.StatusOK, batches)
}

// ReadyForTesting handles POST /api/batches/{batch_id}/ready-for-testing
func (h *QualityHandler) ReadyForTesting(w http.ResponseWriter, r *http.Request) {
	batchID, ok := batchIDParam(w, r, h.logger)
	if !ok {
		return
	}

	batch, err := h.quality.MarkReadyForTesting(r.Context(), batchID)
	if err != nil {
		writeServiceError(w, h.logger, err, "ready_for_testing")
		return
	}

	writeData(w, h.logger, http.StatusOK, batch)
}

// StatusHistory handles GET /api/batches/{batch_id}/status-history
func (h *QualityHandler) StatusHistory(w http.ResponseWriter, r *http.Request) {
	batchID, ok := batchIDParam(w, r, h.logger)
	if !ok {
		return
	}

	history, err := h.quality.StatusHistory(r.Context(), batchID)
	if err != nil {
		writeServiceError(w, h.logger, err, "status_history")
		return
	}
	if history == nil {
		history = make([]*models.StatusTransition, 0)
	}

	writeData(w, h.logger, http.StatusOK, history)
}
