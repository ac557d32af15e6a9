package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/services"
)

// ProcessingHandler serves facility submissions and the processing log.
type ProcessingHandler struct {
	processing services.ProcessingService
	logger     *zap.Logger
}

// NewProcessingHandler creates a new ProcessingHandler.
func NewProcessingHandler(processing services.ProcessingService, logger *zap.Logger) *ProcessingHandler {
	return &ProcessingHandler{
		processing: processing,
		logger:     logger,
	}
}

// RegisterRoutes registers the processing routes on the given mux.
func (h *ProcessingHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/processing-steps", scope(h.Submit))
	mux.HandleFunc("POST /api/batches/{batch_id}/steps", scope(h.Append))
	mux.HandleFunc("GET /api/batches/{batch_id}/steps", scope(h.List))
}

// Submit handles POST /api/processing-steps
func (h *ProcessingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req services.SubmitStepInput
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	res, err := h.processing.SubmitProcessingStep(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "submit_processing_step")
		return
	}

	writeData(w, h.logger, http.StatusCreated, res)
}

// Append handles POST /api/batches/{batch_id}/steps
func (h *ProcessingHandler) Append(w http.ResponseWriter, r *http.Request) {
	batchID, ok := batchIDParam(w, r, h.logger)
	if !ok {
		return
	}

	var req services.AppendStepInput
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	step, err := h.processing.AppendStep(r.Context(), batchID, req)
	if err != nil {
		writeServiceError(w, h.logger, err, "append_step")
		return
	}

	writeData(w, h.logger, http.StatusCreated, step)
}

// List handles GET /api/batches/{batch_id}/steps
func (h *ProcessingHandler) List(w http.ResponseWriter, r *http.Request) {
	batchID, ok := batchIDParam(w, r, h.logger)
	if !ok {
		return
	}

	steps, err := h.processing.ListSteps(r.Context(), batchID)
	if err != nil {
		writeServiceError(w, h.logger, err, "list_steps")
		return
	}
	if steps == nil {
		steps = make([]*models.ProcessingStep, 0)
	}

	writeData(w, h.logger, http.StatusOK, steps)
}
