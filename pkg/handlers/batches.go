package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/services"
)

// BatchesHandler serves processing batches and their locators.
type BatchesHandler struct {
	batches services.BatchService
	logger  *zap.Logger
}

// NewBatchesHandler creates a new BatchesHandler.
func NewBatchesHandler(batches services.BatchService, logger *zap.Logger) *BatchesHandler {
	return &BatchesHandler{
		batches: batches,
		logger:  logger,
	}
}

// RegisterRoutes registers the batch routes on the given mux.
func (h *BatchesHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/batches", scope(h.GetOrCreate))
	mux.HandleFunc("GET /api/batches", scope(h.List))
	mux.HandleFunc("GET /api/batches/{batch_id}", scope(h.Get))
	mux.HandleFunc("POST /api/batches/{batch_id}/collections", scope(h.AttachCollections))
	mux.HandleFunc("GET /api/batches/{batch_id}/locator.png", scope(h.LocatorPNG))
}

type createBatchRequest struct {
	services.GetOrCreateBatchInput
	CollectionEvents []string `json:"collection_events"`
}

type createBatchResponse struct {
	Batch   *models.ProcessingBatch `json:"batch"`
	Created bool                    `json:"created"`
	Attach  *models.AttachResult    `json:"attach,omitempty"`
}

type attachRequest struct {
	CollectionEvents []string `json:"collection_events"`
}

// GetOrCreate handles POST /api/batches
// Collection events are attached only when this request created the batch.
func (h *BatchesHandler) GetOrCreate(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	res, err := h.batches.GetOrCreateBatch(r.Context(), req.GetOrCreateBatchInput)
	if err != nil {
		writeServiceError(w, h.logger, err, "create_batch")
		return
	}

	resp := createBatchResponse{Batch: res.Batch, Created: res.Created}
	if res.Created && len(req.CollectionEvents) > 0 {
		attach, err := h.batches.AttachCollectionEvents(r.Context(), res.Batch.BatchID, req.CollectionEvents)
		if err != nil {
			writeServiceError(w, h.logger, err, "attach_collections")
			return
		}
		resp.Attach = attach
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeData(w, h.logger, status, resp)
}

// List handles GET /api/batches?status=processing,quality_testing
func (h *BatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses := parseStatuses(r.URL.Query().Get("status"))

	batches, err := h.batches.ListBatches(r.Context(), statuses...)
	if err != nil {
		writeServiceError(w, h.logger, err, "list_batches")
		return
	}
	if batches == nil {
		batches = make([]*models.ProcessingBatch, 0)
	}

	writeData(w, h.logger, http.StatusOK, batches)
}

// Get handles GET /api/batches/{batch_id}
func (h *BatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	batchID, ok := batchIDParam(w, r, h.logger)
	if !ok {
		return
	}

	batch, err := h.batches.GetBatch(r.Context(), batchID)
	if err != nil {
		writeServiceError(w, h.logger, err, "get_batch")
		return
	}

	writeData(w, h.logger, http.StatusOK, batch)
}

// AttachCollections handles POST /api/batches/{batch_id}/collections
func (h *BatchesHandler) AttachCollections(w http.ResponseWriter, r *http.Request) {
	batchID, ok := batchIDParam(w, r, h.logger)
	if !ok {
		return
	}

	var req attachRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	res, err := h.batches.AttachCollectionEvents(r.Context(), batchID, req.CollectionEvents)
	if err != nil {
		writeServiceError(w, h.logger, err, "attach_collections")
		return
	}

	writeData(w, h.logger, http.StatusOK, res)
}

// LocatorPNG handles GET /api/batches/{batch_id}/locator.png
func (h *BatchesHandler) LocatorPNG(w http.ResponseWriter, r *http.Request) {
	batchID, ok := batchIDParam(w, r, h.logger)
	if !ok {
		return
	}

	loc, err := h.batches.Locator(r.Context(), batchID)
	if err != nil {
		writeServiceError(w, h.logger, err, "locator")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(loc.PNG)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(loc.PNG); err != nil {
		h.logger.Debug("Failed to write locator image", zap.String("batch_id", batchID), zap.Error(err))
	}
}

func parseStatuses(raw string) []models.BatchStatus {
	var statuses []models.BatchStatus
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			statuses = append(statuses, models.BatchStatus(part))
		}
	}
	return statuses
}
