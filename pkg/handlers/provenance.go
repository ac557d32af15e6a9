package handlers

import (
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/services"
)

// ProvenanceHandler serves the consumer-facing batch view and the dashboard.
type ProvenanceHandler struct {
	provenance services.ProvenanceService
	dashboard  services.DashboardService
	logger     *zap.Logger
}

// NewProvenanceHandler creates a new ProvenanceHandler.
func NewProvenanceHandler(provenance services.ProvenanceService, dashboard services.DashboardService, logger *zap.Logger) *ProvenanceHandler {
	return &ProvenanceHandler{
		provenance: provenance,
		dashboard:  dashboard,
		logger:     logger,
	}
}

// RegisterRoutes registers the provenance and dashboard routes on the given mux.
// /batch/{batch_id}/ is the URL encoded in batch QR codes; /qr/{batch_id}/ redirects to it.
func (h *ProvenanceHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/batch-data/{batch_id}", scope(h.Provenance))
	mux.HandleFunc("GET /api/batch-data/{batch_id}/{$}", scope(h.Provenance))
	mux.HandleFunc("GET /batch/{batch_id}/{$}", scope(h.Provenance))
	mux.HandleFunc("GET /qr/{batch_id}/{$}", h.ScanRedirect)
	mux.HandleFunc("GET /api/dashboard", scope(h.Dashboard))
}

// Provenance handles GET /api/batch-data/{batch_id} and GET /batch/{batch_id}/
func (h *ProvenanceHandler) Provenance(w http.ResponseWriter, r *http.Request) {
	batchID, ok := batchIDParam(w, r, h.logger)
	if !ok {
		return
	}

	p, err := h.provenance.AssembleProvenance(r.Context(), batchID)
	if err != nil {
		writeServiceError(w, h.logger, err, "provenance")
		return
	}

	writeData(w, h.logger, http.StatusOK, p)
}

// ScanRedirect handles GET /qr/{batch_id}/ by sending the scanner to the batch view.
func (h *ProvenanceHandler) ScanRedirect(w http.ResponseWriter, r *http.Request) {
	batchID, ok := batchIDParam(w, r, h.logger)
	if !ok {
		return
	}
	http.Redirect(w, r, "/batch/"+url.PathEscape(batchID)+"/", http.StatusFound)
}

// Dashboard handles GET /api/dashboard
func (h *ProvenanceHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboard.Summary(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "dashboard")
		return
	}

	writeData(w, h.logger, http.StatusOK, summary)
}
