package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/services"
)

// CollectionsHandler serves the collection ledger and the registry lookups.
type CollectionsHandler struct {
	collections services.CollectionService
	registry    services.RegistryService
	logger      *zap.Logger
}

// NewCollectionsHandler creates a new CollectionsHandler.
func NewCollectionsHandler(collections services.CollectionService, registry services.RegistryService, logger *zap.Logger) *CollectionsHandler {
	return &CollectionsHandler{
		collections: collections,
		registry:    registry,
		logger:      logger,
	}
}

// RegisterRoutes registers the collection and registry routes on the given mux.
func (h *CollectionsHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/collections", scope(h.Record))
	mux.HandleFunc("GET /api/collections", scope(h.List))
	mux.HandleFunc("GET /api/collections/map-data", scope(h.MapData))
	mux.HandleFunc("GET /api/collections/{event_id}", scope(h.Get))
	mux.HandleFunc("GET /api/collectors", scope(h.ListCollectors))
	mux.HandleFunc("GET /api/species", scope(h.ListSpecies))
}

// Record handles POST /api/collections
func (h *CollectionsHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req services.RecordCollectionInput
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	event, err := h.collections.RecordCollection(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "record_collection")
		return
	}

	writeData(w, h.logger, http.StatusCreated, event)
}

// List handles GET /api/collections?limit=N
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := h.collections.ListCollections(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "list_collections")
		return
	}
	if events == nil {
		events = make([]*models.CollectionEvent, 0)
	}

	writeData(w, h.logger, http.StatusOK, events)
}

// Get handles GET /api/collections/{event_id}
func (h *CollectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.collections.GetCollection(r.Context(), r.PathValue("event_id"))
	if err != nil {
		writeServiceError(w, h.logger, err, "get_collection")
		return
	}

	writeData(w, h.logger, http.StatusOK, event)
}

// MapData handles GET /api/collections/map-data
func (h *CollectionsHandler) MapData(w http.ResponseWriter, r *http.Request) {
	points, err := h.collections.MapData(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "map_data")
		return
	}
	if points == nil {
		points = make([]models.MapPoint, 0)
	}

	writeData(w, h.logger, http.StatusOK, points)
}

// ListCollectors handles GET /api/collectors
func (h *CollectionsHandler) ListCollectors(w http.ResponseWriter, r *http.Request) {
	collectors, err := h.registry.ListCollectors(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "list_collectors")
		return
	}
	if collectors == nil {
		collectors = make([]*models.Collector, 0)
	}

	writeData(w, h.logger, http.StatusOK, collectors)
}

// ListSpecies handles GET /api/species
func (h *CollectionsHandler) ListSpecies(w http.ResponseWriter, r *http.Request) {
	species, err := h.registry.ListSpecies(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "list_species")
		return
	}
	if species == nil {
		species = make([]*models.HerbSpecies, 0)
	}

	writeData(w, h.logger, http.StatusOK, species)
}
