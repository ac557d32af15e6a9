package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
)

// maxRequestBodyBytes bounds JSON request bodies.
const maxRequestBodyBytes = 1 << 20

// ApiResponse is the standard success envelope.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ScopeMiddleware wraps a handler with a request-scoped database connection.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeData writes a successful ApiResponse and logs encoding failures.
func writeData(w http.ResponseWriter, logger *zap.Logger, statusCode int, data any) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeServiceError maps a service error onto the HTTP error envelope.
// Unclassified errors are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, op string) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		writeError(w, logger, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, logger, http.StatusConflict, "conflict", err.Error())
	default:
		logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		writeError(w, logger, http.StatusInternalServerError, op+"_failed", "Internal server error")
	}
}

// decodeJSON reads the request body into v. On failure it writes a 400 and
// returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

// batchIDParam returns the trimmed {batch_id} path value, writing a 400 when it is empty.
func batchIDParam(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	batchID := strings.TrimSpace(r.PathValue("batch_id"))
	if batchID == "" {
		writeError(w, logger, http.StatusBadRequest, "invalid_batch_id", "Batch ID is required")
		return "", false
	}
	return batchID, true
}
