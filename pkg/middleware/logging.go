// Package middleware provides HTTP middleware shared by every route.
package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/observability"
)

// RequestLogger returns middleware that logs HTTP requests at DEBUG level and
// records their duration. Either argument may be nil.
func RequestLogger(logger *zap.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil && metrics == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			elapsed := time.Since(start)
			// ServeMux sets Pattern on r once it has matched a route.
			metrics.ObserveRequest(r.Method, r.Pattern, wrapped.statusCode, elapsed)

			if logger != nil {
				logger.Debug("HTTP request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("route", r.Pattern),
					zap.Int("status", wrapped.statusCode),
					zap.Duration("duration", elapsed),
					zap.String("remote_addr", r.RemoteAddr),
				)
			}
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

// WriteHeader records the first status code and ignores later calls.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = code
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
