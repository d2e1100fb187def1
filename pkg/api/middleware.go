package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
	"github.com/ssargent/objektdb/pkg/metrics"
)

// apiKeyMiddleware validates the X-API-Key header
func apiKeyMiddleware(expectedKey string, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				m.RecordAuthRequest(false)
				sendError(w, "Missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			if apiKey != expectedKey {
				m.RecordAuthRequest(false)
				sendError(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			m.RecordAuthRequest(true)
			next.ServeHTTP(w, r)
		})
	}
}

// instrument records request count, duration and in-flight gauge for a route.
func instrument(m *metrics.Metrics, method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if gauge := m.InFlight(method, endpoint); gauge != nil {
			gauge.Inc()
			defer gauge.Dec()
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter captures the status code written by a handler
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// sendSuccess sends a successful JSON response
func sendSuccess(w http.ResponseWriter, data interface{}) {
	sendStatus(w, data, http.StatusOK)
}

// sendStatus sends a successful JSON response with an explicit status code
func sendStatus(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	response := APIResponse{
		Success: true,
		Data:    data,
	}
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// sendError sends an error JSON response
func sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success: false,
		Error:   message,
	}
	_ = json.NewEncoder(w).Encode(response)
}

// sendStoreError maps a storage error onto its HTTP status.
func sendStoreError(w http.ResponseWriter, err error) {
	sendError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, format.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, format.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, format.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, format.ErrClosed):
		return http.StatusGone
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, format.ErrCapacityExceeded),
		errors.Is(err, format.ErrInvalidSchema),
		errors.Is(err, format.ErrTypeMismatch),
		errors.Is(err, format.ErrFieldTooLarge):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
