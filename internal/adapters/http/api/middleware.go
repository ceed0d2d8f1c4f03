package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/vorell/pkg/metrics"
)

// MetricsMiddleware records request count, latency and error class for
// every response written under endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		took := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, took)

		if rec.status < http.StatusBadRequest {
			return
		}
		kind, severity := classify(rec.status)
		metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
		metrics.RecordErrorByType(kind, severity)
		metrics.RecordErrorByComponent("http", kind)
	}
}

// classify maps an error status to the error type and severity labels.
func classify(status int) (string, string) {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", "high"
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "auth", "medium"
	case status == http.StatusConflict:
		return "conflict", "low"
	case status == http.StatusNotFound:
		return "not_found", "low"
	case status >= http.StatusBadRequest:
		return "client_error", "medium"
	}
	return "unknown", "low"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
