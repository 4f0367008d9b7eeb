package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/platform/metrics"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// classify maps a core error onto an HTTP status and a short error type used as a metric label.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrStorage):
		return http.StatusBadGateway, "storage"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, mm *metrics.MetricsManager, err error) {
	status, kind := classify(err)

	body := errorResponse{Error: err.Error(), Field: apperror.FieldOf(err)}
	if status == http.StatusInternalServerError {
		log.Error("Request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		body.Error = "internal server error"
	} else {
		log.Debug("Request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	if mm != nil {
		mm.HTTPErrorsTotal.WithLabelValues(routePattern(r), kind).Inc()
	}

	writeJSON(w, log, status, body)
}

func writeJSON(w http.ResponseWriter, log *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", zap.Error(err))
	}
}
