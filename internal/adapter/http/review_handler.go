package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/platform/metrics"
	"github.com/2015jtw/campfinder/internal/review/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultHeartbeat = 30 * time.Second
	maxReviewBody    = 64 << 10
)

type postReviewRequest struct {
	Author string `json:"author"`
	Rating int    `json:"rating"`
	Body   string `json:"body"`
}

// ReviewHandler serves review history, posting and the live review stream.
type ReviewHandler struct {
	reviews   ReviewService
	heartbeat time.Duration
	logger    *logger.Logger
	metrics   *metrics.MetricsManager
}

func NewReviewHandler(reviews ReviewService, mm *metrics.MetricsManager, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviews:   reviews,
		heartbeat: defaultHeartbeat,
		logger:    log.Named("ReviewHandler"),
		metrics:   mm,
	}
}

// HandleList handles GET /api/listings/{id}/reviews.
func (h *ReviewHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}
	if reviews == nil {
		reviews = []*domain.Review{}
	}
	writeJSON(w, h.logger, http.StatusOK, reviews)
}

// HandlePost handles POST /api/listings/{id}/reviews.
func (h *ReviewHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var req postReviewRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxReviewBody)).Decode(&req); err != nil {
		h.logger.Debug("Invalid review body", zap.Error(err))
		writeError(w, r, h.logger, h.metrics, apperror.Invalid("body", "must be a JSON object"))
		return
	}

	review, err := h.reviews.Post(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"), req.Author, req.Rating, req.Body)
	if err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, review)
}

// HandleStream handles GET /api/listings/{id}/reviews/stream. Each posted review becomes a "review"
// event; the subscription ends when the client disconnects.
func (h *ReviewHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, h.logger, h.metrics, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.reviews.Subscribe(listingID)
	defer sub.Close()

	w.WriteHeader(http.StatusOK)
	h.sendEvent(w, "connected", map[string]interface{}{"listing_id": listingID, "timestamp": time.Now().UTC()})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("Review stream client disconnected", zap.String("listing_id", listingID))
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{"timestamp": time.Now().UTC()})
			flusher.Flush()
		case review, ok := <-sub.C():
			if !ok {
				return
			}
			h.sendEvent(w, "review", review)
			flusher.Flush()
		}
	}
}

func (h *ReviewHandler) sendEvent(w io.Writer, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal stream event", zap.String("event", event), zap.Error(err))
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
