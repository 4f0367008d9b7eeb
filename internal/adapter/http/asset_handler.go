package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AssetHandler streams stored images for backends without a public object endpoint.
type AssetHandler struct {
	assets  AssetReader
	logger  *logger.Logger
	metrics *metrics.MetricsManager
}

func NewAssetHandler(assets AssetReader, mm *metrics.MetricsManager, log *logger.Logger) *AssetHandler {
	return &AssetHandler{assets: assets, logger: log.Named("AssetHandler"), metrics: mm}
}

// HandleGet handles GET /assets/*.
func (h *AssetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	body, contentType, size, err := h.assets.Open(r.Context(), path)
	if err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("Asset download interrupted", zap.String("path", path), zap.Error(err))
	}
}
