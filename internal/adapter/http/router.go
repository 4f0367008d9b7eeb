package http

import (
	"net/http"

	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig wires handlers into the router. Assets may be nil when the object store serves images itself.
type RouterConfig struct {
	Listings  *ListingHandler
	Reviews   *ReviewHandler
	Assets    *AssetHandler
	JWTSecret string
	Metrics   *metrics.MetricsManager
	Logger    *logger.Logger
}

// NewRouter builds the chi router for the public API.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(Metrics(cfg.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, cfg.Logger, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Assets != nil {
		r.Get("/assets/*", cfg.Assets.HandleGet)
	}

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.JWTSecret, cfg.Logger))
		setupListingRoutes(r, cfg.Listings, cfg.Reviews)
	})
	return r
}

func setupListingRoutes(r chi.Router, listings *ListingHandler, reviews *ReviewHandler) {
	r.Route("/api/listings", func(r chi.Router) {
		r.Get("/", listings.HandleSearch)
		r.Post("/", listings.HandleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", listings.HandleGet)
			r.Patch("/", listings.HandleUpdate)
			r.Delete("/", listings.HandleDelete)

			r.Get("/reviews", reviews.HandleList)
			r.Post("/reviews", reviews.HandlePost)
			r.Get("/reviews/stream", reviews.HandleStream)
		})
	})
}
