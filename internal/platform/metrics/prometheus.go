package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsManager holds the service's Prometheus collectors.
type MetricsManager struct {
	Registry *prometheus.Registry

	ListingsCreatedTotal prometheus.Counter
	ListingsUpdatedTotal prometheus.Counter
	ListingsDeletedTotal prometheus.Counter
	ReviewsPostedTotal   prometheus.Counter

	AssetUploadsTotal   *prometheus.CounterVec
	AssetRemovalsTotal  *prometheus.CounterVec
	OrphanedAssetsTotal prometheus.Counter

	LiveSubscribers prometheus.Gauge

	HTTPRequestLatency *prometheus.HistogramVec
	HTTPErrorsTotal    *prometheus.CounterVec
}

// NewMetricsManager builds and registers all collectors on a private registry.
func NewMetricsManager(serviceName string) *MetricsManager {
	ns := strings.ReplaceAll(serviceName, "-", "_")
	registry := prometheus.NewRegistry()

	m := &MetricsManager{
		Registry: registry,
		ListingsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "listings_created_total",
			Help:      "Total number of listings created.",
		}),
		ListingsUpdatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "listings_updated_total",
			Help:      "Total number of listings updated.",
		}),
		ListingsDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "listings_deleted_total",
			Help:      "Total number of listings deleted.",
		}),
		ReviewsPostedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reviews_posted_total",
			Help:      "Total number of reviews posted.",
		}),
		AssetUploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "asset_uploads_total",
			Help:      "Image uploads by outcome.",
		}, []string{"outcome"}),
		AssetRemovalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "asset_removals_total",
			Help:      "Bulk image removals by outcome.",
		}, []string{"outcome"}),
		OrphanedAssetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "orphaned_assets_total",
			Help:      "Images left in storage without a referencing listing.",
		}),
		LiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "review_stream_subscribers",
			Help:      "Currently open review stream subscriptions.",
		}),
		HTTPRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_latency_seconds",
			Help:      "Latency of HTTP requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		HTTPErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_errors_total",
			Help:      "HTTP error responses by route and error kind.",
		}, []string{"route", "error_type"}),
	}

	registry.MustRegister(
		m.ListingsCreatedTotal,
		m.ListingsUpdatedTotal,
		m.ListingsDeletedTotal,
		m.ReviewsPostedTotal,
		m.AssetUploadsTotal,
		m.AssetRemovalsTotal,
		m.OrphanedAssetsTotal,
		m.LiveSubscribers,
		m.HTTPRequestLatency,
		m.HTTPErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Outcome maps an error to the outcome label value.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// StartMetricsServer serves /metrics on port until ctx is cancelled.
func StartMetricsServer(ctx context.Context, port string, appLogger *logger.Logger, registry *prometheus.Registry) error {
	if port == "" {
		appLogger.Info("Prometheus metrics server port not configured, server will not start.")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	appLogger.Info("Prometheus metrics server starting", zap.String("port", port), zap.String("path", "/metrics"))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
