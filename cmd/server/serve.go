package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	grpcadapter "github.com/2015jtw/campfinder/internal/adapter/grpc"
	httpadapter "github.com/2015jtw/campfinder/internal/adapter/http"
	natsadapter "github.com/2015jtw/campfinder/internal/adapter/messaging/nats"
	"github.com/2015jtw/campfinder/internal/adapter/repository/cache"
	"github.com/2015jtw/campfinder/internal/adapter/repository/mongodb"
	"github.com/2015jtw/campfinder/internal/adapter/repository/postgres"
	"github.com/2015jtw/campfinder/internal/adapter/storage/gridfs"
	"github.com/2015jtw/campfinder/internal/adapter/storage/s3"
	"github.com/2015jtw/campfinder/internal/config"
	listingdomain "github.com/2015jtw/campfinder/internal/listing/domain"
	listingusecase "github.com/2015jtw/campfinder/internal/listing/usecase"
	"github.com/2015jtw/campfinder/internal/mailer"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/platform/metrics"
	"github.com/2015jtw/campfinder/internal/platform/tracer"
	reviewdomain "github.com/2015jtw/campfinder/internal/review/domain"
	"github.com/2015jtw/campfinder/internal/review/stream"
	reviewusecase "github.com/2015jtw/campfinder/internal/review/usecase"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

// stores groups the persistence backends chosen by configuration.
type stores struct {
	listings    listingdomain.ListingRepository
	reviews     reviewdomain.ReviewRepository
	assets      listingdomain.AssetStore
	assetReader httpadapter.AssetReader
	closers     []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	appLogger, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer appLogger.Sync() //nolint:errcheck
	appLogger.Info("Application starting...")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Tracing
	tp := tracer.InitTracer(cfg.ServiceName, cfg.OTExporterOTLPEndpoint, appLogger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}()

	// 2. Metrics
	mm := metrics.NewMetricsManager(cfg.ServiceName)
	go func() {
		if err := metrics.StartMetricsServer(ctx, cfg.PrometheusMetricsPort, appLogger, mm.Registry); err != nil {
			appLogger.Error("Prometheus metrics server failed", zap.Error(err))
		}
	}()

	// 3. Record and asset stores
	st, err := openStores(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer st.close()

	// 4. Listing read cache
	if cfg.RedisAddress != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisAddress)
		if err != nil {
			appLogger.Warn("Redis unavailable, listing cache disabled", zap.String("address", cfg.RedisAddress), zap.Error(err))
		} else {
			defer redisClient.Close()
			st.listings = cache.NewCachedListingRepository(st.listings, redisClient, cfg.CacheTTL, appLogger)
			appLogger.Info("Listing cache enabled", zap.Duration("ttl", cfg.CacheTTL))
		}
	}

	// 5. Review fan-out and domain events
	hub := stream.NewHub(mm, appLogger)
	var (
		broadcaster reviewusecase.Broadcaster
		publisher   *natsadapter.Publisher
	)
	if cfg.NATSURL != "" {
		conn, err := natsadapter.Connect(cfg.NATSURL, cfg.ServiceName, appLogger)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer natsadapter.Close(conn, appLogger)

		publisher = natsadapter.NewPublisher(conn, appLogger)
		relay, err := natsadapter.NewReviewRelay(conn, hub, appLogger)
		if err != nil {
			return fmt.Errorf("subscribe review relay: %w", err)
		}
		defer relay.Close() //nolint:errcheck
		broadcaster = relay
	} else if cfg.DBDriver == config.DriverPostgres {
		listener, err := postgres.NewReviewListener(cfg.PostgresDSN, hub, appLogger)
		if err != nil {
			return fmt.Errorf("listen for review notifications: %w", err)
		}
		defer listener.Close() //nolint:errcheck
		go listener.Run(ctx)
		broadcaster = listener
	}

	// 6. Use cases
	synchronizer := listingusecase.NewAssetSynchronizer(st.assets, cfg.AssetPrefix, mm, appLogger)
	listingUC := listingusecase.NewListingUsecase(st.listings, synchronizer, cfg.MaxUploadBytes, appLogger).WithMetrics(mm)
	reviewUC := reviewusecase.NewReviewUsecase(st.reviews, listingUC, hub, appLogger).WithMetrics(mm)
	if publisher != nil {
		listingUC.WithEvents(publisher)
		reviewUC.WithEvents(publisher)
	}
	if broadcaster != nil {
		reviewUC.WithBroadcaster(broadcaster)
	}
	if cfg.MailEnabled() {
		listingUC.WithNotifier(mailer.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.NotifyEmail, appLogger))
		appLogger.Info("Listing creation emails enabled", zap.String("notify", cfg.NotifyEmail))
	}

	// 7. HTTP
	routerCfg := httpadapter.RouterConfig{
		Listings:  httpadapter.NewListingHandler(listingUC, cfg.MaxUploadBytes, mm, appLogger),
		Reviews:   httpadapter.NewReviewHandler(reviewUC, mm, appLogger),
		JWTSecret: cfg.JWTSecret,
		Metrics:   mm,
		Logger:    appLogger,
	}
	if st.assetReader != nil {
		routerCfg.Assets = httpadapter.NewAssetHandler(st.assetReader, mm, appLogger)
	}
	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpadapter.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	// 8. gRPC health
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen for gRPC on %s: %w", cfg.GRPCPort, err)
	}
	grpcSrv, healthServer := grpcadapter.NewGRPCServer(appLogger)
	go func() {
		appLogger.Info("Starting gRPC server", zap.String("port", cfg.GRPCPort))
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			appLogger.Error("gRPC server Serve error", zap.Error(err))
		}
	}()
	grpcadapter.SetServing(healthServer, true)

	// 9. Graceful shutdown
	select {
	case <-ctx.Done():
		appLogger.Info("Received shutdown signal")
	case err := <-httpErr:
		appLogger.Error("HTTP server failed", zap.Error(err))
	}

	grpcadapter.SetServing(healthServer, false)
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	appLogger.Info("Application stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (*stores, error) {
	st := &stores{}
	var mongoDB *mongo.Database

	switch cfg.DBDriver {
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect to MongoDB: %w", err)
		}
		st.closers = append(st.closers, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				appLogger.Error("Error disconnecting from MongoDB", zap.Error(err))
			}
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			st.close()
			return nil, fmt.Errorf("ping MongoDB: %w", err)
		}
		appLogger.Info("Successfully connected and pinged MongoDB.")
		mongoDB = client.Database(cfg.MongoDatabase)

		listings, err := mongodb.NewListingRepository(mongoDB, appLogger)
		if err != nil {
			st.close()
			return nil, err
		}
		reviews, err := mongodb.NewReviewRepository(mongoDB, appLogger)
		if err != nil {
			st.close()
			return nil, err
		}
		st.listings, st.reviews = listings, reviews

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN, appLogger)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			st.close()
			return nil, fmt.Errorf("migrate PostgreSQL: %w", err)
		}
		st.listings = postgres.NewListingRepository(db, appLogger)
		st.reviews = postgres.NewReviewRepository(db, appLogger)
	}

	switch cfg.StorageBackend {
	case config.StorageMinIO:
		store, err := s3.NewS3Storage(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket,
			cfg.MinIOUseSSL, cfg.MinIOPublicURL, cfg.AssetPrefix, appLogger)
		if err != nil {
			st.close()
			return nil, err
		}
		st.assets = store
	case config.StorageGridFS:
		store, err := gridfs.NewGridFSStorage(mongoDB, cfg.AssetBaseURL, appLogger)
		if err != nil {
			st.close()
			return nil, err
		}
		st.assets, st.assetReader = store, store
	}

	appLogger.Info("Stores ready", zap.String("db_driver", cfg.DBDriver), zap.String("storage_backend", cfg.StorageBackend))
	return st, nil
}
