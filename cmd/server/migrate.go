package main

import (
	"context"
	"fmt"
	"time"

	"github.com/2015jtw/campfinder/internal/adapter/repository/postgres"
	"github.com/2015jtw/campfinder/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	appLogger, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer appLogger.Sync() //nolint:errcheck

	if cfg.DBDriver != config.DriverPostgres {
		appLogger.Info("Nothing to migrate: MongoDB indexes are created on startup", zap.String("db_driver", cfg.DBDriver))
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.PostgresDSN, appLogger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	appLogger.Info("PostgreSQL schema is up to date")
	return nil
}
