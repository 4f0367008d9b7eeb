package main

import (
	"fmt"
	"os"

	"github.com/2015jtw/campfinder/internal/config"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "campfinder",
	Short:         "Campground listings and live reviews service",
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, gRPC and metrics servers",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the PostgreSQL schema (DB_DRIVER=postgres only)",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "campfinder:", err)
		os.Exit(1)
	}
}

// bootstrap loads .env, then builds the logger and configuration.
func bootstrap() (*logger.Logger, *config.Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("INFO: .env file not found or error loading: %v. Relying on OS environment variables.\n", err)
	}

	appLogger := logger.NewLogger()
	cfg, err := config.LoadConfig(appLogger)
	if err != nil {
		appLogger.Error("Failed to load configuration", zap.Error(err))
		return nil, nil, err
	}
	appLogger = appLogger.With(zap.String("service_name", cfg.ServiceName))
	return appLogger, cfg, nil
}
