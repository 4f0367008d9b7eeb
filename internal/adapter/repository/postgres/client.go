package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/2015jtw/campfinder/internal/platform/logger"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string, log *logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	log.Info("Successfully connected to PostgreSQL", zap.Int("max_open_conns", 25))
	return db, nil
}
