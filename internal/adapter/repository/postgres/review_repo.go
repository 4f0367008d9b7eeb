package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/review/domain"
	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reviewsTable = "reviews"

// ReviewRepository implements domain.ReviewRepository on PostgreSQL. Every insert fires the
// review_created notification consumed by ReviewListener.
type ReviewRepository struct {
	sqlDB  *sql.DB
	db     *goqu.Database
	logger *logger.Logger
}

func NewReviewRepository(sqlDB *sql.DB, log *logger.Logger) *ReviewRepository {
	return &ReviewRepository{
		sqlDB:  sqlDB,
		db:     goqu.New("postgres", sqlDB),
		logger: log.Named("PGReviewRepository"),
	}
}

func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	if _, err := uuid.Parse(review.ListingID); err != nil {
		return fmt.Errorf("invalid listing id %q: %w", review.ListingID, err)
	}
	id := uuid.NewString()
	now := time.Now().UTC()

	query, args, err := r.db.Insert(reviewsTable).Rows(goqu.Record{
		"id":         id,
		"listing_id": review.ListingID,
		"user_id":    review.UserID,
		"author":     review.Author,
		"rating":     review.Rating,
		"body":       review.Body,
		"created_at": now,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}
	if _, err := r.sqlDB.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to insert review", zap.String("listing_id", review.ListingID), zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	review.ID = id
	review.CreatedAt = now
	return nil
}

func (r *ReviewRepository) ListByListing(ctx context.Context, listingID string) ([]*domain.Review, error) {
	reviews := []*domain.Review{}
	if _, err := uuid.Parse(listingID); err != nil {
		return reviews, nil
	}

	query, args, err := r.db.Select("id", "listing_id", "user_id", "author", "rating", "body", "created_at").
		From(reviewsTable).
		Where(goqu.Ex{"listing_id": listingID}).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Desc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list reviews", zap.String("listing_id", listingID), zap.Error(err))
		return nil, fmt.Errorf("db select failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rv := &domain.Review{}
		if err := rows.Scan(&rv.ID, &rv.ListingID, &rv.UserID, &rv.Author, &rv.Rating, &rv.Body, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}
