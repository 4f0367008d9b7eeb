package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/2015jtw/campfinder/internal/listing/domain"
	"github.com/2015jtw/campfinder/internal/listing/search"
	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const listingsTable = "listings"

var listingColumns = []interface{}{
	"id", "owner_id", "title", "author", "price", "location", "description",
	"images", "created_at", "updated_at", "version",
}

// ListingRepository implements domain.ListingRepository on PostgreSQL.
type ListingRepository struct {
	sqlDB  *sql.DB
	db     *goqu.Database
	logger *logger.Logger
}

func NewListingRepository(sqlDB *sql.DB, log *logger.Logger) *ListingRepository {
	return &ListingRepository{
		sqlDB:  sqlDB,
		db:     goqu.New("postgres", sqlDB),
		logger: log.Named("PGListingRepository"),
	}
}

func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	now := time.Now().UTC()
	id := uuid.NewString()
	images := listing.Images
	if images == nil {
		images = []string{}
	}

	query, args, err := r.db.Insert(listingsTable).Rows(goqu.Record{
		"id":          id,
		"owner_id":    listing.OwnerID,
		"title":       listing.Title,
		"author":      listing.Author,
		"price":       listing.Price,
		"location":    listing.Location,
		"description": listing.Description,
		"images":      pq.Array(images),
		"created_at":  now,
		"updated_at":  now,
		"version":     1,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}
	if _, err := r.sqlDB.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to insert listing", zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}

	listing.ID = id
	listing.CreatedAt, listing.UpdatedAt, listing.Version = now, now, 1
	return nil
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.ErrNotFound
	}
	query, args, err := r.db.Select(listingColumns...).From(listingsTable).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	l, err := scanListing(r.sqlDB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get listing", zap.String("listing_id", id), zap.Error(err))
		return nil, fmt.Errorf("db select failed: %w", err)
	}
	return l, nil
}

// Update is conditional on the stored version; the row lock taken by UPDATE serializes racing writers.
func (r *ListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	if _, err := uuid.Parse(listing.ID); err != nil {
		return apperror.ErrNotFound
	}
	images := listing.Images
	if images == nil {
		images = []string{}
	}

	query, args, err := r.db.Update(listingsTable).Set(goqu.Record{
		"title":       listing.Title,
		"author":      listing.Author,
		"price":       listing.Price,
		"location":    listing.Location,
		"description": listing.Description,
		"images":      pq.Array(images),
		"updated_at":  listing.UpdatedAt,
		"version":     goqu.L("version + 1"),
	}).Where(goqu.Ex{"id": listing.ID, "version": listing.Version}).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := r.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update listing", zap.String("listing_id", listing.ID), zap.Error(err))
		return fmt.Errorf("db update failed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.FindByID(ctx, listing.ID); err != nil {
			return err
		}
		return apperror.ErrConflict
	}
	listing.Version++
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.ErrNotFound
	}
	query, args, err := r.db.Delete(listingsTable).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	result, err := r.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to delete listing", zap.String("listing_id", id), zap.Error(err))
		return fmt.Errorf("db delete failed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *ListingRepository) Search(ctx context.Context, filter search.Filter) ([]*domain.Listing, error) {
	query, args, err := r.searchQuery(filter).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := r.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to search listings", zap.String("term", filter.Term), zap.Error(err))
		return nil, fmt.Errorf("db select failed: %w", err)
	}
	defer rows.Close()

	listings := []*domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (r *ListingRepository) searchQuery(filter search.Filter) *goqu.SelectDataset {
	ds := r.db.Select(listingColumns...).From(listingsTable)
	if !filter.IsEmpty() {
		ds = ds.Where(goqu.I("title").ILike(filter.LikePattern()))
	}
	return ds.Order(goqu.I("created_at").Desc())
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	l := &domain.Listing{}
	err := row.Scan(
		&l.ID,
		&l.OwnerID,
		&l.Title,
		&l.Author,
		&l.Price,
		&l.Location,
		&l.Description,
		pq.Array(&l.Images),
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.Version,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}
