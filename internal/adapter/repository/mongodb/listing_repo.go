package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2015jtw/campfinder/internal/listing/domain"
	"github.com/2015jtw/campfinder/internal/listing/search"
	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const listingCollectionName = "listings"

// ListingRepository implements domain.ListingRepository on MongoDB.
type ListingRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

func NewListingRepository(db *mongo.Database, log *logger.Logger) (*ListingRepository, error) {
	collection := db.Collection(listingCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Error("Failed to create indexes for listings collection", zap.Error(err))
	} else {
		log.Info("Successfully ensured indexes for listings collection")
	}

	return &ListingRepository{
		collection: collection,
		logger:     log.Named("ListingRepository"),
	}, nil
}

func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	now := time.Now().UTC()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	listing.Version = 1

	doc := toListingDocument(listing)
	doc.ID = primitive.NewObjectID()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		r.logger.Error("Failed to insert listing", zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	listing.ID = doc.ID.Hex()
	r.logger.Debug("Listing inserted", zap.String("listing_id", listing.ID))
	return nil
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.ErrNotFound
	}

	var doc listingDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.ErrNotFound
		}
		r.logger.Error("Failed to get listing", zap.String("listing_id", id), zap.Error(err))
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomain(), nil
}

// Update replaces the editable fields when the stored version matches listing.Version.
func (r *ListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	oid, err := primitive.ObjectIDFromHex(listing.ID)
	if err != nil {
		return apperror.ErrNotFound
	}
	doc := toListingDocument(listing)

	update := bson.M{
		"$set": bson.M{
			"title":       doc.Title,
			"author":      doc.Author,
			"price":       doc.Price,
			"location":    doc.Location,
			"description": doc.Description,
			"images":      doc.Images,
			"updated_at":  doc.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid, "version": listing.Version}, update)
	if err != nil {
		r.logger.Error("Failed to update listing", zap.String("listing_id", listing.ID), zap.Error(err))
		return fmt.Errorf("db update failed: %w", err)
	}
	if result.MatchedCount == 0 {
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return fmt.Errorf("db count failed: %w", err)
		}
		if n == 0 {
			return apperror.ErrNotFound
		}
		r.logger.Warn("Stale listing version", zap.String("listing_id", listing.ID), zap.Int64("version", listing.Version))
		return apperror.ErrConflict
	}
	listing.Version++
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperror.ErrNotFound
	}
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		r.logger.Error("Failed to delete listing", zap.String("listing_id", id), zap.Error(err))
		return fmt.Errorf("db delete failed: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

// Search returns matching listings, newest first.
func (r *ListingRepository) Search(ctx context.Context, filter search.Filter) ([]*domain.Listing, error) {
	query := bson.M{}
	if !filter.IsEmpty() {
		query["title"] = bson.M{"$regex": filter.RegexPattern(), "$options": "i"}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		r.logger.Error("Failed to search listings", zap.String("term", filter.Term), zap.Error(err))
		return nil, fmt.Errorf("db find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("db cursor all failed: %w", err)
	}
	listings := make([]*domain.Listing, len(docs))
	for i, doc := range docs {
		listings[i] = doc.toDomain()
	}
	return listings, nil
}
