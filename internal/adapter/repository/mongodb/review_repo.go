package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/review/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const reviewCollectionName = "reviews"

// ReviewRepository implements domain.ReviewRepository on MongoDB.
type ReviewRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

func NewReviewRepository(db *mongo.Database, log *logger.Logger) (*ReviewRepository, error) {
	collection := db.Collection(reviewCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Error("Failed to create indexes for reviews collection", zap.Error(err))
	} else {
		log.Info("Successfully ensured indexes for reviews collection")
	}

	return &ReviewRepository{
		collection: collection,
		logger:     log.Named("ReviewRepository"),
	}, nil
}

func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	review.CreatedAt = time.Now().UTC()
	doc := toReviewDocument(review)
	doc.ID = primitive.NewObjectID()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		r.logger.Error("Failed to insert review", zap.String("listing_id", review.ListingID), zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	review.ID = doc.ID.Hex()
	return nil
}

func (r *ReviewRepository) ListByListing(ctx context.Context, listingID string) ([]*domain.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"listing_id": listingID}, opts)
	if err != nil {
		r.logger.Error("Failed to find reviews", zap.String("listing_id", listingID), zap.Error(err))
		return nil, fmt.Errorf("db find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*reviewDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("db cursor all failed: %w", err)
	}
	reviews := make([]*domain.Review, len(docs))
	for i, doc := range docs {
		reviews[i] = doc.toDomain()
	}
	return reviews, nil
}
