package usecase

import (
	"context"
	"time"

	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/platform/metrics"
	"github.com/2015jtw/campfinder/internal/review/domain"
	"github.com/2015jtw/campfinder/internal/review/stream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("campfinder/review-usecase")

const SubjectReviewCreated = "review.created"

// ListingChecker tells whether a listing exists.
type ListingChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Broadcaster pushes a stored review to live subscribers, possibly on other instances.
type Broadcaster interface {
	Publish(ctx context.Context, review *domain.Review) error
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// ReviewUsecase implements the append-and-broadcast review stream.
type ReviewUsecase struct {
	repo        domain.ReviewRepository
	listings    ListingChecker
	hub         *stream.Hub
	broadcaster Broadcaster
	events      EventPublisher
	metrics     *metrics.MetricsManager
	logger      *logger.Logger
}

// NewReviewUsecase wires the hub as the broadcaster; use WithBroadcaster to relay through a bus instead.
func NewReviewUsecase(repo domain.ReviewRepository, listings ListingChecker, hub *stream.Hub, log *logger.Logger) *ReviewUsecase {
	return &ReviewUsecase{
		repo:        repo,
		listings:    listings,
		hub:         hub,
		broadcaster: hub,
		logger:      log.Named("ReviewUsecase"),
	}
}

func (uc *ReviewUsecase) WithBroadcaster(b Broadcaster) *ReviewUsecase {
	uc.broadcaster = b
	return uc
}

func (uc *ReviewUsecase) WithEvents(p EventPublisher) *ReviewUsecase {
	uc.events = p
	return uc
}

func (uc *ReviewUsecase) WithMetrics(m *metrics.MetricsManager) *ReviewUsecase {
	uc.metrics = m
	return uc
}

// Post stores a review from principalID and broadcasts it. Any principal may review any listing.
func (uc *ReviewUsecase) Post(ctx context.Context, principalID, listingID, author string, rating int, body string) (*domain.Review, error) {
	ctx, span := tracer.Start(ctx, "ReviewUsecase.Post", trace.WithAttributes(
		attribute.String("listing_id", listingID),
		attribute.Int("rating", rating),
	))
	defer span.End()

	if principalID == "" {
		return nil, apperror.ErrUnauthenticated
	}
	review, err := domain.NewReview(listingID, principalID, author, rating, body)
	if err != nil {
		return nil, err
	}

	exists, err := uc.listings.Exists(ctx, listingID)
	if err != nil {
		uc.logger.Error("Failed to check listing", zap.String("listing_id", listingID), zap.Error(err))
		span.RecordError(err)
		return nil, err
	}
	if !exists {
		return nil, apperror.ErrNotFound
	}

	if err := uc.repo.Create(ctx, review); err != nil {
		uc.logger.Error("Failed to save review", zap.String("listing_id", listingID), zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.ReviewsPostedTotal.Inc()
	}
	if err := uc.broadcaster.Publish(ctx, review); err != nil {
		uc.logger.Warn("Failed to broadcast review", zap.String("review_id", review.ID), zap.Error(err))
	}
	if uc.events != nil {
		event := map[string]interface{}{
			"review_id":  review.ID,
			"listing_id": review.ListingID,
			"user_id":    review.UserID,
			"rating":     review.Rating,
			"created_at": review.CreatedAt.Format(time.RFC3339Nano),
		}
		if err := uc.events.Publish(ctx, SubjectReviewCreated, event); err != nil {
			uc.logger.Warn("Failed to publish review.created event", zap.String("review_id", review.ID), zap.Error(err))
		}
	}

	uc.logger.Info("Review posted", zap.String("review_id", review.ID), zap.String("listing_id", listingID))
	return review, nil
}

// Subscribe opens a live feed of reviews posted to listingID after this call.
// History is fetched separately with ListHistory; callers de-duplicate by id.
func (uc *ReviewUsecase) Subscribe(listingID string) *stream.Subscription {
	return uc.hub.Subscribe(listingID)
}

// ListHistory returns the listing's reviews, newest first.
func (uc *ReviewUsecase) ListHistory(ctx context.Context, listingID string) ([]*domain.Review, error) {
	ctx, span := tracer.Start(ctx, "ReviewUsecase.ListHistory", trace.WithAttributes(attribute.String("listing_id", listingID)))
	defer span.End()

	reviews, err := uc.repo.ListByListing(ctx, listingID)
	if err != nil {
		uc.logger.Error("Failed to list reviews", zap.String("listing_id", listingID), zap.Error(err))
		span.RecordError(err)
		return nil, err
	}
	return reviews, nil
}
