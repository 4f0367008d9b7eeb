package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/2015jtw/campfinder/internal/listing/domain"
	"github.com/2015jtw/campfinder/internal/listing/search"
	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/platform/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("campfinder/listing-usecase")

const (
	SubjectListingCreated = "listing.created"
	SubjectListingUpdated = "listing.updated"
	SubjectListingDeleted = "listing.deleted"
)

// EventPublisher delivers domain events. Failures are logged and never fail the operation.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// Notifier is told about newly created listings.
type Notifier interface {
	SendListingCreatedEmail(listing *domain.Listing) error
}

// ListingUsecase owns the listing lifecycle: ownership checks, validation, image
// synchronization and the final record commit.
type ListingUsecase struct {
	repo           domain.ListingRepository
	assets         *AssetSynchronizer
	maxUploadBytes int64

	events   EventPublisher
	notifier Notifier
	metrics  *metrics.MetricsManager
	logger   *logger.Logger
}

func NewListingUsecase(repo domain.ListingRepository, assets *AssetSynchronizer, maxUploadBytes int64, log *logger.Logger) *ListingUsecase {
	return &ListingUsecase{
		repo:           repo,
		assets:         assets,
		maxUploadBytes: maxUploadBytes,
		logger:         log.Named("ListingUsecase"),
	}
}

func (uc *ListingUsecase) WithEvents(p EventPublisher) *ListingUsecase {
	uc.events = p
	return uc
}

func (uc *ListingUsecase) WithNotifier(n Notifier) *ListingUsecase {
	uc.notifier = n
	return uc
}

func (uc *ListingUsecase) WithMetrics(m *metrics.MetricsManager) *ListingUsecase {
	uc.metrics = m
	return uc
}

// Create stores a new listing owned by ownerID. Nothing is persisted if an upload fails.
func (uc *ListingUsecase) Create(ctx context.Context, ownerID string, fields domain.Fields, files []domain.RawFile) (*domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "ListingUsecase.Create", trace.WithAttributes(attribute.String("owner_id", ownerID)))
	defer span.End()

	if ownerID == "" {
		return nil, apperror.ErrUnauthenticated
	}
	fields = normalizeFields(fields)
	if err := domain.ValidateFields(fields); err != nil {
		return nil, err
	}
	if err := domain.ValidateImages(files, uc.maxUploadBytes); err != nil {
		return nil, err
	}

	images, err := uc.assets.Sync(ctx, SyncRequest{OwnerID: ownerID, Add: files})
	if err != nil {
		uc.logger.Error("Failed to store listing images", zap.String("owner_id", ownerID), zap.Error(err))
		recordSpanError(span, err)
		return nil, err
	}

	listing := &domain.Listing{
		OwnerID:     ownerID,
		Title:       fields.Title,
		Author:      fields.Author,
		Price:       fields.Price,
		Location:    fields.Location,
		Description: fields.Description,
		Images:      images,
	}
	if err := uc.repo.Create(ctx, listing); err != nil {
		uc.logger.Error("Failed to save listing", zap.String("owner_id", ownerID), zap.Error(err))
		uc.discardUploads(ctx, images)
		recordSpanError(span, err)
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.ListingsCreatedTotal.Inc()
	}
	uc.publish(ctx, SubjectListingCreated, listing)
	if uc.notifier != nil {
		if err := uc.notifier.SendListingCreatedEmail(listing); err != nil {
			uc.logger.Warn("Failed to send listing created email", zap.String("listing_id", listing.ID), zap.Error(err))
		}
	}

	uc.logger.Info("Listing created", zap.String("listing_id", listing.ID), zap.Int("images", len(listing.Images)))
	return listing, nil
}

// Update applies field changes and image additions/removals as one unit. When storage fails the
// stored record is returned untouched alongside the error.
func (uc *ListingUsecase) Update(ctx context.Context, id, requesterID string, fields domain.UpdateFields, files []domain.RawFile, removeURLs []string) (*domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "ListingUsecase.Update", trace.WithAttributes(
		attribute.String("listing_id", id),
		attribute.String("requester_id", requesterID),
	))
	defer span.End()

	if requesterID == "" {
		return nil, apperror.ErrUnauthenticated
	}
	existing, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != requesterID {
		uc.logger.Warn("Forbidden listing update",
			zap.String("listing_id", id), zap.String("owner_id", existing.OwnerID), zap.String("requester_id", requesterID))
		return nil, apperror.ErrForbidden
	}

	fields = normalizeUpdate(fields)
	if err := domain.ValidateUpdate(fields); err != nil {
		return nil, err
	}
	if err := domain.ValidateImages(files, uc.maxUploadBytes); err != nil {
		return nil, err
	}
	if fields.IsZero() && len(files) == 0 && len(removeURLs) == 0 {
		return existing, nil
	}

	images := existing.Images
	if len(files) > 0 || len(removeURLs) > 0 {
		images, err = uc.assets.Sync(ctx, SyncRequest{
			OwnerID: existing.OwnerID,
			Current: existing.Images,
			Add:     files,
			Remove:  removeURLs,
		})
		if err != nil {
			uc.logger.Error("Image sync failed, listing left unchanged", zap.String("listing_id", id), zap.Error(err))
			recordSpanError(span, err)
			return existing, err
		}
	}

	updated := existing.Clone()
	fields.ApplyTo(updated)
	updated.Images = images
	updated.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, updated); err != nil {
		uc.logger.Error("Failed to commit listing update", zap.String("listing_id", id), zap.Error(err))
		uc.discardUploads(ctx, added(existing.Images, images))
		recordSpanError(span, err)
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.ListingsUpdatedTotal.Inc()
	}
	uc.publish(ctx, SubjectListingUpdated, updated)
	uc.logger.Info("Listing updated", zap.String("listing_id", id), zap.Int("images", len(updated.Images)))
	return updated, nil
}

// Delete removes the listing. Image cleanup is best-effort: a storage failure is logged and the
// record is deleted anyway.
func (uc *ListingUsecase) Delete(ctx context.Context, id, requesterID string) error {
	ctx, span := tracer.Start(ctx, "ListingUsecase.Delete", trace.WithAttributes(
		attribute.String("listing_id", id),
		attribute.String("requester_id", requesterID),
	))
	defer span.End()

	if requesterID == "" {
		return apperror.ErrUnauthenticated
	}
	existing, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.OwnerID != requesterID {
		uc.logger.Warn("Forbidden listing delete",
			zap.String("listing_id", id), zap.String("owner_id", existing.OwnerID), zap.String("requester_id", requesterID))
		return apperror.ErrForbidden
	}

	if err := uc.assets.RemoveURLs(ctx, existing.Images); err != nil {
		uc.logger.Error("Failed to remove listing images, deleting record anyway",
			zap.String("listing_id", id), zap.Strings("images", existing.Images), zap.Error(err))
		if uc.metrics != nil {
			uc.metrics.OrphanedAssetsTotal.Add(float64(len(existing.Images)))
		}
	}

	if err := uc.repo.Delete(ctx, id); err != nil {
		uc.logger.Error("Failed to delete listing", zap.String("listing_id", id), zap.Error(err))
		recordSpanError(span, err)
		return err
	}

	if uc.metrics != nil {
		uc.metrics.ListingsDeletedTotal.Inc()
	}
	uc.publish(ctx, SubjectListingDeleted, existing)
	uc.logger.Info("Listing deleted", zap.String("listing_id", id))
	return nil
}

func (uc *ListingUsecase) Get(ctx context.Context, id string) (*domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "ListingUsecase.Get", trace.WithAttributes(attribute.String("listing_id", id)))
	defer span.End()
	return uc.repo.FindByID(ctx, id)
}

// Search returns every listing when term is blank, otherwise those whose title contains it.
func (uc *ListingUsecase) Search(ctx context.Context, term string) ([]*domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "ListingUsecase.Search", trace.WithAttributes(attribute.String("term", term)))
	defer span.End()

	listings, err := uc.repo.Search(ctx, search.NewTitleFilter(term))
	if err != nil {
		uc.logger.Error("Failed to search listings", zap.String("term", term), zap.Error(err))
		recordSpanError(span, err)
		return nil, err
	}
	return listings, nil
}

// Exists reports whether id references a listing.
func (uc *ListingUsecase) Exists(ctx context.Context, id string) (bool, error) {
	_, err := uc.repo.FindByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (uc *ListingUsecase) publish(ctx context.Context, subject string, l *domain.Listing) {
	if uc.events == nil {
		return
	}
	event := map[string]interface{}{
		"listing_id": l.ID,
		"owner_id":   l.OwnerID,
		"title":      l.Title,
		"images":     l.Images,
		"version":    l.Version,
		"at":         time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := uc.events.Publish(ctx, subject, event); err != nil {
		uc.logger.Warn("Failed to publish listing event", zap.String("subject", subject), zap.String("listing_id", l.ID), zap.Error(err))
	}
}

// discardUploads removes objects uploaded for a commit that did not happen.
func (uc *ListingUsecase) discardUploads(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}
	if err := uc.assets.RemoveURLs(ctx, urls); err != nil {
		uc.logger.Warn("Failed to discard uploaded images", zap.Strings("images", urls), zap.Error(err))
		if uc.metrics != nil {
			uc.metrics.OrphanedAssetsTotal.Add(float64(len(urls)))
		}
	}
}

func added(before, after []string) []string {
	prev := make(map[string]struct{}, len(before))
	for _, u := range before {
		prev[u] = struct{}{}
	}
	var out []string
	for _, u := range after {
		if _, ok := prev[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}

func normalizeFields(f domain.Fields) domain.Fields {
	f.Title = strings.TrimSpace(f.Title)
	f.Author = strings.TrimSpace(f.Author)
	f.Location = strings.TrimSpace(f.Location)
	f.Description = strings.TrimSpace(f.Description)
	return f
}

func normalizeUpdate(u domain.UpdateFields) domain.UpdateFields {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		t := strings.TrimSpace(*s)
		return &t
	}
	u.Title = trim(u.Title)
	u.Author = trim(u.Author)
	u.Location = trim(u.Location)
	u.Description = trim(u.Description)
	return u
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
