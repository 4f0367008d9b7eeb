package domain

import (
	"context"

	"github.com/2015jtw/campfinder/internal/listing/search"
)

// ListingRepository is the persistent record store for listings.
// Missing ids are reported as apperror.ErrNotFound.
type ListingRepository interface {
	// Create assigns ID, CreatedAt, UpdatedAt and Version.
	Create(ctx context.Context, listing *Listing) error
	FindByID(ctx context.Context, id string) (*Listing, error)
	// Update commits listing only if the stored version still equals listing.Version,
	// otherwise it returns apperror.ErrConflict. On success listing.Version is incremented.
	Update(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, filter search.Filter) ([]*Listing, error)
}

// AssetStore is a durable object store holding listing images.
type AssetStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	// Remove deletes every path in one call. A non-nil error means the batch as a whole failed.
	Remove(ctx context.Context, paths []string) error
	PublicURL(path string) string
	// PathFromURL maps a URL produced by this store back to its object path.
	PathFromURL(url string) (string, bool)
}
