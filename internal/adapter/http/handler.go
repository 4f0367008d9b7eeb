// Package http exposes the listing and review cores over REST and server-sent events.
package http

import (
	"context"
	"io"
	"time"

	listingdomain "github.com/2015jtw/campfinder/internal/listing/domain"
	reviewdomain "github.com/2015jtw/campfinder/internal/review/domain"
	"github.com/2015jtw/campfinder/internal/review/stream"
)

// ListingService is the subset of the listing use case the transport calls.
type ListingService interface {
	Create(ctx context.Context, ownerID string, fields listingdomain.Fields, files []listingdomain.RawFile) (*listingdomain.Listing, error)
	Update(ctx context.Context, id, requesterID string, fields listingdomain.UpdateFields, files []listingdomain.RawFile, removeURLs []string) (*listingdomain.Listing, error)
	Delete(ctx context.Context, id, requesterID string) error
	Get(ctx context.Context, id string) (*listingdomain.Listing, error)
	Search(ctx context.Context, term string) ([]*listingdomain.Listing, error)
}

// ReviewService is the subset of the review use case the transport calls.
type ReviewService interface {
	Post(ctx context.Context, principalID, listingID, author string, rating int, body string) (*reviewdomain.Review, error)
	Subscribe(listingID string) *stream.Subscription
	ListHistory(ctx context.Context, listingID string) ([]*reviewdomain.Review, error)
}

// AssetReader serves stored images back to clients when the store has no public endpoint of its own.
type AssetReader interface {
	Open(ctx context.Context, path string) (io.ReadCloser, string, int64, error)
}

type listingResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Price       float64   `json:"price"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
}

func toListingResponse(l *listingdomain.Listing) listingResponse {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	return listingResponse{
		ID:          l.ID,
		OwnerID:     l.OwnerID,
		Title:       l.Title,
		Author:      l.Author,
		Price:       l.Price,
		Location:    l.Location,
		Description: l.Description,
		Images:      images,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
		Version:     l.Version,
	}
}
