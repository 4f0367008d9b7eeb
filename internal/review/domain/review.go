package domain

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/2015jtw/campfinder/internal/platform/apperror"
)

const (
	MinRating = 1
	MaxRating = 5

	MinAuthorLength = 2
	MaxAuthorLength = 50
	MinBodyLength   = 5
	MaxBodyLength   = 500
)

// Review is an immutable comment attached to a listing.
type Review struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	UserID    string    `json:"user_id"`
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NewReview trims and validates the input. ID and CreatedAt are left to the store.
func NewReview(listingID, userID, author string, rating int, body string) (*Review, error) {
	r := &Review{
		ListingID: listingID,
		UserID:    userID,
		Author:    strings.TrimSpace(author),
		Rating:    rating,
		Body:      strings.TrimSpace(body),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Review) Validate() error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return apperror.Invalid("rating", "must be between %d and %d", MinRating, MaxRating)
	}
	if n := utf8.RuneCountInString(r.Author); n < MinAuthorLength || n > MaxAuthorLength {
		return apperror.Invalid("author", "must be %d to %d characters", MinAuthorLength, MaxAuthorLength)
	}
	if n := utf8.RuneCountInString(r.Body); n < MinBodyLength || n > MaxBodyLength {
		return apperror.Invalid("body", "must be %d to %d characters", MinBodyLength, MaxBodyLength)
	}
	return nil
}

// ReviewRepository is append-only.
type ReviewRepository interface {
	// Create assigns ID and CreatedAt.
	Create(ctx context.Context, review *Review) error
	// ListByListing returns reviews newest first.
	ListByListing(ctx context.Context, listingID string) ([]*Review, error)
}
