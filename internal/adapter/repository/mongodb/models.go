package mongodb

import (
	"time"

	listingdomain "github.com/2015jtw/campfinder/internal/listing/domain"
	reviewdomain "github.com/2015jtw/campfinder/internal/review/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type listingDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID     string             `bson:"owner_id"`
	Title       string             `bson:"title"`
	Author      string             `bson:"author"`
	Price       float64            `bson:"price"`
	Location    string             `bson:"location"`
	Description string             `bson:"description"`
	Images      []string           `bson:"images"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
	Version     int64              `bson:"version"`
}

type reviewDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ListingID string             `bson:"listing_id"`
	UserID    string             `bson:"user_id"`
	Author    string             `bson:"author"`
	Rating    int                `bson:"rating"`
	Body      string             `bson:"body"`
	CreatedAt time.Time          `bson:"created_at"`
}

func toListingDocument(l *listingdomain.Listing) *listingDocument {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	return &listingDocument{
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

func (d *listingDocument) toDomain() *listingdomain.Listing {
	return &listingdomain.Listing{
		ID:          d.ID.Hex(),
		OwnerID:     d.OwnerID,
		Title:       d.Title,
		Author:      d.Author,
		Price:       d.Price,
		Location:    d.Location,
		Description: d.Description,
		Images:      d.Images,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		Version:     d.Version,
	}
}

func toReviewDocument(r *reviewdomain.Review) *reviewDocument {
	return &reviewDocument{
		ListingID: r.ListingID,
		UserID:    r.UserID,
		Author:    r.Author,
		Rating:    r.Rating,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
	}
}

func (d *reviewDocument) toDomain() *reviewdomain.Review {
	return &reviewdomain.Review{
		ID:        d.ID.Hex(),
		ListingID: d.ListingID,
		UserID:    d.UserID,
		Author:    d.Author,
		Rating:    d.Rating,
		Body:      d.Body,
		CreatedAt: d.CreatedAt,
	}
}
