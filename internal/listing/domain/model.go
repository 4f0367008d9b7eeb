package domain

import "time"

// Listing is a campground record owned by the principal that created it.
type Listing struct {
	ID          string
	OwnerID     string
	Title       string
	Author      string
	Price       float64
	Location    string
	Description string
	Images      []string // display order
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// Version is bumped on every committed update; stores reject an update whose Version is stale.
	Version int64
}

// Fields are the user-editable attributes supplied on create.
type Fields struct {
	Title       string
	Author      string
	Price       float64
	Location    string
	Description string
}

// UpdateFields carries optional replacements; nil means keep the stored value.
type UpdateFields struct {
	Title       *string
	Author      *string
	Price       *float64
	Location    *string
	Description *string
}

// IsZero reports whether no field was supplied.
func (u UpdateFields) IsZero() bool {
	return u.Title == nil && u.Author == nil && u.Price == nil && u.Location == nil && u.Description == nil
}

// ApplyTo merges the supplied fields onto l.
func (u UpdateFields) ApplyTo(l *Listing) {
	if u.Title != nil {
		l.Title = *u.Title
	}
	if u.Author != nil {
		l.Author = *u.Author
	}
	if u.Price != nil {
		l.Price = *u.Price
	}
	if u.Location != nil {
		l.Location = *u.Location
	}
	if u.Description != nil {
		l.Description = *u.Description
	}
}

// RawFile is an image as received from the client, before it is stored.
type RawFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Clone returns a deep copy so callers can mutate the result without touching cached or stored state.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := *l
	if l.Images != nil {
		c.Images = append([]string(nil), l.Images...)
	}
	return &c
}
