package domain

import (
	"math"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/2015jtw/campfinder/internal/platform/apperror"
)

const (
	MinTextLength        = 2
	MaxShortTextLength   = 50
	MaxDescriptionLength = 500
)

// ValidateFields checks every create-time field, reporting the first violation.
func ValidateFields(f Fields) error {
	if err := validateText("title", f.Title, MaxShortTextLength); err != nil {
		return err
	}
	if err := validateText("author", f.Author, MaxShortTextLength); err != nil {
		return err
	}
	if err := validatePrice(f.Price); err != nil {
		return err
	}
	if err := validateText("location", f.Location, MaxShortTextLength); err != nil {
		return err
	}
	return validateText("description", f.Description, MaxDescriptionLength)
}

// ValidateUpdate checks only the fields that were supplied.
func ValidateUpdate(u UpdateFields) error {
	if u.Title != nil {
		if err := validateText("title", *u.Title, MaxShortTextLength); err != nil {
			return err
		}
	}
	if u.Author != nil {
		if err := validateText("author", *u.Author, MaxShortTextLength); err != nil {
			return err
		}
	}
	if u.Price != nil {
		if err := validatePrice(*u.Price); err != nil {
			return err
		}
	}
	if u.Location != nil {
		if err := validateText("location", *u.Location, MaxShortTextLength); err != nil {
			return err
		}
	}
	if u.Description != nil {
		if err := validateText("description", *u.Description, MaxDescriptionLength); err != nil {
			return err
		}
	}
	return nil
}

// ValidateImages rejects empty, oversized and non-image files.
func ValidateImages(files []RawFile, maxBytes int64) error {
	for _, f := range files {
		if len(f.Data) == 0 {
			return apperror.Invalid("images", "file %q is empty", f.Name)
		}
		if maxBytes > 0 && int64(len(f.Data)) > maxBytes {
			return apperror.Invalid("images", "file %q exceeds %d bytes", f.Name, maxBytes)
		}
		if ct := http.DetectContentType(f.Data); !strings.HasPrefix(ct, "image/") {
			return apperror.Invalid("images", "file %q is not an image (%s)", f.Name, ct)
		}
	}
	return nil
}

func validateText(field, value string, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < MinTextLength {
		return apperror.Invalid(field, "must be at least %d characters", MinTextLength)
	}
	if n > max {
		return apperror.Invalid(field, "must be at most %d characters", max)
	}
	return nil
}

func validatePrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return apperror.Invalid("price", "must be a number")
	}
	if p < 0 {
		return apperror.Invalid("price", "must not be negative")
	}
	return nil
}
