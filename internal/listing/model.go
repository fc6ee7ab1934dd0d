// Package listing provides the property listing model and data access.
package listing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evcraddock/matchmaker/internal/validation"
)

// Status represents where a listing is in its publishing lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusAvailable Status = "available"
	StatusRented    Status = "rented"
	StatusArchived  Status = "archived"
)

// ValidStatus returns true if s is a known listing status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusDraft, StatusAvailable, StatusRented, StatusArchived:
		return true
	}
	return false
}

// Listing is a property offered on the marketplace. Price is in the same
// unit as the budget of the investors it is matched against.
type Listing struct {
	ID           string          `json:"id" yaml:"id"`
	Title        string          `json:"title,omitempty" yaml:"title"`
	Price        decimal.Decimal `json:"price" yaml:"price" validate:"gte=0"`
	Bedrooms     int             `json:"bedrooms" yaml:"bedrooms" validate:"gte=0"`
	PropertyType string          `json:"property_type" yaml:"property_type"`
	Licence      string          `json:"licence,omitempty" yaml:"licence"`
	Location     string          `json:"location" yaml:"location"`
	Status       Status          `json:"status" yaml:"status" validate:"oneof=draft available rented archived"`
	CreatedAt    time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time       `json:"updated_at" yaml:"-"`
}

// Available reports whether the listing can be matched.
func (l *Listing) Available() bool {
	return l != nil && l.Status == StatusAvailable
}

var validate = validation.New()

// Validate checks a listing before it is written to the store.
func Validate(l *Listing) error {
	if l == nil {
		return fmt.Errorf("listing is required")
	}
	if err := validate.Struct(l); err != nil {
		return validation.Error(err)
	}
	return nil
}
