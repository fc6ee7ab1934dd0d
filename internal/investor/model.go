// Package investor provides the investor preference profile model, its
// intake validation, and data access.
package investor

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/evcraddock/matchmaker/internal/validation"
)

// BudgetType is the unit a budget is expressed in. Listings are assumed to
// be priced in the same unit.
type BudgetType string

const (
	BudgetMonthly  BudgetType = "monthly"
	BudgetAnnual   BudgetType = "annual"
	BudgetPurchase BudgetType = "purchase"
)

// Budget is an inclusive price range.
type Budget struct {
	Min  decimal.Decimal `json:"min" yaml:"min" validate:"gte=0"`
	Max  decimal.Decimal `json:"max" yaml:"max" validate:"gte=0"`
	Type BudgetType      `json:"type" yaml:"type" validate:"oneof=monthly annual purchase"`
}

// Range is an inclusive integer range.
type Range struct {
	Min int `json:"min" yaml:"min" validate:"gte=0"`
	Max int `json:"max" yaml:"max" validate:"gte=0"`
}

// Profile is an investor's stated preferences. Empty PropertyTypes,
// PropertyLicences or Locations mean "no preference".
type Profile struct {
	ID               string    `json:"id" yaml:"id"`
	Name             string    `json:"name,omitempty" yaml:"name"`
	Email            string    `json:"email,omitempty" yaml:"email" validate:"omitempty,email"`
	Budget           Budget    `json:"budget" yaml:"budget"`
	Bedrooms         Range     `json:"bedrooms" yaml:"bedrooms"`
	PropertyTypes    []string  `json:"property_types" yaml:"property_types"`
	PropertyLicences []string  `json:"property_licences" yaml:"property_licences"`
	Locations        []string  `json:"locations" yaml:"locations"`
	OperatorType     string    `json:"operator_type,omitempty" yaml:"operator_type" validate:"max=64"`
	Active           bool      `json:"active" yaml:"active"`
	CreatedAt        time.Time `json:"created_at" yaml:"-"`
	UpdatedAt        time.Time `json:"updated_at" yaml:"-"`
}

var validate = validation.New()

func init() {
	validate.RegisterStructValidation(validateBudget, Budget{})
	validate.RegisterStructValidation(validateRange, Range{})
}

func validateBudget(sl validator.StructLevel) {
	b := sl.Current().Interface().(Budget)
	if b.Min.GreaterThan(b.Max) {
		sl.ReportError(b.Min, "min", "Min", "ltefield", "max")
	}
}

func validateRange(sl validator.StructLevel) {
	r := sl.Current().Interface().(Range)
	if r.Min > r.Max {
		sl.ReportError(r.Min, "min", "Min", "ltefield", "max")
	}
}

// Validate checks a profile before it is written to the store.
func Validate(p *Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	if err := validate.Struct(p); err != nil {
		return validation.Error(err)
	}
	return nil
}

// MaterialChange reports whether moving from old to updated changes any
// scored or filtering preference. Contact details, operator type and the
// active flag are not material.
func MaterialChange(old, updated *Profile) bool {
	if old == nil || updated == nil {
		return old != updated
	}
	if !old.Budget.Min.Equal(updated.Budget.Min) || !old.Budget.Max.Equal(updated.Budget.Max) {
		return true
	}
	if old.Budget.Type != updated.Budget.Type || old.Bedrooms != updated.Bedrooms {
		return true
	}
	return !sameSet(old.PropertyTypes, updated.PropertyTypes) ||
		!sameSet(old.PropertyLicences, updated.PropertyLicences) ||
		!sameSet(old.Locations, updated.Locations)
}

// sameSet compares two preference sets ignoring order, case and blanks.
func sameSet(a, b []string) bool {
	return slices.Equal(canonical(a), canonical(b))
}

func canonical(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
