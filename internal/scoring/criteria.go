// Package scoring implements the per-dimension criterion scorers and the
// weighted aggregate used to rank investor/property matches.
//
// Every scorer is pure and total: it returns an integer in [0, 100] for any
// input, treating inverted ranges (min > max) as "no preference".
package scoring

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxScore is the score of a perfect match on a dimension.
const MaxScore = 100

// BedroomPenalty is the score lost per bedroom outside the preferred range.
const BedroomPenalty = 25

var (
	two     = decimal.NewFromInt(2)
	tenth   = decimal.New(1, -1)
	hundred = decimal.NewFromInt(MaxScore)
)

// PriceScore scores a listing price against a budget range.
//
// Inside [min, max] the score is 100. Outside, it decays linearly and reaches
// 0 at half the range's width beyond the nearest bound, rounding down. A zero-width range
// uses 10% of the budget as its half width.
func PriceScore(min, max, price decimal.Decimal) int {
	if min.GreaterThan(max) {
		return MaxScore
	}
	if price.GreaterThanOrEqual(min) && price.LessThanOrEqual(max) {
		return MaxScore
	}

	halfRange := max.Sub(min).Div(two)
	if halfRange.IsZero() {
		halfRange = min.Add(max).Div(two).Mul(tenth)
	}
	if !halfRange.IsPositive() {
		return 0
	}

	var distance decimal.Decimal
	if price.LessThan(min) {
		distance = min.Sub(price)
	} else {
		distance = price.Sub(max)
	}

	// Floor keeps any out-of-range price strictly below MaxScore.
	score := hundred.Sub(hundred.Mul(distance).Div(halfRange)).Floor()
	if !score.IsPositive() {
		return 0
	}
	return clamp(int(score.IntPart()))
}

// BedroomsScore scores a bedroom count against an inclusive range, losing
// BedroomPenalty points per bedroom of distance from the nearest bound.
func BedroomsScore(min, max, bedrooms int) int {
	if min > max {
		return MaxScore
	}

	var distance int
	switch {
	case bedrooms < min:
		distance = min - bedrooms
	case bedrooms > max:
		distance = bedrooms - max
	}

	return clamp(MaxScore - BedroomPenalty*distance)
}

// TypeScore is a categorical match: 100 when the preference set is empty or
// contains the listing type, 0 otherwise.
func TypeScore(preferred []string, propertyType string) int {
	if !hasPreference(preferred) {
		return MaxScore
	}

	want := normalize(propertyType)
	for _, p := range preferred {
		if normalize(p) == want && want != "" {
			return MaxScore
		}
	}
	return 0
}

// LocationScore matches free-text locations case-insensitively. A preferred
// location matches when either string contains the other, so a "London"
// preference matches an "East London" listing.
func LocationScore(preferred []string, location string) int {
	if !hasPreference(preferred) {
		return MaxScore
	}

	loc := normalize(location)
	if loc == "" {
		return 0
	}
	for _, p := range preferred {
		pref := normalize(p)
		if pref == "" {
			continue
		}
		if strings.Contains(pref, loc) || strings.Contains(loc, pref) {
			return MaxScore
		}
	}
	return 0
}

// LicenceAllowed reports whether a listing licence satisfies a licence
// preference. An empty preference allows everything, including unlicensed
// listings.
func LicenceAllowed(preferred []string, licence string) bool {
	if !hasPreference(preferred) {
		return true
	}

	have := normalize(licence)
	if have == "" {
		return false
	}
	for _, p := range preferred {
		if normalize(p) == have {
			return true
		}
	}
	return false
}

// hasPreference reports whether a preference set holds any non-blank entry.
func hasPreference(values []string) bool {
	for _, v := range values {
		if normalize(v) != "" {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
