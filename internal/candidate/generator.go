// Package candidate enumerates the opposite-side records eligible to be
// scored against an investor or a listing.
package candidate

import (
	"context"
	"fmt"

	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/listing"
	"github.com/evcraddock/matchmaker/internal/scoring"
)

// Store supplies the candidate sets. Each call must return the full set or
// an error; partial results are never used.
type Store interface {
	ListActive(ctx context.Context) ([]*investor.Profile, error)
	ListAvailable(ctx context.Context) ([]*listing.Listing, error)
}

// Pair is one investor/listing combination that passed the hard filters.
type Pair struct {
	Investor *investor.Profile
	Listing  *listing.Listing
}

// Generator applies eligibility rules before scoring.
type Generator struct {
	store Store
}

// NewGenerator creates a candidate generator over the given store.
func NewGenerator(store Store) *Generator {
	return &Generator{store: store}
}

// ForListing returns a pair for every active investor whose licence
// requirements the listing satisfies. Listings that are not available have
// no candidates.
func (g *Generator) ForListing(ctx context.Context, l *listing.Listing) ([]Pair, error) {
	if !l.Available() {
		return nil, nil
	}

	investors, err := g.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching active investors: %w", err)
	}

	pairs := make([]Pair, 0, len(investors))
	for _, inv := range investors {
		if Eligible(inv, l) {
			pairs = append(pairs, Pair{Investor: inv, Listing: l})
		}
	}
	return pairs, nil
}

// ForInvestor returns a pair for every available listing that satisfies the
// investor's licence requirements. Inactive investors have no candidates.
func (g *Generator) ForInvestor(ctx context.Context, inv *investor.Profile) ([]Pair, error) {
	if inv == nil || !inv.Active {
		return nil, nil
	}

	listings, err := g.store.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching available listings: %w", err)
	}

	pairs := make([]Pair, 0, len(listings))
	for _, l := range listings {
		if Eligible(inv, l) {
			pairs = append(pairs, Pair{Investor: inv, Listing: l})
		}
	}
	return pairs, nil
}

// Eligible applies the hard gates: the investor is active, the listing is
// available, and a non-empty licence preference contains the listing's
// licence.
func Eligible(inv *investor.Profile, l *listing.Listing) bool {
	if inv == nil || !inv.Active || !l.Available() {
		return false
	}
	return scoring.LicenceAllowed(inv.PropertyLicences, l.Licence)
}
