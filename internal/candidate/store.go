package candidate

import (
	"context"

	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/listing"
)

// RepositoryStore adapts the investor and listing repositories to Store.
type RepositoryStore struct {
	Investors *investor.Repository
	Listings  *listing.Repository
}

// ListActive returns all active investor profiles.
func (s RepositoryStore) ListActive(ctx context.Context) ([]*investor.Profile, error) {
	return s.Investors.ListActive(ctx)
}

// ListAvailable returns all available listings.
func (s RepositoryStore) ListAvailable(ctx context.Context) ([]*listing.Listing, error) {
	return s.Listings.ListAvailable(ctx)
}
