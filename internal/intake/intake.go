// Package intake validates and stores investor profiles and listings, and
// fires the match triggers that follow a write.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/ledger"
	"github.com/evcraddock/matchmaker/internal/listing"
	"github.com/evcraddock/matchmaker/internal/notify"
)

// ErrInvalid marks input rejected by validation.
var ErrInvalid = errors.New("invalid input")

// Notifier runs the notification workflow for a changed record.
type Notifier interface {
	NotifyListing(ctx context.Context, l *listing.Listing) (notify.Summary, error)
	NotifyInvestor(ctx context.Context, inv *investor.Profile) (notify.Summary, error)
}

// TriggerError reports that a write succeeded but the notification run
// that followed it failed. The run can be retried by re-triggering.
type TriggerError struct {
	Err error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("notification trigger failed: %v", e.Err)
}

func (e *TriggerError) Unwrap() error {
	return e.Err
}

// InvestorResult is the outcome of an investor write.
type InvestorResult struct {
	Investor *investor.Profile `json:"investor"`
	// Reset is the number of ledger records dropped by a material change.
	Reset   int64           `json:"ledger_reset"`
	Summary *notify.Summary `json:"notifications,omitempty"`
}

// ListingResult is the outcome of a listing write.
type ListingResult struct {
	Listing *listing.Listing `json:"listing"`
	Summary *notify.Summary  `json:"notifications,omitempty"`
}

// Service handles profile and listing writes.
type Service struct {
	investors *investor.Repository
	listings  *listing.Repository
	ledger    ledger.Store
	notifier  Notifier
}

// NewService creates an intake service. A nil notifier stores records
// without triggering notifications.
func NewService(investors *investor.Repository, listings *listing.Repository, store ledger.Store, notifier Notifier) *Service {
	return &Service{
		investors: investors,
		listings:  listings,
		ledger:    store,
		notifier:  notifier,
	}
}

// PutInvestor validates and stores a profile. A material preference change
// clears the investor's notification history so every listing is
// reconsidered. Active profiles are then matched against available
// listings.
func (s *Service) PutInvestor(ctx context.Context, p *investor.Profile) (*InvestorResult, error) {
	if p != nil && p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := investor.Validate(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	old, err := s.investors.GetByID(ctx, p.ID)
	if err != nil && !errors.Is(err, investor.ErrNotFound) {
		return nil, err
	}

	stored, err := s.investors.Upsert(ctx, p)
	if err != nil {
		return nil, err
	}
	result := &InvestorResult{Investor: stored}

	if old != nil && investor.MaterialChange(old, stored) {
		n, err := s.ledger.ResetInvestor(ctx, stored.ID)
		if err != nil {
			return result, fmt.Errorf("resetting ledger for %s: %w", stored.ID, err)
		}
		result.Reset = n
		slog.InfoContext(ctx, "investor preferences changed", "investor_id", stored.ID, "records_reset", n)
	}

	if stored.Active && s.notifier != nil {
		summary, err := s.notifier.NotifyInvestor(ctx, stored)
		if err != nil {
			return result, &TriggerError{Err: err}
		}
		result.Summary = &summary
	}

	return result, nil
}

// PutListing validates and stores a listing. Available listings are then
// matched against active investors. An empty status is stored as draft.
func (s *Service) PutListing(ctx context.Context, l *listing.Listing) (*ListingResult, error) {
	if l != nil {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.Status == "" {
			l.Status = listing.StatusDraft
		}
	}
	if err := listing.Validate(l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	stored, err := s.listings.Upsert(ctx, l)
	if err != nil {
		return nil, err
	}
	return s.afterListingWrite(ctx, stored)
}

// SetListingStatus moves a listing through its lifecycle. Becoming
// available triggers a notification run.
func (s *Service) SetListingStatus(ctx context.Context, id string, status listing.Status) (*ListingResult, error) {
	if !listing.ValidStatus(string(status)) {
		return nil, fmt.Errorf("%w: unknown listing status %q", ErrInvalid, status)
	}
	if err := s.listings.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	stored, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.afterListingWrite(ctx, stored)
}

func (s *Service) afterListingWrite(ctx context.Context, l *listing.Listing) (*ListingResult, error) {
	result := &ListingResult{Listing: l}
	if !l.Available() || s.notifier == nil {
		return result, nil
	}

	summary, err := s.notifier.NotifyListing(ctx, l)
	if err != nil {
		return result, &TriggerError{Err: err}
	}
	result.Summary = &summary
	return result, nil
}

// ListingChanged re-runs notifications for a stored listing. Listings that
// are not available produce an empty summary.
func (s *Service) ListingChanged(ctx context.Context, id string) (notify.Summary, error) {
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return notify.Summary{}, err
	}
	if !l.Available() || s.notifier == nil {
		return notify.Summary{}, nil
	}
	return s.notifier.NotifyListing(ctx, l)
}

// InvestorChanged re-runs notifications for a stored investor. Inactive
// investors produce an empty summary.
func (s *Service) InvestorChanged(ctx context.Context, id string) (notify.Summary, error) {
	inv, err := s.investors.GetByID(ctx, id)
	if err != nil {
		return notify.Summary{}, err
	}
	if !inv.Active || s.notifier == nil {
		return notify.Summary{}, nil
	}
	return s.notifier.NotifyInvestor(ctx, inv)
}

// SweepListings re-runs notifications for every available listing so that
// stale records can be refreshed without a new trigger. It continues past
// per-listing failures and returns the combined summary and the first
// error.
func (s *Service) SweepListings(ctx context.Context) (notify.Summary, error) {
	var total notify.Summary
	if s.notifier == nil {
		return total, nil
	}

	listings, err := s.listings.ListAvailable(ctx)
	if err != nil {
		return total, err
	}

	var firstErr error
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		summary, err := s.notifier.NotifyListing(ctx, l)
		total.Qualified += summary.Qualified
		total.Sent += summary.Sent
		total.Failed += summary.Failed
		if err != nil {
			slog.WarnContext(ctx, "sweep failed for listing", "property_id", l.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return total, firstErr
}
