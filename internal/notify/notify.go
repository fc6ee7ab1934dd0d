// Package notify turns ranked matches into deduplicated notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/ledger"
	"github.com/evcraddock/matchmaker/internal/listing"
	"github.com/evcraddock/matchmaker/internal/match"
	"github.com/evcraddock/matchmaker/internal/metrics"
	"github.com/evcraddock/matchmaker/internal/scoring"
)

// DefaultClaimTTL is how long a qualifying pair stays claimed before another
// run may take it over.
const DefaultClaimTTL = 15 * time.Minute

// Payload is everything a dispatcher needs to tell an investor about a
// listing.
type Payload struct {
	InvestorID    string            `json:"investor_id"`
	InvestorName  string            `json:"investor_name"`
	InvestorEmail string            `json:"investor_email"`
	PropertyID    string            `json:"property_id"`
	Title         string            `json:"title"`
	Price         decimal.Decimal   `json:"price"`
	Bedrooms      int               `json:"bedrooms"`
	PropertyType  string            `json:"property_type"`
	Location      string            `json:"location"`
	Breakdown     scoring.Breakdown `json:"breakdown"`
}

// Dispatcher delivers a notification. A nil error means the send was handed
// off and the pair may be recorded as notified.
type Dispatcher interface {
	Dispatch(ctx context.Context, p Payload) error
}

// Qualified is a match that passed the ledger check. The pair stays claimed
// until it is passed to Confirm or Release.
type Qualified struct {
	match.Match
	claim *ledger.Claim
}

// Payload builds the dispatcher payload for the match.
func (q Qualified) Payload() Payload {
	p := Payload{
		InvestorID: q.InvestorID,
		PropertyID: q.PropertyID,
		Breakdown:  q.Breakdown,
	}
	if inv := q.Investor; inv != nil {
		p.InvestorName = inv.Name
		p.InvestorEmail = inv.Email
	}
	if l := q.Listing; l != nil {
		p.Title = l.Title
		p.Price = l.Price
		p.Bedrooms = l.Bedrooms
		p.PropertyType = l.PropertyType
		p.Location = l.Location
	}
	return p
}

// Summary reports the outcome of a notify run.
type Summary struct {
	Qualified int `json:"qualified"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// Config controls which matches qualify.
type Config struct {
	// MinOverall is the lowest overall score that is notified.
	MinOverall int
	// ClaimTTL bounds how long an unconfirmed claim blocks a pair.
	ClaimTTL time.Duration
	// Policy decides when a notified pair may be sent again. Nil means
	// ledger.DefaultPolicy; a zero Policy re-notifies on every run.
	Policy *ledger.Policy
}

// Service runs the qualifying-match workflow.
type Service struct {
	engine     *match.Engine
	store      ledger.Store
	dispatcher Dispatcher
	cfg        Config
	policy     ledger.Policy
	now        func() time.Time
}

// NewService creates a notification service.
func NewService(engine *match.Engine, store ledger.Store, dispatcher Dispatcher, cfg Config) *Service {
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultClaimTTL
	}
	policy := ledger.DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	return &Service{
		engine:     engine,
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		policy:     policy,
		now:        time.Now,
	}
}

// QualifyingForListing returns the investors that should be notified about
// a listing, best match first. Each returned pair is claimed.
func (s *Service) QualifyingForListing(ctx context.Context, l *listing.Listing) ([]Qualified, error) {
	matches, err := s.engine.ForListing(ctx, l, 0)
	if err != nil {
		return nil, err
	}
	return s.qualify(ctx, matches)
}

// QualifyingForInvestor returns the listings an investor should be notified
// about, best match first. Each returned pair is claimed.
func (s *Service) QualifyingForInvestor(ctx context.Context, inv *investor.Profile) ([]Qualified, error) {
	matches, err := s.engine.ForInvestor(ctx, inv, 0)
	if err != nil {
		return nil, err
	}
	return s.qualify(ctx, matches)
}

func (s *Service) qualify(ctx context.Context, matches []match.Match) ([]Qualified, error) {
	var qualified []Qualified

	for _, m := range matches {
		if m.Breakdown.Overall < s.cfg.MinOverall {
			continue
		}

		key := ledger.Key{InvestorID: m.InvestorID, PropertyID: m.PropertyID}
		now := s.now()

		claim, err := s.store.Claim(ctx, key, now, s.cfg.ClaimTTL)
		if err != nil {
			s.releaseAll(ctx, qualified)
			return nil, err
		}
		if claim == nil {
			metrics.ClaimConflicts.Inc()
			slog.DebugContext(ctx, "pair claimed elsewhere",
				"investor_id", key.InvestorID,
				"property_id", key.PropertyID,
			)
			continue
		}

		rec, err := s.store.Get(ctx, key)
		if err != nil {
			s.releaseAll(ctx, append(qualified, Qualified{Match: m, claim: claim}))
			return nil, err
		}
		if !s.policy.Allows(rec, m.Breakdown.Overall, now) {
			if err := s.store.Release(ctx, claim); err != nil {
				s.releaseAll(ctx, qualified)
				return nil, err
			}
			metrics.Notifications.WithLabelValues(metrics.OutcomeSkipped).Inc()
			continue
		}

		qualified = append(qualified, Qualified{Match: m, claim: claim})
	}

	return qualified, nil
}

func (s *Service) releaseAll(ctx context.Context, qs []Qualified) {
	for _, q := range qs {
		if err := s.store.Release(ctx, q.claim); err != nil {
			slog.WarnContext(ctx, "failed to release claim",
				"investor_id", q.InvestorID,
				"property_id", q.PropertyID,
				"error", err,
			)
		}
	}
}

// Confirm records a successful send for a qualified pair.
func (s *Service) Confirm(ctx context.Context, q Qualified) error {
	if q.claim == nil {
		return fmt.Errorf("pair %s/%s was not claimed", q.InvestorID, q.PropertyID)
	}
	return s.store.Confirm(ctx, q.claim, q.Breakdown.Overall, s.now())
}

// Release gives up a qualified pair without recording a send, leaving it
// eligible for the next run.
func (s *Service) Release(ctx context.Context, q Qualified) error {
	if q.claim == nil {
		return nil
	}
	return s.store.Release(ctx, q.claim)
}

// NotifyListing dispatches notifications for every qualifying investor.
func (s *Service) NotifyListing(ctx context.Context, l *listing.Listing) (Summary, error) {
	qualified, err := s.QualifyingForListing(ctx, l)
	if err != nil {
		return Summary{}, err
	}
	return s.dispatchAll(ctx, qualified)
}

// NotifyInvestor dispatches notifications for every qualifying listing.
func (s *Service) NotifyInvestor(ctx context.Context, inv *investor.Profile) (Summary, error) {
	qualified, err := s.QualifyingForInvestor(ctx, inv)
	if err != nil {
		return Summary{}, err
	}
	return s.dispatchAll(ctx, qualified)
}

// dispatchAll sends each qualified pair. Dispatch failures are counted and
// released; ledger failures stop the run and release what is left.
func (s *Service) dispatchAll(ctx context.Context, qualified []Qualified) (Summary, error) {
	summary := Summary{Qualified: len(qualified)}

	for i, q := range qualified {
		logger := slog.With(
			"investor_id", q.InvestorID,
			"property_id", q.PropertyID,
			"overall", q.Breakdown.Overall,
		)

		if err := s.dispatcher.Dispatch(ctx, q.Payload()); err != nil {
			summary.Failed++
			metrics.Notifications.WithLabelValues(metrics.OutcomeFailed).Inc()
			logger.WarnContext(ctx, "notification dispatch failed", "error", err)

			if err := s.Release(ctx, q); err != nil {
				s.releaseAll(ctx, qualified[i+1:])
				return summary, fmt.Errorf("releasing failed pair: %w", err)
			}
			continue
		}

		if err := s.Confirm(ctx, q); err != nil {
			s.releaseAll(ctx, qualified[i+1:])
			return summary, fmt.Errorf("recording sent pair: %w", err)
		}
		summary.Sent++
		metrics.Notifications.WithLabelValues(metrics.OutcomeSent).Inc()
		logger.InfoContext(ctx, "notification sent")
	}

	return summary, nil
}
