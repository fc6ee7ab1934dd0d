// Package match runs candidate generation, criterion scoring and
// aggregation to produce ranked investor/property matches.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/matchmaker/internal/candidate"
	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/listing"
	"github.com/evcraddock/matchmaker/internal/metrics"
	"github.com/evcraddock/matchmaker/internal/scoring"
)

// Match is one scored investor/listing pair.
type Match struct {
	InvestorID string            `json:"investor_id"`
	PropertyID string            `json:"property_id"`
	Breakdown  scoring.Breakdown `json:"breakdown"`

	Investor *investor.Profile `json:"-"`
	Listing  *listing.Listing  `json:"-"`
}

// Config controls engine behavior.
type Config struct {
	// Workers bounds the goroutines scoring a candidate set. Zero means 4.
	Workers int
}

// Engine computes ranked matches. It has no side effects beyond metrics.
type Engine struct {
	generator *candidate.Generator
	scorer    *scoring.Scorer
	workers   int
}

// NewEngine creates a match engine.
func NewEngine(generator *candidate.Generator, scorer *scoring.Scorer, cfg Config) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Engine{generator: generator, scorer: scorer, workers: workers}
}

// ForListing ranks active investors for a listing. Results are ordered by
// overall score descending, then investor ID ascending. A positive limit
// truncates the result.
func (e *Engine) ForListing(ctx context.Context, l *listing.Listing, limit int) ([]Match, error) {
	if l == nil {
		return nil, fmt.Errorf("listing is required")
	}
	start := time.Now()
	defer observe("listing", start)

	pairs, err := e.generator.ForListing(ctx, l)
	if err != nil {
		return nil, err
	}

	matches, err := e.scoreAll(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("scoring listing %s: %w", l.ID, err)
	}
	rank(matches, func(m Match) string { return m.InvestorID })

	slog.DebugContext(ctx, "computed listing matches",
		"property_id", l.ID,
		"candidates", len(pairs),
		"duration", time.Since(start).String(),
	)
	return truncate(matches, limit), nil
}

// ForInvestor ranks available listings for an investor, ordered by overall
// score descending, then property ID ascending.
func (e *Engine) ForInvestor(ctx context.Context, inv *investor.Profile, limit int) ([]Match, error) {
	if inv == nil {
		return nil, fmt.Errorf("investor is required")
	}
	start := time.Now()
	defer observe("investor", start)

	pairs, err := e.generator.ForInvestor(ctx, inv)
	if err != nil {
		return nil, err
	}

	matches, err := e.scoreAll(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("scoring investor %s: %w", inv.ID, err)
	}
	rank(matches, func(m Match) string { return m.PropertyID })

	slog.DebugContext(ctx, "computed investor matches",
		"investor_id", inv.ID,
		"candidates", len(pairs),
		"duration", time.Since(start).String(),
	)
	return truncate(matches, limit), nil
}

// Score computes the breakdown for a single pair without eligibility checks.
func (e *Engine) Score(inv *investor.Profile, l *listing.Listing) scoring.Breakdown {
	return Score(e.scorer, inv, l)
}

// Score runs every criterion scorer for one pair and aggregates the result.
func Score(s *scoring.Scorer, inv *investor.Profile, l *listing.Listing) scoring.Breakdown {
	return s.Combine(
		scoring.PriceScore(inv.Budget.Min, inv.Budget.Max, l.Price),
		scoring.BedroomsScore(inv.Bedrooms.Min, inv.Bedrooms.Max, l.Bedrooms),
		scoring.LocationScore(inv.Locations, l.Location),
		scoring.TypeScore(inv.PropertyTypes, l.PropertyType),
	)
}

// scoreAll scores pairs in parallel chunks. Each pair is independent, so
// chunks write disjoint slots of the result slice.
func (e *Engine) scoreAll(ctx context.Context, pairs []candidate.Pair) ([]Match, error) {
	matches := make([]Match, len(pairs))
	if len(pairs) == 0 {
		return matches, nil
	}

	chunk := (len(pairs) + e.workers - 1) / e.workers
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for lo := 0; lo < len(pairs); lo += chunk {
		hi := min(lo+chunk, len(pairs))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				p := pairs[i]
				matches[i] = Match{
					InvestorID: p.Investor.ID,
					PropertyID: p.Listing.ID,
					Breakdown:  Score(e.scorer, p.Investor, p.Listing),
					Investor:   p.Investor,
					Listing:    p.Listing,
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	metrics.PairsScored.Add(float64(len(pairs)))
	return matches, nil
}

// rank sorts by overall descending, breaking ties by candidate ID.
func rank(matches []Match, candidateID func(Match) string) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Breakdown.Overall != matches[j].Breakdown.Overall {
			return matches[i].Breakdown.Overall > matches[j].Breakdown.Overall
		}
		return candidateID(matches[i]) < candidateID(matches[j])
	})
}

func truncate(matches []Match, limit int) []Match {
	if limit > 0 && len(matches) > limit {
		return matches[:limit]
	}
	return matches
}

func observe(direction string, start time.Time) {
	metrics.MatchComputations.WithLabelValues(direction).Inc()
	metrics.MatchDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())
}
