// Package ledger records which investor/property pairs have been notified
// and serializes notification attempts per pair.
//
// A Record means a notification was sent. A Claim is a short lease taken
// before dispatch; only the claim holder may dispatch for that pair. Claims
// are confirmed into records after a successful send or released after a
// failed one, and expire on their own if the holder disappears.
package ledger

import (
	"context"
	"time"
)

// Key identifies an investor/property pair.
type Key struct {
	InvestorID string `json:"investor_id"`
	PropertyID string `json:"property_id"`
}

// Record is the last successful notification for a pair.
type Record struct {
	InvestorID  string    `json:"investor_id"`
	PropertyID  string    `json:"property_id"`
	ScoreAtSend int       `json:"score_at_send"`
	SentAt      time.Time `json:"sent_at"`
}

// Key returns the record's pair key.
func (r *Record) Key() Key {
	return Key{InvestorID: r.InvestorID, PropertyID: r.PropertyID}
}

// Claim is a held lease on a pair.
type Claim struct {
	Key
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	InvestorID string
	PropertyID string
}

// Store persists records and claims. Claim is the only serialization
// point: at most one unexpired claim exists per key.
type Store interface {
	// Claim takes the lease for key. It returns nil, nil when another
	// unexpired claim holds the key.
	Claim(ctx context.Context, key Key, now time.Time, ttl time.Duration) (*Claim, error)
	// Get returns the record for key, or nil, nil if none exists.
	Get(ctx context.Context, key Key) (*Record, error)
	// Confirm writes the record for a completed send, superseding any
	// previous one, and drops the claim if it is still held.
	Confirm(ctx context.Context, c *Claim, scoreAtSend int, sentAt time.Time) error
	// Release drops the claim without writing a record.
	Release(ctx context.Context, c *Claim) error
	// List returns records ordered by most recent send.
	List(ctx context.Context, f Filter) ([]*Record, error)
	// ResetInvestor deletes every record for an investor and reports how
	// many were removed.
	ResetInvestor(ctx context.Context, investorID string) (int64, error)
}

// Policy decides when an already-notified pair may be notified again.
type Policy struct {
	// ScoreDelta is the minimum rise in overall score since the last send.
	ScoreDelta int
	// MaxAge is the time after which a record is stale.
	MaxAge time.Duration
}

// DefaultPolicy re-notifies after a 10 point improvement or 30 days.
func DefaultPolicy() Policy {
	return Policy{ScoreDelta: 10, MaxAge: 30 * 24 * time.Hour}
}

// Allows reports whether a pair with the given record may be notified at
// the given overall score. A missing record always allows.
func (p Policy) Allows(rec *Record, overall int, now time.Time) bool {
	if rec == nil {
		return true
	}
	if overall-rec.ScoreAtSend >= p.ScoreDelta {
		return true
	}
	return p.MaxAge > 0 && now.Sub(rec.SentAt) >= p.MaxAge
}
