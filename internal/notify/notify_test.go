package notify

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evcraddock/matchmaker/internal/candidate"
	"github.com/evcraddock/matchmaker/internal/db"
	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/ledger"
	"github.com/evcraddock/matchmaker/internal/listing"
	"github.com/evcraddock/matchmaker/internal/match"
	"github.com/evcraddock/matchmaker/internal/scoring"
)

type memStore struct {
	mu        sync.Mutex
	investors []*investor.Profile
	listings  []*listing.Listing
	err       error
}

func (m *memStore) ListActive(ctx context.Context) ([]*investor.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*investor.Profile
	for _, p := range m.investors {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListAvailable(ctx context.Context) ([]*listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*listing.Listing
	for _, l := range m.listings {
		if l.Available() {
			out = append(out, l)
		}
	}
	return out, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []Payload
	fail map[string]bool
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, p Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[p.InvestorID] {
		return errors.New("smtp unavailable")
	}
	d.sent = append(d.sent, p)
	return nil
}

func (d *recordingDispatcher) count(investorID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, p := range d.sent {
		if p.InvestorID == investorID {
			n++
		}
	}
	return n
}

type fixture struct {
	svc        *Service
	store      *memStore
	ledger     ledger.Store
	dispatcher *recordingDispatcher
	now        time.Time
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	f := &fixture{
		store:      &memStore{},
		ledger:     ledger.NewSQLiteStore(database),
		dispatcher: &recordingDispatcher{fail: map[string]bool{}},
		now:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	scorer := scoring.NewScorer(scoring.DefaultWeights(), scoring.DefaultThresholds())
	engine := match.NewEngine(candidate.NewGenerator(f.store), scorer, match.Config{Workers: 2})
	f.svc = NewService(engine, f.ledger, f.dispatcher, cfg)
	f.svc.now = func() time.Time { return f.now }
	return f
}

// investorWanting returns an active investor with a £1000-£1500 monthly
// budget for 2-3 bed apartments.
func investorWanting(id string) *investor.Profile {
	return &investor.Profile{
		ID:    id,
		Name:  "Investor " + id,
		Email: id + "@example.com",
		Budget: investor.Budget{
			Min:  decimal.NewFromInt(1000),
			Max:  decimal.NewFromInt(1500),
			Type: investor.BudgetMonthly,
		},
		Bedrooms:      investor.Range{Min: 2, Max: 3},
		PropertyTypes: []string{"Apartment"},
		Active:        true,
	}
}

// flat returns an available 2 bed apartment. At £1600 it scores 88 overall
// for investorWanting, at £1550 it scores 94 and at £1200 it scores 100.
func flat(id string, price int64) *listing.Listing {
	return &listing.Listing{
		ID:           id,
		Title:        "Flat " + id,
		Price:        decimal.NewFromInt(price),
		Bedrooms:     2,
		PropertyType: "Apartment",
		Location:     "Leeds",
		Status:       listing.StatusAvailable,
	}
}

func ids(qs []Qualified) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.InvestorID
	}
	return out
}

func TestQualifyingIsIdempotentWithoutConfirmation(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.investors = []*investor.Profile{investorWanting("a"), investorWanting("b")}
	l := flat("p1", 1200)
	ctx := context.Background()

	first, err := f.svc.QualifyingForListing(ctx, l)
	if err != nil {
		t.Fatalf("QualifyingForListing failed: %v", err)
	}
	if got := ids(first); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("first run = %v, want [a b]", got)
	}

	second, err := f.svc.QualifyingForListing(ctx, l)
	if err != nil {
		t.Fatalf("second QualifyingForListing failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second run = %v, want none", ids(second))
	}
}

func TestQualifyingHonoursRecords(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.investors = []*investor.Profile{investorWanting("a")}
	l := flat("p1", 1600)
	ctx := context.Background()

	qs, err := f.svc.QualifyingForListing(ctx, l)
	if err != nil || len(qs) != 1 {
		t.Fatalf("QualifyingForListing = %v, %v", ids(qs), err)
	}
	if qs[0].Breakdown.Overall != 88 {
		t.Fatalf("overall = %d, want 88", qs[0].Breakdown.Overall)
	}
	if err := f.svc.Confirm(ctx, qs[0]); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	tests := []struct {
		name    string
		price   int64
		advance time.Duration
		want    int
	}{
		{"unchanged", 1600, 0, 0},
		{"marginal improvement", 1550, time.Hour, 0},
		{"29 days later", 1600, 29 * 24 * time.Hour, 0},
		{"improved by 12", 1200, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).Add(tt.advance)
			qs, err := f.svc.QualifyingForListing(ctx, flat("p1", tt.price))
			if err != nil {
				t.Fatalf("QualifyingForListing failed: %v", err)
			}
			if len(qs) != tt.want {
				t.Errorf("got %d qualifying, want %d", len(qs), tt.want)
			}
			for _, q := range qs {
				_ = f.svc.Release(ctx, q)
			}
		})
	}
}

func TestPolicyConfig(t *testing.T) {
	tests := []struct {
		name   string
		policy *ledger.Policy
		want   int
	}{
		{"nil uses default", nil, 0},
		{"zero policy re-notifies", &ledger.Policy{}, 1},
		{"custom delta", &ledger.Policy{ScoreDelta: 5}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{Policy: tt.policy})
			f.store.investors = []*investor.Profile{investorWanting("a")}
			ctx := context.Background()

			first, err := f.svc.NotifyListing(ctx, flat("p1", 1600))
			if err != nil || first.Sent != 1 {
				t.Fatalf("first run = %+v, %v", first, err)
			}

			// 88 -> 94 is below the default delta of 10.
			f.now = f.now.Add(time.Hour)
			second, err := f.svc.NotifyListing(ctx, flat("p1", 1550))
			if err != nil {
				t.Fatalf("second run: %v", err)
			}
			if second.Sent != tt.want {
				t.Errorf("second run sent %d, want %d", second.Sent, tt.want)
			}
		})
	}
}

func TestQualifyingAfterStaleness(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.investors = []*investor.Profile{investorWanting("a")}
	ctx := context.Background()

	summary, err := f.svc.NotifyListing(ctx, flat("p1", 1200))
	if err != nil {
		t.Fatalf("NotifyListing failed: %v", err)
	}
	if summary.Sent != 1 {
		t.Fatalf("Sent = %d, want 1", summary.Sent)
	}

	f.now = f.now.Add(30 * 24 * time.Hour)
	summary, err = f.svc.NotifyListing(ctx, flat("p1", 1200))
	if err != nil {
		t.Fatalf("NotifyListing failed: %v", err)
	}
	if summary.Sent != 1 {
		t.Errorf("Sent after 30 days = %d, want 1", summary.Sent)
	}

	rec, err := f.ledger.Get(ctx, ledger.Key{InvestorID: "a", PropertyID: "p1"})
	if err != nil || rec == nil {
		t.Fatalf("Get = %v, %v", rec, err)
	}
	if !rec.SentAt.Equal(f.now) {
		t.Errorf("SentAt = %v, want superseded send at %v", rec.SentAt, f.now)
	}
}

func TestReleaseMakesPairEligibleAgain(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.investors = []*investor.Profile{investorWanting("a")}
	l := flat("p1", 1200)
	ctx := context.Background()

	qs, err := f.svc.QualifyingForListing(ctx, l)
	if err != nil || len(qs) != 1 {
		t.Fatalf("QualifyingForListing = %v, %v", ids(qs), err)
	}
	if err := f.svc.Release(ctx, qs[0]); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	again, err := f.svc.QualifyingForListing(ctx, l)
	if err != nil {
		t.Fatalf("QualifyingForListing failed: %v", err)
	}
	if len(again) != 1 {
		t.Errorf("expected released pair to qualify again, got %v", ids(again))
	}
}

func TestClaimExpiryRecoversAbandonedRun(t *testing.T) {
	f := newFixture(t, Config{ClaimTTL: time.Minute})
	f.store.investors = []*investor.Profile{investorWanting("a")}
	l := flat("p1", 1200)
	ctx := context.Background()

	if qs, _ := f.svc.QualifyingForListing(ctx, l); len(qs) != 1 {
		t.Fatalf("expected one qualifying pair, got %d", len(qs))
	}

	f.now = f.now.Add(time.Minute)
	qs, err := f.svc.QualifyingForListing(ctx, l)
	if err != nil {
		t.Fatalf("QualifyingForListing failed: %v", err)
	}
	if len(qs) != 1 {
		t.Errorf("expected abandoned claim to expire, got %d qualifying", len(qs))
	}
}

func TestNotifyDispatchFailureWritesNoRecord(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.investors = []*investor.Profile{investorWanting("a"), investorWanting("b")}
	f.dispatcher.fail["b"] = true
	l := flat("p1", 1200)
	ctx := context.Background()

	summary, err := f.svc.NotifyListing(ctx, l)
	if err != nil {
		t.Fatalf("NotifyListing failed: %v", err)
	}
	if summary != (Summary{Qualified: 2, Sent: 1, Failed: 1}) {
		t.Errorf("summary = %+v", summary)
	}

	rec, err := f.ledger.Get(ctx, ledger.Key{InvestorID: "b", PropertyID: "p1"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Errorf("failed dispatch must not be recorded, got %+v", rec)
	}

	delete(f.dispatcher.fail, "b")
	summary, err = f.svc.NotifyListing(ctx, l)
	if err != nil {
		t.Fatalf("retry NotifyListing failed: %v", err)
	}
	if summary != (Summary{Qualified: 1, Sent: 1}) {
		t.Errorf("retry summary = %+v, want only b", summary)
	}
	if f.dispatcher.count("a") != 1 || f.dispatcher.count("b") != 1 {
		t.Errorf("sends a=%d b=%d, want 1 each", f.dispatcher.count("a"), f.dispatcher.count("b"))
	}
}

func TestNotifyConcurrentRunsSendOnce(t *testing.T) {
	f := newFixture(t, Config{})
	for _, id := range []string{"a", "b", "c", "d"} {
		f.store.investors = append(f.store.investors, investorWanting(id))
	}
	l := flat("p1", 1200)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.NotifyListing(ctx, l); err != nil {
				t.Errorf("NotifyListing failed: %v", err)
			}
		}()
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c", "d"} {
		if n := f.dispatcher.count(id); n != 1 {
			t.Errorf("investor %s notified %d times, want 1", id, n)
		}
	}
}

func TestNotifyInvestor(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.listings = []*listing.Listing{flat("p2", 1600), flat("p1", 1200)}
	inv := investorWanting("a")
	ctx := context.Background()

	summary, err := f.svc.NotifyInvestor(ctx, inv)
	if err != nil {
		t.Fatalf("NotifyInvestor failed: %v", err)
	}
	if summary.Sent != 2 {
		t.Fatalf("Sent = %d, want 2", summary.Sent)
	}

	if f.dispatcher.sent[0].PropertyID != "p1" {
		t.Errorf("expected best match dispatched first, got %s", f.dispatcher.sent[0].PropertyID)
	}
	p := f.dispatcher.sent[0]
	if p.InvestorEmail != "a@example.com" || p.Title != "Flat p1" || !p.Price.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("payload = %+v", p)
	}
	if p.Breakdown.Label != scoring.LabelExcellent {
		t.Errorf("Label = %q, want %q", p.Breakdown.Label, scoring.LabelExcellent)
	}

	again, err := f.svc.NotifyInvestor(ctx, inv)
	if err != nil {
		t.Fatalf("NotifyInvestor failed: %v", err)
	}
	if again.Qualified != 0 {
		t.Errorf("second run qualified %d, want 0", again.Qualified)
	}
}

func TestMinOverall(t *testing.T) {
	f := newFixture(t, Config{MinOverall: 90})
	f.store.listings = []*listing.Listing{flat("p1", 1200), flat("p2", 1600)}

	qs, err := f.svc.QualifyingForInvestor(context.Background(), investorWanting("a"))
	if err != nil {
		t.Fatalf("QualifyingForInvestor failed: %v", err)
	}
	if len(qs) != 1 || qs[0].PropertyID != "p1" {
		t.Errorf("expected only p1 above threshold, got %d", len(qs))
	}
}

func TestFetchErrorIsReturned(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.err = errors.New("database is down")

	_, err := f.svc.NotifyListing(context.Background(), flat("p1", 1200))
	if err == nil {
		t.Fatal("expected candidate fetch error")
	}
	if len(f.dispatcher.sent) != 0 {
		t.Error("nothing should be dispatched when the fetch fails")
	}
}

func TestConfirmRequiresClaim(t *testing.T) {
	f := newFixture(t, Config{})
	if err := f.svc.Confirm(context.Background(), Qualified{}); err == nil {
		t.Error("expected error confirming an unclaimed pair")
	}
}
