package investor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/evcraddock/matchmaker/internal/db"
)

func TestUpsertAndGetByID(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	p := validProfile()
	p.PropertyLicences = []string{"HMO"}
	p.Locations = []string{"London", "Leeds"}
	p.OperatorType = "hands-off"

	saved, err := repo.Upsert(ctx, p)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if saved.ID != "inv-1" {
		t.Errorf("id = %q, want %q", saved.ID, "inv-1")
	}
	if !saved.Budget.Min.Equal(decimal.NewFromInt(1000)) || !saved.Budget.Max.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("budget = %s-%s, want 1000-1500", saved.Budget.Min, saved.Budget.Max)
	}
	if saved.Budget.Type != BudgetMonthly {
		t.Errorf("budget type = %q, want %q", saved.Budget.Type, BudgetMonthly)
	}
	if saved.Bedrooms != (Range{Min: 2, Max: 3}) {
		t.Errorf("bedrooms = %+v, want 2-3", saved.Bedrooms)
	}
	if len(saved.Locations) != 2 || saved.Locations[1] != "Leeds" {
		t.Errorf("locations = %v", saved.Locations)
	}
	if len(saved.PropertyLicences) != 1 || saved.PropertyLicences[0] != "HMO" {
		t.Errorf("licences = %v", saved.PropertyLicences)
	}
	if saved.OperatorType != "hands-off" {
		t.Errorf("operator type = %q", saved.OperatorType)
	}
	if !saved.Active {
		t.Error("expected active")
	}
	if saved.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, validProfile()); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	p := validProfile()
	p.Budget.Max = decimal.NewFromInt(2500)
	p.PropertyTypes = nil
	if _, err := repo.Upsert(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, "inv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Budget.Max.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("budget max = %s, want 2500", got.Budget.Max)
	}
	if len(got.PropertyTypes) != 0 {
		t.Errorf("property types = %v, want empty", got.PropertyTypes)
	}

	all, err := repo.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d investors, want 1", len(all))
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := testRepo(t)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListActive(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	for _, tc := range []struct {
		id     string
		active bool
	}{{"c", true}, {"a", true}, {"b", false}} {
		p := validProfile()
		p.ID = tc.id
		p.Active = tc.active
		if _, err := repo.Upsert(ctx, p); err != nil {
			t.Fatalf("upsert %s: %v", tc.id, err)
		}
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d active, want 2", len(active))
	}
	if active[0].ID != "a" || active[1].ID != "c" {
		t.Errorf("order = %s,%s, want a,c", active[0].ID, active[1].ID)
	}

	all, err := repo.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d investors, want 3", len(all))
	}
}

func testRepo(t *testing.T) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return NewRepository(d)
}
