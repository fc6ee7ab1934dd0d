package investor

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func validProfile() *Profile {
	return &Profile{
		ID:    "inv-1",
		Name:  "Ada",
		Email: "ada@example.com",
		Budget: Budget{
			Min:  decimal.NewFromInt(1000),
			Max:  decimal.NewFromInt(1500),
			Type: BudgetMonthly,
		},
		Bedrooms:      Range{Min: 2, Max: 3},
		PropertyTypes: []string{"Apartment"},
		Active:        true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Profile)
		wantErr string
	}{
		{name: "valid", mutate: func(p *Profile) {}},
		{name: "no email is fine", mutate: func(p *Profile) { p.Email = "" }},
		{
			name:    "bad email",
			mutate:  func(p *Profile) { p.Email = "not-an-email" },
			wantErr: "email",
		},
		{
			name:    "budget min above max",
			mutate:  func(p *Profile) { p.Budget.Min = decimal.NewFromInt(2000) },
			wantErr: "ltefield",
		},
		{
			name:    "negative budget",
			mutate:  func(p *Profile) { p.Budget.Min = decimal.NewFromInt(-1) },
			wantErr: "gte",
		},
		{
			name:    "unknown budget type",
			mutate:  func(p *Profile) { p.Budget.Type = "weekly" },
			wantErr: "oneof",
		},
		{
			name:    "bedrooms min above max",
			mutate:  func(p *Profile) { p.Bedrooms = Range{Min: 4, Max: 2} },
			wantErr: "ltefield",
		},
		{
			name:    "negative bedrooms",
			mutate:  func(p *Profile) { p.Bedrooms = Range{Min: -1, Max: 2} },
			wantErr: "gte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mutate(p)
			err := Validate(p)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Error("expected error for nil profile")
	}
}

func TestMaterialChange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Profile)
		want   bool
	}{
		{"identical", func(p *Profile) {}, false},
		{"name only", func(p *Profile) { p.Name = "Grace" }, false},
		{"email only", func(p *Profile) { p.Email = "grace@example.com" }, false},
		{"operator type", func(p *Profile) { p.OperatorType = "hands-on" }, false},
		{"deactivated", func(p *Profile) { p.Active = false }, false},
		{"same budget different scale", func(p *Profile) { p.Budget.Max = decimal.RequireFromString("1500.00") }, false},
		{"types reordered and recased", func(p *Profile) { p.PropertyTypes = []string{" apartment "} }, false},
		{"budget max", func(p *Profile) { p.Budget.Max = decimal.NewFromInt(1800) }, true},
		{"budget type", func(p *Profile) { p.Budget.Type = BudgetAnnual }, true},
		{"bedrooms", func(p *Profile) { p.Bedrooms.Max = 4 }, true},
		{"types added", func(p *Profile) { p.PropertyTypes = append(p.PropertyTypes, "House") }, true},
		{"licence added", func(p *Profile) { p.PropertyLicences = []string{"HMO"} }, true},
		{"location added", func(p *Profile) { p.Locations = []string{"London"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := validProfile()
			updated := validProfile()
			tt.mutate(updated)
			if got := MaterialChange(old, updated); got != tt.want {
				t.Errorf("MaterialChange = %v, want %v", got, tt.want)
			}
		})
	}
}
