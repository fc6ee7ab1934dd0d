package scoring

import (
	"math"
	"testing"
)

func TestOverallMatchesWeightedRound(t *testing.T) {
	w := DefaultWeights()
	values := []int{0, 1, 25, 33, 49, 50, 51, 67, 75, 99, 100}

	for _, p := range values {
		for _, b := range values {
			for _, l := range values {
				for _, ty := range values {
					want := int(math.Floor(0.30*float64(p) + 0.25*float64(b) + 0.25*float64(l) + 0.20*float64(ty) + 0.5 + 1e-9))
					if got := w.Overall(p, b, l, ty); got != want {
						t.Fatalf("Overall(%d, %d, %d, %d) = %d, want %d", p, b, l, ty, got, want)
					}
				}
			}
		}
	}
}

func TestOverallExamples(t *testing.T) {
	w := DefaultWeights()

	if got := w.Overall(100, 100, 100, 100); got != 100 {
		t.Errorf("all perfect = %d, want 100", got)
	}
	if got := w.Overall(0, 100, 100, 100); got != 70 {
		t.Errorf("price miss = %d, want 70", got)
	}
	if got := w.Overall(0, 0, 0, 0); got != 0 {
		t.Errorf("all zero = %d, want 0", got)
	}
	// 0.3*50 + 0.25*75 + 0 + 0 = 33.75
	if got := w.Overall(50, 75, 0, 0); got != 34 {
		t.Errorf("mixed = %d, want 34", got)
	}
}

func TestLabelBoundaries(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		overall int
		want    Label
	}{
		{100, LabelExcellent},
		{90, LabelExcellent},
		{89, LabelGreat},
		{75, LabelGreat},
		{74, LabelGood},
		{60, LabelGood},
		{59, LabelPotential},
		{0, LabelPotential},
	}

	for _, tt := range tests {
		if got := th.Label(tt.overall); got != tt.want {
			t.Errorf("Label(%d) = %q, want %q", tt.overall, got, tt.want)
		}
	}
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       Weights
		wantErr bool
	}{
		{"defaults", DefaultWeights(), false},
		{"equal split", Weights{25, 25, 25, 25}, false},
		{"sum below 100", Weights{30, 25, 25, 10}, true},
		{"negative", Weights{110, -10, 0, 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("defaults: %v", err)
	}
	if err := (Thresholds{Excellent: 75, Great: 90, Good: 60}).Validate(); err == nil {
		t.Error("expected error for unordered thresholds")
	}
	if err := (Thresholds{Excellent: 101, Great: 90, Good: 60}).Validate(); err == nil {
		t.Error("expected error for threshold above 100")
	}
}

func TestScorerCombine(t *testing.T) {
	s := NewScorer(Weights{}, Thresholds{})

	b := s.Combine(0, 100, 100, 100)
	want := Breakdown{Location: 100, Price: 0, Bedrooms: 100, Type: 100, Overall: 70, Label: LabelGood}
	if b != want {
		t.Errorf("Combine = %+v, want %+v", b, want)
	}

	custom := NewScorer(Weights{Price: 100}, Thresholds{Excellent: 50, Great: 40, Good: 30})
	b = custom.Combine(50, 0, 0, 0)
	if b.Overall != 50 || b.Label != LabelExcellent {
		t.Errorf("custom Combine = %+v, want overall 50 Excellent", b)
	}
}
