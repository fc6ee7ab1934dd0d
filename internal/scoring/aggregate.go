package scoring

import "fmt"

// Label is the human-readable tier of an overall match score.
type Label string

const (
	LabelExcellent Label = "Excellent Match"
	LabelGreat     Label = "Great Match"
	LabelGood      Label = "Good Match"
	LabelPotential Label = "Potential Match"
)

// Weights are integer percentages applied to each dimension score.
// They must sum to 100.
type Weights struct {
	Price    int `yaml:"price" json:"price"`
	Bedrooms int `yaml:"bedrooms" json:"bedrooms"`
	Location int `yaml:"location" json:"location"`
	Type     int `yaml:"type" json:"type"`
}

// DefaultWeights returns 30/25/25/20 for price/bedrooms/location/type.
func DefaultWeights() Weights {
	return Weights{Price: 30, Bedrooms: 25, Location: 25, Type: 20}
}

// Validate checks the weights are non-negative and sum to 100.
func (w Weights) Validate() error {
	if w.Price < 0 || w.Bedrooms < 0 || w.Location < 0 || w.Type < 0 {
		return fmt.Errorf("weights must be non-negative: %+v", w)
	}
	if sum := w.Price + w.Bedrooms + w.Location + w.Type; sum != 100 {
		return fmt.Errorf("weights must sum to 100, got %d", sum)
	}
	return nil
}

// Overall combines the four dimension scores, rounding half up.
func (w Weights) Overall(price, bedrooms, location, propertyType int) int {
	sum := w.Price*price + w.Bedrooms*bedrooms + w.Location*location + w.Type*propertyType
	return clamp((sum + 50) / 100)
}

// Thresholds are the minimum overall scores for each label tier.
type Thresholds struct {
	Excellent int `yaml:"excellent" json:"excellent"`
	Great     int `yaml:"great" json:"great"`
	Good      int `yaml:"good" json:"good"`
}

// DefaultThresholds returns 90/75/60.
func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 90, Great: 75, Good: 60}
}

// Validate checks the thresholds are strictly descending within [0, 100].
func (t Thresholds) Validate() error {
	if t.Excellent > MaxScore || t.Good < 0 || !(t.Excellent > t.Great && t.Great > t.Good) {
		return fmt.Errorf("thresholds must satisfy 100 >= excellent > great > good >= 0: %+v", t)
	}
	return nil
}

// Label returns the tier for an overall score. Boundaries are inclusive.
func (t Thresholds) Label(overall int) Label {
	switch {
	case overall >= t.Excellent:
		return LabelExcellent
	case overall >= t.Great:
		return LabelGreat
	case overall >= t.Good:
		return LabelGood
	default:
		return LabelPotential
	}
}

// Breakdown is the per-dimension result for one investor/property pair.
type Breakdown struct {
	Location int   `json:"location"`
	Price    int   `json:"price"`
	Bedrooms int   `json:"bedrooms"`
	Type     int   `json:"type"`
	Overall  int   `json:"overall"`
	Label    Label `json:"label"`
}

// Scorer aggregates dimension scores into a Breakdown.
type Scorer struct {
	weights    Weights
	thresholds Thresholds
}

// NewScorer creates a scorer. Zero-value weights or thresholds fall back to
// the defaults.
func NewScorer(w Weights, t Thresholds) *Scorer {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	if t == (Thresholds{}) {
		t = DefaultThresholds()
	}
	return &Scorer{weights: w, thresholds: t}
}

// Combine builds a Breakdown from already computed dimension scores.
func (s *Scorer) Combine(price, bedrooms, location, propertyType int) Breakdown {
	overall := s.weights.Overall(price, bedrooms, location, propertyType)
	return Breakdown{
		Location: location,
		Price:    price,
		Bedrooms: bedrooms,
		Type:     propertyType,
		Overall:  overall,
		Label:    s.thresholds.Label(overall),
	}
}

// String returns the label text.
func (l Label) String() string {
	return string(l)
}
