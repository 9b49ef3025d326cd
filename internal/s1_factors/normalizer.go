package s1_factors

import (
	"fmt"
	"math"
	"strings"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/ruleset"
)

// Normalizer turns one raw input into points on a factor's curve
// ⭐ SSOT: curve evaluation lives here only
type Normalizer struct{}

// NewNormalizer creates a new normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Score normalizes one raw input. The result is always within [0, MaxPoints].
// Inactive or inapplicable factors score 0 and are not covered.
// A missing input scores 0 with Covered=false; it is never an error.
func (n *Normalizer) Score(f *ruleset.Factor, pos contracts.Position, in contracts.RawInput) (contracts.FactorScore, error) {
	score := contracts.FactorScore{
		Code:       f.Code,
		Active:     f.Active,
		Applicable: f.AppliesTo(pos),
	}

	if !score.Active || !score.Applicable {
		return score, nil
	}

	points, covered, err := evaluate(f, in)
	if err != nil {
		return score, fmt.Errorf("factor %s: %w", f.Code, err)
	}

	score.Points = clamp(points, 0, f.MaxPoints)
	score.Covered = covered
	return score, nil
}

// evaluate returns raw points and whether a usable input existed
func evaluate(f *ruleset.Factor, in contracts.RawInput) (float64, bool, error) {
	c := f.Curve

	if c.Type == ruleset.CurveTiered {
		if in.Label == nil {
			return 0, false, nil
		}
		// unmapped label: the input existed, it just earns nothing
		return lookupTier(c.Tiers, *in.Label), true, nil
	}

	if in.IsAbsent() || in.Value == nil {
		return 0, false, nil
	}
	v := *in.Value

	switch c.Type {
	case ruleset.CurveLinear:
		v = clamp(v, c.Min, c.Max)
		return (v - c.Min) / (c.Max - c.Min) * f.MaxPoints, true, nil

	case ruleset.CurveInverseLinear:
		v = clamp(v, c.Min, c.Max)
		return (c.Max - v) / (c.Max - c.Min) * f.MaxPoints, true, nil

	case ruleset.CurveThreshold:
		points := 0.0
		for _, step := range c.Steps {
			if v >= step.Min {
				points = step.Points
			}
		}
		return points, true, nil

	case ruleset.CurvePerEvent:
		return math.Max(v, 0) * c.PointsPerUnit, true, nil

	default:
		return 0, false, fmt.Errorf("%w: %q", contracts.ErrUnknownCurve, c.Type)
	}
}

// lookupTier matches labels case- and whitespace-insensitively.
// If two configured labels collide after normalization the higher tier wins.
func lookupTier(tiers map[string]float64, label string) float64 {
	want := normalizeLabel(label)
	best := 0.0
	for k, pts := range tiers {
		if normalizeLabel(k) == want && pts > best {
			best = pts
		}
	}
	return best
}

func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
