package ruleset

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/prodigy-ranking/backend/internal/contracts"
)

// ValidationError is a fatal configuration error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning is a non-fatal configuration smell
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(rs *RuleSet) error {
	// === Meta ===
	if rs.Meta.RulesetID == "" {
		return ValidationError{"meta.ruleset_id", "required"}
	}

	// === Factors ===
	if len(rs.Factors) == 0 {
		return ValidationError{"factors", "required"}
	}
	seen := make(map[string]struct{}, len(rs.Factors))
	for i := range rs.Factors {
		f := &rs.Factors[i]
		field := fmt.Sprintf("factors[%d]", i)
		if f.Code == "" {
			return ValidationError{field + ".code", "required"}
		}
		if _, dup := seen[f.Code]; dup {
			return ValidationError{field + ".code", fmt.Sprintf("duplicate code %s", f.Code)}
		}
		seen[f.Code] = struct{}{}

		if err := validateFactor(f, fmt.Sprintf("factors[%s]", f.Code)); err != nil {
			return err
		}
	}

	// === Formulas ===
	if err := validateTable(rs, rs.Formulas.Skater, "formulas.skater"); err != nil {
		return err
	}
	if err := validateTable(rs, rs.Formulas.Goaltender, "formulas.goaltender"); err != nil {
		return err
	}

	// === Overall ===
	w := rs.Overall
	for _, pct := range []int{w.Performance, w.Level, w.Visibility, w.Achievements, w.Physical, w.Trending} {
		if pct < 0 {
			return ValidationError{"overall_weights_pct", "weights must be >= 0"}
		}
	}
	if w.Sum() != 100 {
		return ValidationError{"overall_weights_pct", fmt.Sprintf("must sum to 100, got %d", w.Sum())}
	}

	// === Team ===
	if err := validateTeam(rs.Team); err != nil {
		return err
	}

	// === Playoff ===
	return validatePlayoff(rs.Playoff)
}

func validateFactor(f *Factor, field string) error {
	if f.MaxPoints <= 0 {
		return ValidationError{field + ".max_points", "must be > 0"}
	}
	if _, ok := contracts.ParseCategory(string(f.Category)); !ok {
		return ValidationError{field + ".category", fmt.Sprintf("unknown category %q", f.Category)}
	}
	for _, p := range f.Positions {
		if _, err := contracts.ParsePosition(string(p)); err != nil {
			return ValidationError{field + ".positions", err.Error()}
		}
	}

	c := f.Curve
	switch c.Type {
	case CurveLinear, CurveInverseLinear:
		if c.Max <= c.Min {
			return ValidationError{field + ".curve", "max must be > min"}
		}
	case CurveTiered:
		if len(c.Tiers) == 0 {
			return ValidationError{field + ".curve.tiers", "required for tiered curve"}
		}
		for label, pts := range c.Tiers {
			if pts < 0 {
				return ValidationError{field + ".curve.tiers", fmt.Sprintf("tier %q must be >= 0", label)}
			}
		}
	case CurveThreshold:
		if len(c.Steps) == 0 {
			return ValidationError{field + ".curve.steps", "required for threshold curve"}
		}
		ascending := sort.SliceIsSorted(c.Steps, func(i, j int) bool { return c.Steps[i].Min < c.Steps[j].Min })
		if !ascending {
			return ValidationError{field + ".curve.steps", "must be sorted by min ascending"}
		}
		for i := 1; i < len(c.Steps); i++ {
			if c.Steps[i].Min == c.Steps[i-1].Min {
				return ValidationError{field + ".curve.steps", "duplicate step min"}
			}
		}
	case CurvePerEvent:
		if c.PointsPerUnit <= 0 {
			return ValidationError{field + ".curve.points_per_unit", "must be > 0"}
		}
	default:
		return ValidationError{field + ".curve.type", fmt.Sprintf("%v: %q", contracts.ErrUnknownCurve, c.Type)}
	}
	return nil
}

func validateTable(rs *RuleSet, table FormulaTable, field string) error {
	for _, cat := range contracts.AllCategories {
		formula := table.Get(cat)
		catField := fmt.Sprintf("%s.%s", field, cat)
		if len(formula) == 0 {
			return ValidationError{catField, "required"}
		}

		var weights []float64
		for i, term := range formula {
			termField := fmt.Sprintf("%s[%d]", catField, i)
			if len(term.Factors) == 0 {
				return ValidationError{termField + ".factors", "required"}
			}
			for _, code := range term.Factors {
				if _, ok := rs.FactorByCode(code); !ok {
					return ValidationError{termField + ".factors", fmt.Sprintf("unknown factor %s", code)}
				}
			}
			if term.Cap <= 0 {
				return ValidationError{termField + ".cap", "must be > 0"}
			}
			if term.Weight <= 0 {
				return ValidationError{termField + ".weight", "must be > 0"}
			}
			weights = append(weights, term.Weight)
		}

		if err := validateWeightsSum(weights, 1.0, 1e-6); err != nil {
			return ValidationError{catField, err.Error()}
		}
	}
	return nil
}

func validateTeam(t TeamConfig) error {
	if t.Floor != TeamRatingFloor || t.Ceiling != TeamRatingCeiling {
		return ValidationError{"team", fmt.Sprintf("floor and ceiling are fixed at %d and %d; tune default_band/season_bands instead", TeamRatingFloor, TeamRatingCeiling)}
	}
	if t.DefaultBand.Max <= t.DefaultBand.Min {
		return ValidationError{"team.default_band", "max must be > min"}
	}
	for i, b := range t.SeasonBands {
		if b.Season == "" {
			return ValidationError{fmt.Sprintf("team.season_bands[%d].season", i), "required"}
		}
		if b.Max <= b.Min {
			return ValidationError{fmt.Sprintf("team.season_bands[%d]", i), "max must be > min"}
		}
	}
	if t.Blend.Enabled {
		if t.Blend.MinGames < 1 {
			return ValidationError{"team.blend.min_games", "must be >= 1"}
		}
		if err := validateWeightsSum([]float64{t.Blend.WinWeight, t.Blend.GoalDiffWeight, t.Blend.RosterWeight}, 1.0, 1e-6); err != nil {
			return ValidationError{"team.blend", err.Error()}
		}
	}
	return nil
}

func validatePlayoff(p PlayoffConfig) error {
	if p.LargeEnrollmentMin <= 0 {
		return ValidationError{"playoff.large_enrollment_min", "must be > 0"}
	}

	if len(p.EliteBidTiers) == 0 {
		return ValidationError{"playoff.elite_bid_tiers", "required"}
	}
	next := 1
	for i, tier := range p.EliteBidTiers {
		field := fmt.Sprintf("playoff.elite_bid_tiers[%d]", i)
		if tier.FromRank != next {
			return ValidationError{field, fmt.Sprintf("must start at rank %d", next)}
		}
		if tier.ToRank < tier.FromRank {
			return ValidationError{field, "to_rank must be >= from_rank"}
		}
		if tier.High < tier.Low {
			return ValidationError{field, "high must be >= low"}
		}
		if err := validatePercent(tier.High, field+".high"); err != nil {
			return err
		}
		if err := validatePercent(tier.Low, field+".low"); err != nil {
			return err
		}
		next = tier.ToRank + 1
	}
	tail := p.EliteBidTail
	if tail.Step < 0 || tail.Floor < 0 || tail.Start < tail.Floor {
		return ValidationError{"playoff.elite_bid_tail", "must satisfy step >= 0 and start >= floor >= 0"}
	}
	if tail.Start > EliteBidTailMax {
		return ValidationError{"playoff.elite_bid_tail.start", fmt.Sprintf("must be <= %g", EliteBidTailMax)}
	}
	if last := p.EliteBidTiers[len(p.EliteBidTiers)-1]; tail.Start > last.Low {
		return ValidationError{"playoff.elite_bid_tail.start", fmt.Sprintf("must be <= the last tier's low (%g)", last.Low)}
	}

	if p.ChampPoolSize < 1 {
		return ValidationError{"playoff.champ_pool_size", "must be >= 1"}
	}
	if p.Temperature <= 0 {
		return ValidationError{"playoff.temperature", "must be > 0"}
	}
	if err := validatePercent(p.MinEliteChamp, "playoff.min_elite_champ"); err != nil {
		return err
	}
	if err := validatePercent(p.EliteChampCap, "playoff.elite_champ_cap"); err != nil {
		return err
	}
	if err := validatePercent(p.ClassChampCap, "playoff.class_champ_cap"); err != nil {
		return err
	}

	if p.ClassBidRankFloor < 0 {
		return ValidationError{"playoff.class_bid_rank_floor", "must be >= 0"}
	}
	for i, b := range p.QualifyBuckets {
		field := fmt.Sprintf("playoff.qualify_buckets[%d]", i)
		if i > 0 && b.MaxPosition <= p.QualifyBuckets[i-1].MaxPosition {
			return ValidationError{field, "max_position must be ascending"}
		}
		if b.Probability < 0 || b.Probability > 1 {
			return ValidationError{field + ".probability", "must be in range [0, 1]"}
		}
	}
	if p.QualifyDefault < 0 || p.QualifyDefault > 1 {
		return ValidationError{"playoff.qualify_default", "must be in range [0, 1]"}
	}
	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(rs *RuleSet) []Warning {
	var warnings []Warning

	referenced := make(map[string]struct{})
	for _, table := range []FormulaTable{rs.Formulas.Skater, rs.Formulas.Goaltender} {
		for _, cat := range contracts.AllCategories {
			for _, term := range table.Get(cat) {
				var maxSum float64
				for _, code := range term.Factors {
					referenced[code] = struct{}{}
					if f, ok := rs.FactorByCode(code); ok && f.Active {
						maxSum += f.MaxPoints
					}
				}
				if maxSum > 0 && maxSum < term.Cap {
					warnings = append(warnings, Warning{
						Code:    "UNREACHABLE_CAP",
						Message: fmt.Sprintf("%s term %v: max points %.0f < cap %.0f, rating can never reach 99", cat, term.Factors, maxSum, term.Cap),
					})
				}
			}
		}
	}

	for _, f := range rs.Factors {
		if _, ok := referenced[f.Code]; !ok && f.Active {
			warnings = append(warnings, Warning{
				Code:    "UNRATED_FACTOR",
				Message: fmt.Sprintf("%s is active but no rating formula uses it", f.Code),
			})
		}
	}

	if rs.Playoff.MinEliteChamp > rs.Playoff.EliteChampCap {
		warnings = append(warnings, Warning{
			Code:    "CHAMP_FLOOR_ABOVE_CAP",
			Message: "min_elite_champ > elite_champ_cap",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateWeightsSum(weights []float64, target float64, epsilon float64) error {
	if len(weights) == 0 {
		return errors.New("must not be empty")
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-target) > epsilon {
		return fmt.Errorf("weights must sum to %.2f, got %.4f", target, sum)
	}
	return nil
}

func validatePercent(v float64, field string) error {
	if v < 0 || v > 100 {
		return ValidationError{field, "must be in range [0, 100]"}
	}
	return nil
}
