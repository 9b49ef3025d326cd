package ruleset

import (
	"github.com/prodigy-ranking/backend/internal/contracts"
)

// RuleSet is the full, versioned rule configuration of a ranking pass
// ⭐ SSOT: factor curves, formulas, weights, bands and playoff breakpoints live here
type RuleSet struct {
	Meta       Meta             `yaml:"meta" json:"meta"`
	Factors    []Factor         `yaml:"factors" json:"factors"`
	Formulas   Formulas         `yaml:"formulas" json:"formulas"`
	Overall    OverallWeights   `yaml:"overall_weights_pct" json:"overall_weights_pct"`
	Percentile PercentileConfig `yaml:"percentile" json:"percentile"`
	Team       TeamConfig       `yaml:"team" json:"team"`
	Playoff    PlayoffConfig    `yaml:"playoff" json:"playoff"`
}

// Meta identifies the rule set version
type Meta struct {
	RulesetID   string `yaml:"ruleset_id" json:"ruleset_id"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
}

// CurveType selects how a raw input becomes points
type CurveType string

const (
	CurveLinear        CurveType = "linear"
	CurveInverseLinear CurveType = "inverse_linear" // lower is better (GAA)
	CurveTiered        CurveType = "tiered"         // categorical label → points
	CurveThreshold     CurveType = "threshold"      // ascending numeric steps
	CurvePerEvent      CurveType = "per_event"      // units × points_per_unit
)

// Curve holds the parameters of one curve type. Only the fields of the
// selected type are read.
type Curve struct {
	Type          CurveType          `yaml:"type" json:"type"`
	Min           float64            `yaml:"min,omitempty" json:"min,omitempty"`
	Max           float64            `yaml:"max,omitempty" json:"max,omitempty"`
	Tiers         map[string]float64 `yaml:"tiers,omitempty" json:"tiers,omitempty"`
	Steps         []Step             `yaml:"steps,omitempty" json:"steps,omitempty"`
	PointsPerUnit float64            `yaml:"points_per_unit,omitempty" json:"points_per_unit,omitempty"`
}

// Step is one threshold step: value ≥ Min earns Points
type Step struct {
	Min    float64 `yaml:"min" json:"min"`
	Points float64 `yaml:"points" json:"points"`
}

// Factor is one scoring signal
type Factor struct {
	Code      string               `yaml:"code" json:"code"`
	Name      string               `yaml:"name" json:"name"`
	MaxPoints float64              `yaml:"max_points" json:"max_points"`
	Active    bool                 `yaml:"is_active" json:"is_active"`
	Category  contracts.Category   `yaml:"category" json:"category"`
	Positions []contracts.Position `yaml:"positions,omitempty" json:"positions,omitempty"` // empty = every position
	Curve     Curve                `yaml:"curve" json:"curve"`
}

// AppliesTo reports whether the factor is scored for a position
func (f *Factor) AppliesTo(pos contracts.Position) bool {
	if len(f.Positions) == 0 {
		return true
	}
	for _, p := range f.Positions {
		if p == pos {
			return true
		}
	}
	return false
}

// IsPerformance reports whether the factor counts toward PerformanceTotal
func (f *Factor) IsPerformance() bool {
	return f.Category == contracts.CategoryPerformance
}

// Term is one weighted term of a category formula: weight · Σfactors / cap
type Term struct {
	Factors []string `yaml:"factors" json:"factors"`
	Cap     float64  `yaml:"cap" json:"cap"`
	Weight  float64  `yaml:"weight" json:"weight"`
}

// Formula is the list of terms of one category. Weights sum to 1.
type Formula []Term

// FormulaTable holds one formula per category for one variant
type FormulaTable struct {
	Performance  Formula `yaml:"performance" json:"performance"`
	Level        Formula `yaml:"level" json:"level"`
	Visibility   Formula `yaml:"visibility" json:"visibility"`
	Achievements Formula `yaml:"achievements" json:"achievements"`
	Physical     Formula `yaml:"physical" json:"physical"`
	Trending     Formula `yaml:"trending" json:"trending"`
}

// Get returns the formula of a category
func (t FormulaTable) Get(c contracts.Category) Formula {
	switch c {
	case contracts.CategoryPerformance:
		return t.Performance
	case contracts.CategoryLevel:
		return t.Level
	case contracts.CategoryVisibility:
		return t.Visibility
	case contracts.CategoryAchievements:
		return t.Achievements
	case contracts.CategoryPhysical:
		return t.Physical
	case contracts.CategoryTrending:
		return t.Trending
	default:
		return nil
	}
}

// Variant names a formula table
type Variant string

const (
	VariantSkater     Variant = "skater"
	VariantGoaltender Variant = "goaltender"
)

// VariantFor maps a position to its formula variant
func VariantFor(pos contracts.Position) Variant {
	if pos.IsGoalie() {
		return VariantGoaltender
	}
	return VariantSkater
}

// Formulas is the tagged variant of formula tables keyed by position
type Formulas struct {
	Skater     FormulaTable `yaml:"skater" json:"skater"`
	Goaltender FormulaTable `yaml:"goaltender" json:"goaltender"`
}

// For returns the table used for a position
func (f Formulas) For(pos contracts.Position) FormulaTable {
	if VariantFor(pos) == VariantGoaltender {
		return f.Goaltender
	}
	return f.Skater
}

// OverallWeights are integer percent weights of each category rating (sum 100)
type OverallWeights struct {
	Performance  int `yaml:"performance" json:"performance"`
	Level        int `yaml:"level" json:"level"`
	Visibility   int `yaml:"visibility" json:"visibility"`
	Achievements int `yaml:"achievements" json:"achievements"`
	Physical     int `yaml:"physical" json:"physical"`
	Trending     int `yaml:"trending" json:"trending"`
}

// Sum returns the total weight in percent
func (w OverallWeights) Sum() int {
	return w.Performance + w.Level + w.Visibility + w.Achievements + w.Physical + w.Trending
}

// Fraction returns the weight of a category as a fraction of 1
func (w OverallWeights) Fraction(c contracts.Category) float64 {
	var pct int
	switch c {
	case contracts.CategoryPerformance:
		pct = w.Performance
	case contracts.CategoryLevel:
		pct = w.Level
	case contracts.CategoryVisibility:
		pct = w.Visibility
	case contracts.CategoryAchievements:
		pct = w.Achievements
	case contracts.CategoryPhysical:
		pct = w.Physical
	case contracts.CategoryTrending:
		pct = w.Trending
	}
	return float64(pct) / 100
}

// PercentileConfig controls peer grouping
type PercentileConfig struct {
	PartitionByNationality bool `yaml:"partition_by_nationality" json:"partition_by_nationality"`
}

// Band is the average-score range mapped onto the team rating scale
type Band struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// SeasonBand overrides the band for one season
type SeasonBand struct {
	Season string  `yaml:"season" json:"season"`
	Min    float64 `yaml:"min" json:"min"`
	Max    float64 `yaml:"max" json:"max"`
}

// BlendConfig is the optional standings-based team rating blend
type BlendConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled"`
	MinGames       int     `yaml:"min_games" json:"min_games"`
	WinWeight      float64 `yaml:"win_weight" json:"win_weight"`
	GoalDiffWeight float64 `yaml:"goal_diff_weight" json:"goal_diff_weight"`
	RosterWeight   float64 `yaml:"roster_weight" json:"roster_weight"`
}

// Fixed output ranges; only the raw-score bands are tunable
const (
	TeamRatingFloor   = 70
	TeamRatingCeiling = 99

	// EliteBidTailMax caps the elite bid of every team ranked past the last tier
	EliteBidTailMax = 3.0
)

// TeamConfig holds team aggregation settings.
// Floor and Ceiling must equal TeamRatingFloor and TeamRatingCeiling.
type TeamConfig struct {
	Floor       int          `yaml:"floor" json:"floor"`
	Ceiling     int          `yaml:"ceiling" json:"ceiling"`
	DefaultBand Band         `yaml:"default_band" json:"default_band"`
	SeasonBands []SeasonBand `yaml:"season_bands,omitempty" json:"season_bands,omitempty"`
	Blend       BlendConfig  `yaml:"blend" json:"blend"`
}

// BandFor returns the band configured for a season, falling back to the default
func (t TeamConfig) BandFor(season string) Band {
	for _, b := range t.SeasonBands {
		if b.Season == season {
			return Band{Min: b.Min, Max: b.Max}
		}
	}
	return t.DefaultBand
}

// BidTier interpolates linearly from High at FromRank to Low at ToRank
type BidTier struct {
	FromRank int     `yaml:"from_rank" json:"from_rank"`
	ToRank   int     `yaml:"to_rank" json:"to_rank"`
	High     float64 `yaml:"high" json:"high"`
	Low      float64 `yaml:"low" json:"low"`
}

// BidTail applies past the last tier: max(Start − Step·(rank − firstRank), Floor)
type BidTail struct {
	Start float64 `yaml:"start" json:"start"`
	Step  float64 `yaml:"step" json:"step"`
	Floor float64 `yaml:"floor" json:"floor"`
}

// QualifyBucket maps a position among same-class teams to a conditional qualify probability
type QualifyBucket struct {
	MaxPosition int     `yaml:"max_position" json:"max_position"`
	Probability float64 `yaml:"probability" json:"probability"`
}

// PlayoffConfig holds the playoff probability breakpoints
type PlayoffConfig struct {
	LargeEnrollmentMin int `yaml:"large_enrollment_min" json:"large_enrollment_min"`

	EliteBidTiers []BidTier `yaml:"elite_bid_tiers" json:"elite_bid_tiers"`
	EliteBidTail  BidTail   `yaml:"elite_bid_tail" json:"elite_bid_tail"`

	ChampPoolSize int     `yaml:"champ_pool_size" json:"champ_pool_size"`
	Temperature   float64 `yaml:"temperature" json:"temperature"`
	MinEliteChamp float64 `yaml:"min_elite_champ" json:"min_elite_champ"`
	EliteChampCap float64 `yaml:"elite_champ_cap" json:"elite_champ_cap"`

	ClassBidRankFloor int             `yaml:"class_bid_rank_floor" json:"class_bid_rank_floor"` // ranks ≤ floor get no class bid
	QualifyBuckets    []QualifyBucket `yaml:"qualify_buckets" json:"qualify_buckets"`
	QualifyDefault    float64         `yaml:"qualify_default" json:"qualify_default"`
	ClassChampCap     float64         `yaml:"class_champ_cap" json:"class_champ_cap"`
}

// FactorByCode returns the factor with the given code
func (rs *RuleSet) FactorByCode(code string) (*Factor, bool) {
	for i := range rs.Factors {
		if rs.Factors[i].Code == code {
			return &rs.Factors[i], true
		}
	}
	return nil, false
}
