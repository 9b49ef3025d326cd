package contracts

import (
	"fmt"
	"math"
	"strings"
)

// Position is the player's primary position
type Position string

const (
	PositionForward Position = "F"
	PositionDefense Position = "D"
	PositionGoalie  Position = "G"
)

// ParsePosition accepts the codes used by scouting feeds (C, LW, RW, LD, RD, GK, ...)
func ParsePosition(s string) (Position, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "F", "FW", "FWD", "C", "LW", "RW", "W":
		return PositionForward, nil
	case "D", "LD", "RD", "DEF":
		return PositionDefense, nil
	case "G", "GK", "GOALIE", "GOALTENDER":
		return PositionGoalie, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}
}

// IsGoalie reports whether the position uses the goaltender formula variant
func (p Position) IsGoalie() bool {
	return p == PositionGoalie
}

// RawInput is one raw factor input: a number, a categorical label, or absent.
// A zero RawInput is absent.
type RawInput struct {
	Value *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Label *string  `json:"label,omitempty" yaml:"label,omitempty"`
}

// Numeric builds a numeric input
func Numeric(v float64) RawInput {
	return RawInput{Value: &v}
}

// Label builds a categorical input
func Label(s string) RawInput {
	return RawInput{Label: &s}
}

// IsAbsent reports whether there is no usable input.
// NaN and ±Inf count as absent.
func (r RawInput) IsAbsent() bool {
	if r.Label != nil {
		return false
	}
	if r.Value == nil {
		return true
	}
	return math.IsNaN(*r.Value) || math.IsInf(*r.Value, 0)
}

// PlayerInput is one player as read from the snapshot
// ⭐ SSOT: S0 → S1 player contract
type PlayerInput struct {
	PlayerID    string              `json:"player_id" yaml:"player_id"`
	Name        string              `json:"name" yaml:"name"`
	BirthYear   int                 `json:"birth_year" yaml:"birth_year"`
	Position    Position            `json:"position" yaml:"position"`
	Nationality string              `json:"nationality,omitempty" yaml:"nationality,omitempty"`
	Inputs      map[string]RawInput `json:"inputs,omitempty" yaml:"inputs,omitempty"` // factor code → raw input; missing key = absent
}

// FactorScore is the normalized output of one factor for one player
type FactorScore struct {
	Code       string  `json:"code"`
	Points     float64 `json:"points"`
	Covered    bool    `json:"covered"`    // raw input existed
	Active     bool    `json:"active"`     // factor enabled in the rule set
	Applicable bool    `json:"applicable"` // factor applies to the player's position
}

// Category is one of the six rating categories
type Category string

const (
	CategoryPerformance  Category = "performance"
	CategoryLevel        Category = "level"
	CategoryVisibility   Category = "visibility"
	CategoryAchievements Category = "achievements"
	CategoryPhysical     Category = "physical"
	CategoryTrending     Category = "trending"
)

// AllCategories lists the rating categories in display order
var AllCategories = []Category{
	CategoryPerformance,
	CategoryLevel,
	CategoryVisibility,
	CategoryAchievements,
	CategoryPhysical,
	CategoryTrending,
}

// ParseCategory validates a category name
func ParseCategory(s string) (Category, bool) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// CategoryValues holds one number per category
type CategoryValues struct {
	Performance  float64 `json:"performance"`
	Level        float64 `json:"level"`
	Visibility   float64 `json:"visibility"`
	Achievements float64 `json:"achievements"`
	Physical     float64 `json:"physical"`
	Trending     float64 `json:"trending"`
}

// Get returns the value for a category
func (v CategoryValues) Get(c Category) float64 {
	switch c {
	case CategoryPerformance:
		return v.Performance
	case CategoryLevel:
		return v.Level
	case CategoryVisibility:
		return v.Visibility
	case CategoryAchievements:
		return v.Achievements
	case CategoryPhysical:
		return v.Physical
	case CategoryTrending:
		return v.Trending
	default:
		return 0
	}
}

// Add adds delta to the value for a category
func (v *CategoryValues) Add(c Category, delta float64) {
	v.Set(c, v.Get(c)+delta)
}

// Set sets the value for a category
func (v *CategoryValues) Set(c Category, value float64) {
	switch c {
	case CategoryPerformance:
		v.Performance = value
	case CategoryLevel:
		v.Level = value
	case CategoryVisibility:
		v.Visibility = value
	case CategoryAchievements:
		v.Achievements = value
	case CategoryPhysical:
		v.Physical = value
	case CategoryTrending:
		v.Trending = value
	}
}

// CategoryRatings holds one 1–99 rating per category
type CategoryRatings struct {
	Performance  int `json:"performance"`
	Level        int `json:"level"`
	Visibility   int `json:"visibility"`
	Achievements int `json:"achievements"`
	Physical     int `json:"physical"`
	Trending     int `json:"trending"`
}

// Get returns the rating for a category
func (r CategoryRatings) Get(c Category) int {
	switch c {
	case CategoryPerformance:
		return r.Performance
	case CategoryLevel:
		return r.Level
	case CategoryVisibility:
		return r.Visibility
	case CategoryAchievements:
		return r.Achievements
	case CategoryPhysical:
		return r.Physical
	case CategoryTrending:
		return r.Trending
	default:
		return 0
	}
}

// Set sets the rating for a category
func (r *CategoryRatings) Set(c Category, value int) {
	switch c {
	case CategoryPerformance:
		r.Performance = value
	case CategoryLevel:
		r.Level = value
	case CategoryVisibility:
		r.Visibility = value
	case CategoryAchievements:
		r.Achievements = value
	case CategoryPhysical:
		r.Physical = value
	case CategoryTrending:
		r.Trending = value
	}
}

// PlayerFactorRecord is the S1 output for one player
// ⭐ SSOT: S1 → S2/S3 contract
type PlayerFactorRecord struct {
	PlayerID    string   `json:"player_id"`
	Name        string   `json:"name"`
	BirthYear   int      `json:"birth_year"`
	Position    Position `json:"position"`
	Nationality string   `json:"nationality,omitempty"`

	Factors []FactorScore `json:"factors"` // rule set order

	TotalPoints      float64        `json:"total_points"`
	PerformanceTotal float64        `json:"performance_total"`
	DirectLoadTotal  float64        `json:"direct_load_total"`
	CategorySums     CategoryValues `json:"category_sums"`

	CoveredCount    int     `json:"covered_count"`
	ApplicableCount int     `json:"applicable_count"`
	Coverage        float64 `json:"coverage"` // covered / (active ∧ applicable)
}

// Points returns the points of a factor code (0 when absent)
func (r *PlayerFactorRecord) Points(code string) float64 {
	for _, f := range r.Factors {
		if f.Code == code {
			return f.Points
		}
	}
	return 0
}

// PeerGroup identifies the population a player is compared against
type PeerGroup struct {
	BirthYear   int      `json:"birth_year"`
	Position    Position `json:"position"`
	Nationality string   `json:"nationality,omitempty"` // set only when partitioning by nationality
}

// String renders the group as "2008/F" or "2008/F/CAN"
func (g PeerGroup) String() string {
	if g.Nationality == "" {
		return fmt.Sprintf("%d/%s", g.BirthYear, g.Position)
	}
	return fmt.Sprintf("%d/%s/%s", g.BirthYear, g.Position, g.Nationality)
}

// CategoryRatingRecord is the S2+S3 output for one player
// ⭐ SSOT: published per-player rating row
type CategoryRatingRecord struct {
	PlayerID  string    `json:"player_id"`
	Name      string    `json:"name"`
	BirthYear int       `json:"birth_year"`
	Position  Position  `json:"position"`
	PeerGroup PeerGroup `json:"peer_group"`

	Sums        CategoryValues  `json:"sums"`
	Percentiles CategoryValues  `json:"percentiles"` // 0–100, 1 decimal
	Ratings     CategoryRatings `json:"ratings"`     // 1–99
	Overall     int             `json:"overall"`     // 1–99

	TotalPoints       float64 `json:"total_points"`
	TotalPercentile   float64 `json:"total_percentile"`
	OverallPercentile float64 `json:"overall_percentile"`
	PeerRank          int     `json:"peer_rank"` // 1 + count(strictly higher total_points)
	PeerSize          int     `json:"peer_size"`
}
