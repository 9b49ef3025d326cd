package s3_ratings

import (
	"math"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/ruleset"
	"github.com/prodigy-ranking/backend/internal/s2_percentile"
)

const (
	minRating = 1
	maxRating = 99
)

// Transformer maps category sums onto bounded 1–99 ratings
// ⭐ SSOT: rating = round(clamp(Σ w · Σfactors / cap · 99, 1, 99))
type Transformer struct {
	formulas ruleset.Formulas
	weights  ruleset.OverallWeights
}

// NewTransformer creates a new rating transformer for a rule set
func NewTransformer(rules *ruleset.RuleSet) *Transformer {
	return &Transformer{
		formulas: rules.Formulas,
		weights:  rules.Overall,
	}
}

// CategoryRating evaluates one category formula for a player
func (t *Transformer) CategoryRating(rec *contracts.PlayerFactorRecord, cat contracts.Category) int {
	formula := t.formulas.For(rec.Position).Get(cat)

	raw := 0.0
	for _, term := range formula {
		sum := 0.0
		for _, code := range term.Factors {
			sum += rec.Points(code)
		}
		raw += term.Weight * sum / term.Cap * maxRating
	}

	return clampRound(raw)
}

// Overall combines category ratings with the configured percent weights
func (t *Transformer) Overall(ratings contracts.CategoryRatings) int {
	raw := 0.0
	for _, cat := range contracts.AllCategories {
		raw += t.weights.Fraction(cat) * float64(ratings.Get(cat))
	}
	return clampRound(raw)
}

// Transform builds the published rating record of one player from its
// factor record and its peer-group standing. OverallPercentile is filled
// later, once every overall rating is known.
func (t *Transformer) Transform(rec *contracts.PlayerFactorRecord, standing s2_percentile.Result) contracts.CategoryRatingRecord {
	out := contracts.CategoryRatingRecord{
		PlayerID:        rec.PlayerID,
		Name:            rec.Name,
		BirthYear:       rec.BirthYear,
		Position:        rec.Position,
		PeerGroup:       standing.PeerGroup,
		Sums:            rec.CategorySums,
		Percentiles:     standing.Percentiles,
		TotalPoints:     rec.TotalPoints,
		TotalPercentile: standing.TotalPercentile,
		PeerRank:        standing.PeerRank,
		PeerSize:        standing.PeerSize,
	}

	for _, cat := range contracts.AllCategories {
		out.Ratings.Set(cat, t.CategoryRating(rec, cat))
	}
	out.Overall = t.Overall(out.Ratings)

	return out
}

// clampRound rounds half away from zero after clamping to [1, 99]
func clampRound(v float64) int {
	if math.IsNaN(v) {
		return minRating
	}
	return int(math.Round(math.Max(minRating, math.Min(maxRating, v))))
}
