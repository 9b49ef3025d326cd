package s1_factors

import (
	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/ruleset"
)

// Aggregator scores every configured factor for a player and sums them
// ⭐ SSOT: S1 totals (total, performance, direct load, category sums, coverage)
type Aggregator struct {
	rules      *ruleset.RuleSet
	normalizer *Normalizer
}

// NewAggregator creates a new aggregator for a rule set
func NewAggregator(rules *ruleset.RuleSet, normalizer *Normalizer) *Aggregator {
	return &Aggregator{
		rules:      rules,
		normalizer: normalizer,
	}
}

// Aggregate builds the factor record of one player. Totals are not bounded here.
func (a *Aggregator) Aggregate(p contracts.PlayerInput) (contracts.PlayerFactorRecord, error) {
	rec := contracts.PlayerFactorRecord{
		PlayerID:    p.PlayerID,
		Name:        p.Name,
		BirthYear:   p.BirthYear,
		Position:    p.Position,
		Nationality: p.Nationality,
		Factors:     make([]contracts.FactorScore, 0, len(a.rules.Factors)),
	}

	for i := range a.rules.Factors {
		f := &a.rules.Factors[i]

		score, err := a.normalizer.Score(f, p.Position, p.Inputs[f.Code])
		if err != nil {
			return rec, err
		}
		rec.Factors = append(rec.Factors, score)

		if !score.Active || !score.Applicable {
			continue
		}

		rec.ApplicableCount++
		if score.Covered {
			rec.CoveredCount++
		}

		rec.TotalPoints += score.Points
		rec.CategorySums.Add(f.Category, score.Points)
		if f.IsPerformance() {
			rec.PerformanceTotal += score.Points
		} else {
			rec.DirectLoadTotal += score.Points
		}
	}

	if rec.ApplicableCount == 0 {
		rec.Coverage = 1.0
	} else {
		rec.Coverage = float64(rec.CoveredCount) / float64(rec.ApplicableCount)
	}

	return rec, nil
}
