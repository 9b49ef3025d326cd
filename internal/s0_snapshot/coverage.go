package s0_snapshot

import (
	"math"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/ruleset"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// DefaultMinFactorCoverage is the per-factor rate below which the gate warns
const DefaultMinFactorCoverage = 0.05

// QualityGate measures raw-input coverage of a snapshot
// ⭐ SSOT: S0 → S1 data quality report; it never blocks a run
type QualityGate struct {
	rules       *ruleset.RuleSet
	minCoverage float64
	logger      *logger.Logger
}

// NewQualityGate creates a new quality gate
func NewQualityGate(rules *ruleset.RuleSet, minCoverage float64, log *logger.Logger) *QualityGate {
	return &QualityGate{
		rules:       rules,
		minCoverage: minCoverage,
		logger:      log,
	}
}

// Check counts, per active factor, the players it applies to and how many
// of them carry an input. Rates are rounded to 4 decimals.
func (g *QualityGate) Check(snap *contracts.Snapshot) contracts.CoverageReport {
	report := contracts.CoverageReport{
		Players: len(snap.Players),
		Teams:   len(snap.Teams),
	}
	for _, t := range snap.Teams {
		if t.Rank > 0 {
			report.RankedTeams++
		}
	}

	sum := 0.0
	for i := range g.rules.Factors {
		f := &g.rules.Factors[i]
		if !f.Active {
			continue
		}

		fc := contracts.FactorCoverage{Code: f.Code}
		for _, p := range snap.Players {
			if !f.AppliesTo(p.Position) {
				continue
			}
			fc.Applicable++
			if in, ok := p.Inputs[f.Code]; ok && !in.IsAbsent() {
				fc.Covered++
			}
		}
		if fc.Applicable > 0 {
			fc.Rate = round4(float64(fc.Covered) / float64(fc.Applicable))
		}

		if fc.Applicable > 0 && fc.Rate < g.minCoverage {
			g.logger.WithFields(map[string]interface{}{
				"factor":     fc.Code,
				"applicable": fc.Applicable,
				"covered":    fc.Covered,
				"rate":       fc.Rate,
			}).Warn("Low factor coverage")
		}

		sum += fc.Rate
		report.Factors = append(report.Factors, fc)
	}

	if len(report.Factors) > 0 {
		report.AvgRate = round4(sum / float64(len(report.Factors)))
	}

	g.logger.WithFields(map[string]interface{}{
		"season":       snap.Season,
		"players":      report.Players,
		"teams":        report.Teams,
		"ranked_teams": report.RankedTeams,
		"avg_rate":     report.AvgRate,
	}).Info("Snapshot coverage")

	return report
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
