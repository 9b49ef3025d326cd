package s4_teams

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/ruleset"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// lowMatchRate triggers a data-quality warning for a roster
const lowMatchRate = 0.5

// Aggregator rolls player scores up into team ratings
// ⭐ SSOT: team overall = round(clamp(floor + span · (avg − band_min)/(band_max − band_min)))
type Aggregator struct {
	cfg    ruleset.TeamConfig
	logger *logger.Logger
}

// NewAggregator creates a new team aggregator
func NewAggregator(cfg ruleset.TeamConfig, log *logger.Logger) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		logger: log,
	}
}

// Aggregate builds one record per team, in input order.
// scores maps player_id → TotalPoints for every scored player.
func (a *Aggregator) Aggregate(season string, teams []contracts.TeamInput, scores map[string]float64) []contracts.TeamRankingRecord {
	band := a.cfg.BandFor(season)
	out := make([]contracts.TeamRankingRecord, len(teams))

	for i := range teams {
		out[i] = a.aggregateTeam(season, band, &teams[i], scores)

		if out[i].RosterSize > 0 && out[i].MatchRate < lowMatchRate {
			a.logger.WithFields(map[string]interface{}{
				"team_id":    out[i].TeamID,
				"roster":     out[i].RosterSize,
				"matched":    out[i].MatchedCount,
				"match_rate": out[i].MatchRate,
			}).Warn("Low roster match rate")
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"season":   season,
		"teams":    len(teams),
		"band_min": band.Min,
		"band_max": band.Max,
	}).Info("Aggregated team ratings")

	return out
}

func (a *Aggregator) aggregateTeam(season string, band ruleset.Band, team *contracts.TeamInput, scores map[string]float64) contracts.TeamRankingRecord {
	rec := contracts.TeamRankingRecord{
		TeamID: team.TeamID,
		Name:   team.Name,
		Season: season,
		Rank:   team.Rank,
	}

	seen := make(map[string]struct{}, len(team.Roster))
	var matched []float64
	for _, playerID := range team.Roster {
		if _, dup := seen[playerID]; dup {
			continue
		}
		seen[playerID] = struct{}{}

		if score, ok := scores[playerID]; ok {
			matched = append(matched, score)
		}
	}

	rec.RosterSize = len(seen)
	rec.MatchedCount = len(matched)
	if rec.RosterSize > 0 {
		rec.MatchRate = float64(rec.MatchedCount) / float64(rec.RosterSize)
	}

	rosterNorm := 0.0
	if len(matched) > 0 {
		sort.Float64s(matched)
		rec.AvgScore = stat.Mean(matched, nil)
		rec.MedianScore = median(matched)
		rec.MaxScore = floats.Max(matched)
		rec.TotalScore = floats.Sum(matched)
		rosterNorm = clamp((rec.AvgScore-band.Min)/(band.Max-band.Min), 0, 1)
	}

	span := float64(a.cfg.Ceiling - a.cfg.Floor)
	rec.RosterRating = a.bound(float64(a.cfg.Floor) + span*rosterNorm)
	rec.OverallRating = rec.RosterRating

	if blend := a.cfg.Blend; blend.Enabled && team.Standings != nil && team.Standings.GamesPlayed >= blend.MinGames {
		s := team.Standings
		goalDiffNorm := clamp((s.GoalDiffPerGame()+2)/4, 0, 1)
		composite := blend.WinWeight*s.WinPct() + blend.GoalDiffWeight*goalDiffNorm + blend.RosterWeight*rosterNorm
		rec.OverallRating = a.bound(float64(a.cfg.Floor) + math.Round(span*composite))
		rec.PerformanceBlend = true
	}

	return rec
}

// bound rounds half away from zero and clamps to [floor, ceiling]
func (a *Aggregator) bound(v float64) int {
	r := int(math.Round(v))
	if r < a.cfg.Floor {
		return a.cfg.Floor
	}
	if r > a.cfg.Ceiling {
		return a.cfg.Ceiling
	}
	return r
}

// median of sorted values; the mean of the two middle values when even
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
