package s2_percentile

import (
	"math"
	"sort"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/ruleset"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// Result is the population-relative standing of one player
type Result struct {
	PlayerID        string
	PeerGroup       contracts.PeerGroup
	PeerSize        int
	PeerRank        int // 1 + count(strictly higher total points)
	Percentiles     contracts.CategoryValues
	TotalPercentile float64
}

// Engine computes peer-group percentiles
// ⭐ SSOT: percentile = 100 · count(strictly lower) / (n − 1), 1 decimal
type Engine struct {
	partitionByNationality bool
	logger                 *logger.Logger
}

// NewEngine creates a new percentile engine
func NewEngine(cfg ruleset.PercentileConfig, log *logger.Logger) *Engine {
	return &Engine{
		partitionByNationality: cfg.PartitionByNationality,
		logger:                 log,
	}
}

// GroupOf returns the peer group of a player
func (e *Engine) GroupOf(birthYear int, pos contracts.Position, nationality string) contracts.PeerGroup {
	g := contracts.PeerGroup{BirthYear: birthYear, Position: pos}
	if e.partitionByNationality {
		g.Nationality = nationality
	}
	return g
}

// Compute ranks every player against its peer group.
// Results are returned in input order.
func (e *Engine) Compute(records []contracts.PlayerFactorRecord) ([]Result, int) {
	results := make([]Result, len(records))
	groups := make(map[contracts.PeerGroup][]int)

	for i := range records {
		r := &records[i]
		g := e.GroupOf(r.BirthYear, r.Position, r.Nationality)
		groups[g] = append(groups[g], i)
		results[i] = Result{PlayerID: r.PlayerID, PeerGroup: g}
	}

	singletons := 0
	for _, idx := range groups {
		if len(idx) < 2 {
			singletons++
		}

		values := make([]float64, len(idx))

		for _, cat := range contracts.AllCategories {
			for k, i := range idx {
				values[k] = records[i].CategorySums.Get(cat)
			}
			for k, p := range Percentiles(values) {
				results[idx[k]].Percentiles.Set(cat, p)
			}
		}

		for k, i := range idx {
			values[k] = records[i].TotalPoints
		}
		pcts := Percentiles(values)
		ranks := CompetitionRanks(values)
		for k, i := range idx {
			results[i].TotalPercentile = pcts[k]
			results[i].PeerRank = ranks[k]
			results[i].PeerSize = len(idx)
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"players":     len(records),
		"peer_groups": len(groups),
		"singletons":  singletons,
	}).Info("Computed peer-group percentiles")

	return results, len(groups)
}

// ApplyOverall fills OverallPercentile from each record's overall rating,
// grouping by the record's PeerGroup.
func (e *Engine) ApplyOverall(ratings []contracts.CategoryRatingRecord) {
	groups := make(map[contracts.PeerGroup][]int)
	for i := range ratings {
		groups[ratings[i].PeerGroup] = append(groups[ratings[i].PeerGroup], i)
	}

	for _, idx := range groups {
		values := make([]float64, len(idx))
		for k, i := range idx {
			values[k] = float64(ratings[i].Overall)
		}
		for k, p := range Percentiles(values) {
			ratings[idx[k]].OverallPercentile = p
		}
	}
}

// Percentiles returns 100 · count(strictly lower) / (n − 1) for each value,
// rounded to 1 decimal. Ties share a percentile. Fewer than 2 values ⇒ 0.
func Percentiles(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	sorted := sortedCopy(values)
	for i, v := range values {
		lower := sort.SearchFloat64s(sorted, v)
		out[i] = round1(100 * float64(lower) / float64(n-1))
	}
	return out
}

// CompetitionRanks returns 1 + count(strictly higher) for each value
// (standard competition ranking: 1, 2, 2, 4).
func CompetitionRanks(values []float64) []int {
	n := len(values)
	out := make([]int, n)
	sorted := sortedCopy(values)
	for i, v := range values {
		notHigher := sort.Search(n, func(j int) bool { return sorted[j] > v })
		out[i] = 1 + (n - notHigher)
	}
	return out
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
