package s5_playoff

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/ruleset"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// Classifier resolves a team to its playoff classification
type Classifier interface {
	Resolve(teamID, name string) (Resolution, error)
}

// Result is one playoff pass
type Result struct {
	Records  []contracts.PlayoffProbabilityRecord
	Excluded int // unresolved classification
	Unranked int // missing authoritative rank
	Issues   []contracts.TeamIssue
}

// Engine computes bid and championship odds from rank and rating.
// ⭐ SSOT: breakpoints, caps, pool size and temperature come from ruleset.PlayoffConfig
type Engine struct {
	cfg        ruleset.PlayoffConfig
	classifier Classifier
	logger     *logger.Logger
}

// NewEngine creates a new playoff engine
func NewEngine(cfg ruleset.PlayoffConfig, classifier Classifier, log *logger.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		classifier: classifier,
		logger:     log,
	}
}

type entry struct {
	team       *contracts.TeamRankingRecord
	resolution Resolution
}

// Compute scores every team that has a classification and a rank.
// Records are ordered by rank. Duplicate ranks fail the whole pass.
func (e *Engine) Compute(season string, teams []contracts.TeamRankingRecord) (*Result, error) {
	res := &Result{}
	eligible := make([]entry, 0, len(teams))

	for i := range teams {
		t := &teams[i]

		resolution, err := e.classifier.Resolve(t.TeamID, t.Name)
		if err != nil {
			res.Excluded++
			res.Issues = append(res.Issues, contracts.TeamIssue{TeamID: t.TeamID, Name: t.Name, Reason: err.Error()})
			e.logger.WithFields(map[string]interface{}{
				"team_id": t.TeamID,
				"name":    t.Name,
			}).Warn("Team excluded from playoff pools: classification not resolved")
			continue
		}

		if t.Rank <= 0 {
			err := fmt.Errorf("team %s: %w", t.TeamID, contracts.ErrMissingRank)
			res.Unranked++
			res.Issues = append(res.Issues, contracts.TeamIssue{TeamID: t.TeamID, Name: t.Name, Reason: err.Error()})
			e.logger.WithFields(map[string]interface{}{
				"team_id": t.TeamID,
				"name":    t.Name,
			}).Warn("Team has no authoritative rank")
			continue
		}

		eligible = append(eligible, entry{team: t, resolution: resolution})
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].team.Rank < eligible[j].team.Rank
	})
	for i := 1; i < len(eligible); i++ {
		if eligible[i].team.Rank == eligible[i-1].team.Rank {
			return nil, fmt.Errorf("rank %d shared by %s and %s: %w",
				eligible[i].team.Rank, eligible[i-1].team.TeamID, eligible[i].team.TeamID, contracts.ErrDuplicateRank)
		}
	}

	records := make([]contracts.PlayoffProbabilityRecord, len(eligible))
	for i, en := range eligible {
		records[i] = contracts.PlayoffProbabilityRecord{
			TeamID:         en.team.TeamID,
			Name:           en.team.Name,
			Season:         season,
			Rank:           en.team.Rank,
			OverallRating:  en.team.OverallRating,
			Classification: en.resolution.Classification,
			Enrollment:     en.resolution.Enrollment,
			EliteBid:       e.EliteBid(en.team.Rank),
		}
	}

	e.eliteChamp(records)
	e.classOdds(records, contracts.ClassificationLarge)
	e.classOdds(records, contracts.ClassificationSmall)

	for i := range records {
		r := &records[i]
		r.EliteBid = round1(r.EliteBid)
		r.EliteChamp = round1(r.EliteChamp)
		r.LargeBid = round1(r.LargeBid)
		r.LargeChamp = round1(r.LargeChamp)
		r.SmallBid = round1(r.SmallBid)
		r.SmallChamp = round1(r.SmallChamp)
	}
	res.Records = records

	e.logger.WithFields(map[string]interface{}{
		"season":   season,
		"scored":   len(records),
		"excluded": res.Excluded,
		"unranked": res.Unranked,
	}).Info("Computed playoff probabilities")

	return res, nil
}

// EliteBid is a step function of rank; each tier interpolates linearly
// from High at its first rank to Low at its last rank.
func (e *Engine) EliteBid(rank int) float64 {
	if rank <= 0 {
		return 0
	}

	last := 0
	for _, tier := range e.cfg.EliteBidTiers {
		if rank >= tier.FromRank && rank <= tier.ToRank {
			if tier.ToRank == tier.FromRank {
				return tier.High
			}
			t := float64(rank-tier.FromRank) / float64(tier.ToRank-tier.FromRank)
			return tier.High + (tier.Low-tier.High)*t
		}
		if tier.ToRank > last {
			last = tier.ToRank
		}
	}

	tail := e.cfg.EliteBidTail
	return math.Max(tail.Start-tail.Step*float64(rank-(last+1)), tail.Floor)
}

// eliteChamp gives the pool a softmax share of exp(rating/T); everyone else
// gets the configured minimum. The pool is the teams ranked 1..ChampPoolSize
// globally, so an excluded top team shrinks it rather than pulling in the next
// rank. records must be ordered by rank.
func (e *Engine) eliteChamp(records []contracts.PlayoffProbabilityRecord) {
	pool := 0
	for pool < len(records) && records[pool].Rank <= e.cfg.ChampPoolSize {
		pool++
	}
	ratings := make([]float64, pool)
	for i := 0; i < pool; i++ {
		ratings[i] = float64(records[i].OverallRating)
	}
	shares := e.softmax(ratings)

	for i := range records {
		if i < pool {
			records[i].EliteChamp = math.Min(shares[i]*100, e.cfg.EliteChampCap)
			continue
		}
		records[i].EliteChamp = e.cfg.MinEliteChamp
	}
}

// classOdds fills the bid and champ fields of one classification.
// The field is the same-class teams ranked below the elite cutoff, ordered by rank.
func (e *Engine) classOdds(records []contracts.PlayoffProbabilityRecord, class contracts.Classification) {
	var field []int
	for i := range records {
		if records[i].Classification == class && records[i].Rank > e.cfg.ClassBidRankFloor {
			field = append(field, i)
		}
	}

	bids := make([]float64, len(field))
	for pos, i := range field {
		bids[pos] = (1 - records[i].EliteBid/100) * e.qualify(pos+1) * 100
	}

	pool := min(e.cfg.ChampPoolSize, len(field))
	ratings := make([]float64, pool)
	for pos := 0; pos < pool; pos++ {
		ratings[pos] = float64(records[field[pos]].OverallRating)
	}
	shares := e.softmax(ratings)

	for pos, i := range field {
		champ := 0.0
		if pos < pool {
			champ = math.Min(bids[pos]*shares[pos], e.cfg.ClassChampCap)
		}

		switch class {
		case contracts.ClassificationLarge:
			records[i].LargeBid, records[i].LargeChamp = bids[pos], champ
		case contracts.ClassificationSmall:
			records[i].SmallBid, records[i].SmallChamp = bids[pos], champ
		}
	}
}

// qualify maps a 1-based position in the class field to a conditional qualify probability
func (e *Engine) qualify(position int) float64 {
	for _, b := range e.cfg.QualifyBuckets {
		if position <= b.MaxPosition {
			return b.Probability
		}
	}
	return e.cfg.QualifyDefault
}

// softmax of rating/T, computed through log-sum-exp
func (e *Engine) softmax(ratings []float64) []float64 {
	if len(ratings) == 0 {
		return nil
	}
	scaled := make([]float64, len(ratings))
	for i, r := range ratings {
		scaled[i] = r / e.cfg.Temperature
	}
	lse := floats.LogSumExp(scaled)
	out := make([]float64, len(scaled))
	for i, s := range scaled {
		out[i] = math.Exp(s - lse)
	}
	return out
}

// IsPassFailure reports whether err aborts a whole playoff pass
func IsPassFailure(err error) bool {
	return errors.Is(err, contracts.ErrDuplicateRank)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
