package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/ruleset"
	"github.com/prodigy-ranking/backend/internal/s0_snapshot"
	"github.com/prodigy-ranking/backend/internal/s1_factors"
	"github.com/prodigy-ranking/backend/internal/s2_percentile"
	"github.com/prodigy-ranking/backend/internal/s3_ratings"
	"github.com/prodigy-ranking/backend/internal/s4_teams"
	"github.com/prodigy-ranking/backend/internal/s5_playoff"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// Options bound the resources of a pass
type Options struct {
	Workers         int           // per-entity parallelism in S1/S3
	SnapshotTimeout time.Duration // 0 = no timeout
	PublishTimeout  time.Duration // 0 = no timeout
	MinCoverage     float64       // per-factor coverage warning threshold
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	Season string
	RunID  string // generated when empty
	DryRun bool   // compute only, skip publish
}

// RunResult holds the results of a complete pipeline run
type RunResult struct {
	RunID           string
	Season          string
	Success         bool
	Published       bool
	CompletedStages []contracts.Stage
	Output          *contracts.RunOutput
	Duration        time.Duration
	Error           error
}

// Orchestrator runs one pass: snapshot → compute the full derived set → publish
// ⭐ SSOT: stage ordering lives here and nowhere else
type Orchestrator struct {
	source     contracts.SnapshotSource
	sink       contracts.ResultSink
	rules      *ruleset.RuleSet
	rulesHash  string
	classifier s5_playoff.Classifier
	opts       Options

	qualityGate *s0_snapshot.QualityGate
	aggregator  *s1_factors.Aggregator
	percentile  *s2_percentile.Engine
	transformer *s3_ratings.Transformer
	teams       *s4_teams.Aggregator
	playoff     *s5_playoff.Engine

	logger *logger.Logger
}

// NewOrchestrator wires the stage components for one rule set.
// sink may be nil for compute-only use.
func NewOrchestrator(
	source contracts.SnapshotSource,
	sink contracts.ResultSink,
	rules *ruleset.RuleSet,
	classifier s5_playoff.Classifier,
	opts Options,
	log *logger.Logger,
) (*Orchestrator, error) {
	hash, err := ruleset.Hash(rules)
	if err != nil {
		return nil, fmt.Errorf("hash rule set: %w", err)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MinCoverage == 0 {
		opts.MinCoverage = s0_snapshot.DefaultMinFactorCoverage
	}

	return &Orchestrator{
		source:      source,
		sink:        sink,
		rules:       rules,
		rulesHash:   hash,
		classifier:  classifier,
		opts:        opts,
		qualityGate: s0_snapshot.NewQualityGate(rules, opts.MinCoverage, log.WithStage(contracts.StageSnapshot.String())),
		aggregator:  s1_factors.NewAggregator(rules, s1_factors.NewNormalizer()),
		percentile:  s2_percentile.NewEngine(rules.Percentile, log.WithStage(contracts.StagePercentile.String())),
		transformer: s3_ratings.NewTransformer(rules),
		teams:       s4_teams.NewAggregator(rules.Team, log.WithStage(contracts.StageTeams.String())),
		playoff:     s5_playoff.NewEngine(rules.Playoff, classifier, log.WithStage(contracts.StagePlayoff.String())),
		logger:      log,
	}, nil
}

// RulesetHash returns the hash recorded with every run
func (o *Orchestrator) RulesetHash() string {
	return o.rulesHash
}

// Run executes a complete pass
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	runID := config.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	result := &RunResult{
		RunID:           runID,
		Season:          config.Season,
		CompletedStages: make([]contracts.Stage, 0, len(contracts.AllStages)),
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id":       runID,
		"season":       config.Season,
		"ruleset_hash": o.rulesHash,
		"workers":      o.opts.Workers,
		"dry_run":      config.DryRun,
	}).Info("Starting pipeline run")

	// S0: Snapshot
	snap, err := o.loadSnapshot(ctx, config.Season)
	if err != nil {
		result.Error = fmt.Errorf("%s failed: %w", contracts.StageSnapshot, err)
		return result, result.Error
	}
	result.CompletedStages = append(result.CompletedStages, contracts.StageSnapshot)

	// S1 → S5
	out, err := o.compute(ctx, runID, snap, result)
	if err != nil {
		result.Error = err
		return result, err
	}
	out.StartedAt = startTime.UTC()
	out.FinishedAt = time.Now().UTC()
	result.Output = out

	// Publish
	if config.DryRun || o.sink == nil {
		o.logger.Info("Skipping publish (dry run mode)")
	} else {
		if err := o.publish(ctx, out); err != nil {
			result.Error = fmt.Errorf("%s failed: %w", contracts.StagePublish, err)
			return result, result.Error
		}
		result.Published = true
		result.CompletedStages = append(result.CompletedStages, contracts.StagePublish)
	}

	result.Success = true
	result.Duration = time.Since(startTime)

	o.logger.WithFields(map[string]interface{}{
		"run_id":         runID,
		"duration":       result.Duration.Seconds(),
		"players":        out.Report.Players,
		"teams":          out.Report.Teams,
		"excluded_teams": out.Report.ExcludedTeams,
		"unranked_teams": out.Report.UnrankedTeams,
		"published":      result.Published,
	}).Info("Pipeline run completed successfully")

	return result, nil
}

// Compute derives the full output set from a snapshot without publishing.
// Two calls on the same snapshot yield identical records.
func (o *Orchestrator) Compute(ctx context.Context, runID string, snap *contracts.Snapshot) (*contracts.RunOutput, error) {
	return o.compute(ctx, runID, snap, &RunResult{})
}

func (o *Orchestrator) loadSnapshot(ctx context.Context, season string) (*contracts.Snapshot, error) {
	if o.opts.SnapshotTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.SnapshotTimeout)
		defer cancel()
	}

	snap, err := o.source.Load(ctx, season)
	if err != nil {
		return nil, err
	}
	if snap.Season != season {
		return nil, fmt.Errorf("source returned season %s, want %s", snap.Season, season)
	}
	return snap, nil
}

func (o *Orchestrator) compute(ctx context.Context, runID string, snap *contracts.Snapshot, result *RunResult) (*contracts.RunOutput, error) {
	out := &contracts.RunOutput{
		RunID:       runID,
		Season:      snap.Season,
		RulesetHash: o.rulesHash,
	}
	out.Report.Coverage = o.qualityGate.Check(snap)

	// S1: Factors (parallel, one slot per player)
	factors, err := o.runFactors(ctx, snap.Players)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", contracts.StageFactors, err)
	}
	out.Factors = factors
	result.CompletedStages = append(result.CompletedStages, contracts.StageFactors)

	// S2: Percentiles (population-relative, after the parallel phase joins)
	standings, groups := o.percentile.Compute(factors)
	result.CompletedStages = append(result.CompletedStages, contracts.StagePercentile)

	// S3: Ratings (parallel), then overall percentiles
	ratings, err := o.runRatings(ctx, factors, standings)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", contracts.StageRatings, err)
	}
	o.percentile.ApplyOverall(ratings)
	out.Ratings = ratings
	result.CompletedStages = append(result.CompletedStages, contracts.StageRatings)

	// S4: Teams
	scores := make(map[string]float64, len(factors))
	for i := range factors {
		scores[factors[i].PlayerID] = factors[i].TotalPoints
	}
	out.Teams = o.teams.Aggregate(snap.Season, snap.Teams, scores)
	result.CompletedStages = append(result.CompletedStages, contracts.StageTeams)

	// S5: Playoff
	odds, err := o.playoff.Compute(snap.Season, out.Teams)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", contracts.StagePlayoff, err)
	}
	out.Playoff = odds.Records
	result.CompletedStages = append(result.CompletedStages, contracts.StagePlayoff)

	out.Report.Players = len(factors)
	out.Report.Teams = len(out.Teams)
	out.Report.PeerGroups = groups
	out.Report.ExcludedTeams = odds.Excluded
	out.Report.UnrankedTeams = odds.Unranked
	out.Report.Issues = odds.Issues

	return out, nil
}

func (o *Orchestrator) runFactors(ctx context.Context, players []contracts.PlayerInput) ([]contracts.PlayerFactorRecord, error) {
	out := make([]contracts.PlayerFactorRecord, len(players))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i := range players {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := o.aggregator.Aggregate(players[i])
			if err != nil {
				return fmt.Errorf("player %s: %w", players[i].PlayerID, err)
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

func (o *Orchestrator) runRatings(ctx context.Context, factors []contracts.PlayerFactorRecord, standings []s2_percentile.Result) ([]contracts.CategoryRatingRecord, error) {
	out := make([]contracts.CategoryRatingRecord, len(factors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i := range factors {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = o.transformer.Transform(&factors[i], standings[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

func (o *Orchestrator) publish(ctx context.Context, out *contracts.RunOutput) error {
	if o.opts.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.PublishTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := o.sink.Publish(ctx, out); err != nil {
		return fmt.Errorf("sink %s: %w", o.sink.Name(), err)
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id":   out.RunID,
		"sink":     o.sink.Name(),
		"duration": time.Since(start).Seconds(),
	}).Info("Published run")
	return nil
}
