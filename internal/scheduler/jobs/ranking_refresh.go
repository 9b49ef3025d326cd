package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/pipeline"
	"github.com/prodigy-ranking/backend/internal/ruleset"
	"github.com/prodigy-ranking/backend/internal/scheduler"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// Runner executes one pipeline pass
type Runner interface {
	Run(ctx context.Context, config pipeline.RunConfig) (*pipeline.RunResult, error)
}

// Notifier is told about every published run
type Notifier interface {
	NotifyPublished(summary contracts.RunSummary)
}

// RankingRefreshJob recomputes and republishes a season's rankings
// ⭐ SSOT: the scheduled refresh runs through this job only
type RankingRefreshJob struct {
	runner   Runner
	season   string
	schedule string
	notifier Notifier
	logger   *logger.Logger
}

// NewRankingRefreshJob creates a new refresh job; notifier may be nil
func NewRankingRefreshJob(runner Runner, season, schedule string, notifier Notifier, log *logger.Logger) *RankingRefreshJob {
	return &RankingRefreshJob{
		runner:   runner,
		season:   season,
		schedule: schedule,
		notifier: notifier,
		logger:   log,
	}
}

// Name returns the job name
func (j *RankingRefreshJob) Name() string {
	return "ranking_refresh"
}

// Schedule returns the cron schedule (seconds first)
func (j *RankingRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes one full pass and announces the result
func (j *RankingRefreshJob) Run(ctx context.Context) error {
	j.logger.WithField("season", j.season).Info("Starting scheduled ranking refresh")

	result, err := j.runner.Run(ctx, pipeline.RunConfig{Season: j.season})
	if err != nil {
		// bad data or bad rules fail the same way on every attempt
		if isPermanent(err) {
			return scheduler.Permanent(fmt.Errorf("ranking refresh: %w", err))
		}
		return fmt.Errorf("ranking refresh: %w", err)
	}

	if result.Published && j.notifier != nil {
		j.notifier.NotifyPublished(result.Output.Summary())
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    result.RunID,
		"published": result.Published,
		"duration":  result.Duration.Seconds(),
	}).Info("Ranking refresh finished")

	return nil
}

func isPermanent(err error) bool {
	var verr ruleset.ValidationError
	return errors.Is(err, contracts.ErrDuplicateRank) ||
		errors.Is(err, contracts.ErrNoSnapshot) ||
		errors.As(err, &verr)
}
