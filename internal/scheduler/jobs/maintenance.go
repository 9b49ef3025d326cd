package jobs

import (
	"context"

	"github.com/prodigy-ranking/backend/pkg/logger"
)

// RunPruner deletes old run records
type RunPruner interface {
	PruneRuns(ctx context.Context, keep int) (int64, error)
}

// RunPruneJob keeps the run history bounded
type RunPruneJob struct {
	pruner RunPruner
	keep   int
	logger *logger.Logger
}

// NewRunPruneJob creates a new prune job
func NewRunPruneJob(pruner RunPruner, keep int, log *logger.Logger) *RunPruneJob {
	return &RunPruneJob{
		pruner: pruner,
		keep:   keep,
		logger: log,
	}
}

// Name returns the job name
func (j *RunPruneJob) Name() string {
	return "run_prune"
}

// Schedule returns the cron schedule (Sundays at 04:00)
func (j *RunPruneJob) Schedule() string {
	return "0 0 4 * * 0"
}

// Run executes the prune
func (j *RunPruneJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled run prune")

	count, err := j.pruner.PruneRuns(ctx, j.keep)
	if err != nil {
		return err
	}

	if count > 0 {
		j.logger.WithField("removed", count).Info("Run prune completed")
	}

	return nil
}
