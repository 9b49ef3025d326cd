package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prodigy-ranking/backend/internal/api/stream"
	"github.com/prodigy-ranking/backend/internal/publish"
	"github.com/prodigy-ranking/backend/internal/scheduler"
	"github.com/prodigy-ranking/backend/internal/scheduler/jobs"
)

// run records kept per season by the prune job
const keepRuns = 60

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage scheduled jobs",
	Long: `Start the scheduler daemon or run a job by hand.

Jobs:
  ranking_refresh - full pipeline pass (REFRESH_SCHEDULE, default 05:30 daily)
  run_prune       - keep the newest run records per season (Sundays 04:00)

Example:
  go run ./cmd/prodigy scheduler start
  go run ./cmd/prodigy scheduler list
  go run ./cmd/prodigy scheduler run ranking_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job now and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler registers every job against live stores
func initScheduler(ctx context.Context, a *app) (*scheduler.Scheduler, error) {
	o, err := a.orchestrator(ctx, "", false)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(a.log)
	notifier := stream.NewRedisPublisher(a.redis, a.log)

	refresh := jobs.NewRankingRefreshJob(o, a.cfg.Ranking.Season, a.cfg.Ranking.RefreshSchedule, notifier, a.log.WithField("job", "ranking_refresh"))
	if err := sched.AddJob(refresh); err != nil {
		return nil, err
	}

	prune := jobs.NewRunPruneJob(publish.NewPostgresSink(a.db, a.log), keepRuns, a.log.WithField("job", "run_prune"))
	if err := sched.AddJob(prune); err != nil {
		return nil, err
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Prodigy Ranking Scheduler ===")

	ctx := context.Background()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(ctx, a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s (next: %s)\n", jobName, sched.NextRun(jobName).Format("2006-01-02 15:04:05"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(ctx, a)
	if err != nil {
		return err
	}

	stats := sched.GetJobStats()
	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  %-18s %s\n", jobName, stats[jobName].Schedule)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(ctx, a)
	if err != nil {
		return err
	}

	result, err := sched.RunJobSync(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("✅ %s finished in %s\n", result.JobName, result.Duration.Round(time.Millisecond))
	return nil
}
