package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prodigy-ranking/backend/internal/pipeline"
)

// pipelineCmd represents the pipeline command
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the ranking pipeline",
	Long: `Run one full pass: S0 snapshot → S1 factors → S2 percentiles →
S3 ratings → S4 teams → S5 playoff → publish.

Example:
  go run ./cmd/prodigy pipeline run
  go run ./cmd/prodigy pipeline run --dry-run --output run.json
  go run ./cmd/prodigy pipeline run --snapshot snapshot.yaml --dry-run`,
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute and publish one season",
	RunE:  runPipeline,
}

var (
	pipelineDryRun   bool
	pipelineSnapshot string
	pipelineRunID    string
	pipelineOutput   string
)

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineRunCmd)

	pipelineRunCmd.Flags().BoolVar(&pipelineDryRun, "dry-run", false, "compute only, do not publish")
	pipelineRunCmd.Flags().StringVar(&pipelineSnapshot, "snapshot", "", "read the snapshot from a YAML file instead of Postgres")
	pipelineRunCmd.Flags().StringVar(&pipelineRunID, "run-id", "", "run id (default: random UUID)")
	pipelineRunCmd.Flags().StringVar(&pipelineOutput, "output", "", "write the computed run as JSON to this file")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	needDB := pipelineSnapshot == "" || !pipelineDryRun
	a, err := newApp(ctx, needDB)
	if err != nil {
		return err
	}
	defer a.close()

	o, err := a.orchestrator(ctx, pipelineSnapshot, pipelineDryRun)
	if err != nil {
		return err
	}

	result, err := o.Run(ctx, pipeline.RunConfig{
		Season: a.cfg.Ranking.Season,
		RunID:  pipelineRunID,
		DryRun: pipelineDryRun,
	})
	if err != nil {
		a.log.WithError(err).WithField("run_id", result.RunID).Error("Pipeline run failed")
		return err
	}

	if pipelineOutput != "" {
		if err := writeJSONFile(pipelineOutput, result.Output); err != nil {
			return err
		}
	}

	report := result.Output.Report
	fmt.Printf("\n✅ Run %s (%s) finished in %s\n", result.RunID, result.Season, result.Duration.Round(time.Millisecond))
	fmt.Printf("  Ruleset:     %s\n", result.Output.RulesetHash[:12])
	fmt.Printf("  Players:     %d in %d peer groups\n", report.Players, report.PeerGroups)
	fmt.Printf("  Teams:       %d (%d excluded, %d unranked)\n", report.Teams, report.ExcludedTeams, report.UnrankedTeams)
	fmt.Printf("  Coverage:    %.1f%% avg over active factors\n", report.Coverage.AvgRate*100)
	fmt.Printf("  Published:   %v\n", result.Published)
	for _, issue := range report.Issues {
		fmt.Printf("  ⚠ %s (%s): %s\n", issue.Name, issue.TeamID, issue.Reason)
	}

	return nil
}

func writeJSONFile(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
