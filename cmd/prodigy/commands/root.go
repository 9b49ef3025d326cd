package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	season  string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "prodigy",
	Short: "Prodigy youth hockey ranking engine",
	Long: `Prodigy Ranking CLI

Computes player factor scores, peer percentiles, 1-99 ratings,
team rankings and prep playoff odds from one population snapshot,
then publishes the full derived set atomically.

Usage:
  go run ./cmd/prodigy [command]

Examples:
  go run ./cmd/prodigy pipeline run
  go run ./cmd/prodigy pipeline run --snapshot testdata/snapshot.yaml --dry-run
  go run ./cmd/prodigy scheduler start
  go run ./cmd/prodigy api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&season, "season", "", "season to rank (default SEASON env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
