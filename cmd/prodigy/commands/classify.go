package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/prodigy-ranking/backend/internal/s5_playoff"
	"github.com/prodigy-ranking/backend/pkg/httputil"
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Maintain the school classification list",
}

var (
	classifyImportCmd = &cobra.Command{
		Use:   "import [file|url]",
		Short: "Build a reference list from an HTML member table",
		Long: `Parse the first HTML table with a school column and an enrollment
column and write a versioned reference list.

Example:
  go run ./cmd/prodigy classify import members.html --version 2025-26 --out configs/classifications.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runClassifyImport,
	}

	classifyResolveCmd = &cobra.Command{
		Use:   "resolve [team_id] [name]",
		Short: "Show how a team resolves against the reference list",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runClassifyResolve,
	}
)

var (
	classifyOut     string
	classifyVersion string
)

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.AddCommand(classifyImportCmd)
	classifyCmd.AddCommand(classifyResolveCmd)

	classifyImportCmd.Flags().StringVar(&classifyOut, "out", "", "output file (default stdout)")
	classifyImportCmd.Flags().StringVar(&classifyVersion, "version", "", "list version (default SEASON)")
}

func runClassifyImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	client := httputil.New(a.log).WithRateLimit(1, 1)
	schools, err := s5_playoff.NewImporter(client).Import(ctx, args[0])
	if err != nil {
		return err
	}

	version := classifyVersion
	if version == "" {
		version = a.cfg.Ranking.Season
	}

	out := os.Stdout
	if classifyOut != "" {
		f, err := os.Create(classifyOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", classifyOut, err)
		}
		defer f.Close()
		out = f
	}

	if err := s5_playoff.EncodeReferenceList(out, version, schools); err != nil {
		return err
	}

	a.log.WithFields(map[string]interface{}{
		"schools": len(schools),
		"version": version,
		"out":     classifyOut,
	}).Info("Imported classification list")
	return nil
}

func runClassifyResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	rules, err := a.rules(ctx)
	if err != nil {
		return err
	}
	resolver, err := a.resolver(rules)
	if err != nil {
		return err
	}

	name := ""
	if len(args) > 1 {
		name = args[1]
	}

	res, err := resolver.Resolve(args[0], name)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %s → %s (%s, enrollment %d, matched by %s)\n", args[0], res.Name, res.Classification, res.Enrollment, res.MatchedBy)
	return nil
}
