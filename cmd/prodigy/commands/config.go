package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prodigy-ranking/backend/internal/ruleset"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the rule set and classification list",
	Long: `Load and validate RULESET_PATH and CLASSIFICATIONS_PATH, print the
rule-set hash recorded with every run, and list non-fatal warnings.

Example:
  go run ./cmd/prodigy config check
  go run ./cmd/prodigy config check --with-overrides`,
	RunE: runConfigCheck,
}

var configWithOverrides bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd)

	configCheckCmd.Flags().BoolVar(&configWithOverrides, "with-overrides", false, "apply ranking.factor_config overrides from Postgres")
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, configWithOverrides)
	if err != nil {
		return err
	}
	defer a.close()

	rules, err := a.rules(ctx)
	if err != nil {
		return fmt.Errorf("❌ rule set: %w", err)
	}
	hash, err := ruleset.Hash(rules)
	if err != nil {
		return err
	}

	active := 0
	for _, f := range rules.Factors {
		if f.Active {
			active++
		}
	}

	resolver, err := a.resolver(rules)
	if err != nil {
		return fmt.Errorf("❌ classifications: %w", err)
	}

	fmt.Printf("✅ Rule set %s\n", a.cfg.Ranking.RulesetPath)
	fmt.Printf("  Hash:      %s\n", hash)
	fmt.Printf("  Factors:   %d (%d active)\n", len(rules.Factors), active)
	fmt.Printf("✅ Classifications %s\n", a.cfg.Ranking.ClassificationsPath)
	fmt.Printf("  Version:   %s\n", resolver.Version())
	fmt.Printf("  Schools:   %d\n", resolver.Len())

	warnings := ruleset.Warn(rules)
	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  ⚠ [%s] %s\n", w.Code, w.Message)
		}
	}
	return nil
}
