package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the ranking schema migrations",
	Long: `Apply every *.sql file in the migrations directory in lexical order.
Migrations are idempotent.

Example:
  go run ./cmd/prodigy db migrate
  go run ./cmd/prodigy db migrate --dir migrations/postgres`,
	RunE: runDBMigrate,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database health and pool stats",
	RunE:  runDBStatus,
}

var migrationsDir string

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)

	dbMigrateCmd.Flags().StringVar(&migrationsDir, "dir", "migrations/postgres", "migrations directory")
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	applied, err := a.db.Migrate(ctx, migrationsDir)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Applied %d migration(s)\n", len(applied))
	for _, name := range applied {
		fmt.Printf("  - %s\n", name)
	}
	return nil
}

func runDBStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	health, err := a.db.HealthCheck(ctx)
	if err != nil {
		return err
	}
	stats := a.db.Stats()

	fmt.Printf("✅ Database healthy: %v\n", health.Healthy)
	fmt.Printf("  Connections: %d total, %d idle, %d in use\n", stats.TotalConns, stats.IdleConns, stats.AcquiredConns)
	return nil
}
