package database_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prodigy-ranking/backend/pkg/config"
	"github.com/prodigy-ranking/backend/pkg/database"
)

// Example demonstrates connecting, migrating and checking pool health
func Example() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	applied, err := db.Migrate(ctx, "migrations/postgres")
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	status, err := db.HealthCheck(ctx)
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}

	fmt.Printf("Applied %d migrations\n", len(applied))
	fmt.Printf("Database is healthy: %v\n", status.Healthy)
	fmt.Printf("Active connections: %d\n", status.Stats.AcquiredConns)
}
