package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prodigy-ranking/backend/internal/api"
	"github.com/prodigy-ranking/backend/internal/api/handlers"
	"github.com/prodigy-ranking/backend/internal/api/middleware"
	"github.com/prodigy-ranking/backend/internal/api/stream"
	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/publish"
	"github.com/prodigy-ranking/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read API",
	Long: `Serve published rankings over HTTP.

Endpoints:
  GET  /health
  GET  /api/v1/runs/latest?season=
  GET  /api/v1/players/{id}?season=
  GET  /api/v1/leaderboard?season=&birth_year=&position=&limit=&offset=
  GET  /api/v1/teams?season=
  GET  /api/v1/playoff?season=
  GET  /api/v1/stream            (websocket, ranking.published events)

Example:
  go run ./cmd/prodigy api
  go run ./cmd/prodigy api --port 8080 --read-from redis`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	apiReadFrom string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API port (default PORT env)")
	apiCmd.Flags().StringVar(&apiReadFrom, "read-from", "postgres", "result store to read: postgres|redis")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Prodigy Ranking API ===")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, apiReadFrom == "postgres")
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	var reader contracts.ResultReader
	switch apiReadFrom {
	case "postgres":
		// cache is a no-op when Redis is disabled
		reader = publish.NewCachedReader(publish.NewPostgresReader(a.db), a.cache())
	case "redis":
		if !a.redis.Enabled() {
			return fmt.Errorf("--read-from redis needs REDIS_ENABLED=true")
		}
		reader = publish.NewRedisReader(a.redis)
	default:
		return fmt.Errorf("unknown --read-from %q (valid: postgres, redis)", apiReadFrom)
	}

	hub := stream.NewHub(a.log.WithField("component", "stream"))
	go hub.Run(ctx)
	go hub.Relay(ctx, a.redis)

	router := api.NewRouter(
		handlers.NewRankingHandler(reader, a.cfg.Ranking.Season, a.log),
		hub,
		middleware.NewRateLimiter(a.cfg.API.RateLimit, a.cfg.API.RateBurst).WithShared(
			redis.NewWindowLimiter(a.redis, publish.KeyPrefix+":api", a.cfg.API.SharedRateLimit, time.Minute),
			a.log.WithField("component", "ratelimit"),
		),
		a.log,
	)
	server := api.New(a.cfg, a.log, router)
	// closes stream clients and stops the Redis relay
	server.OnShutdown(cancel)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s (reading from %s)\n", a.cfg.Port, apiReadFrom)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
