package commands

import (
	"context"
	"fmt"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/pipeline"
	"github.com/prodigy-ranking/backend/internal/publish"
	"github.com/prodigy-ranking/backend/internal/ruleset"
	"github.com/prodigy-ranking/backend/internal/s0_snapshot"
	"github.com/prodigy-ranking/backend/internal/s5_playoff"
	"github.com/prodigy-ranking/backend/pkg/config"
	"github.com/prodigy-ranking/backend/pkg/database"
	"github.com/prodigy-ranking/backend/pkg/logger"
	"github.com/prodigy-ranking/backend/pkg/redis"
)

// app holds the shared dependencies of one command invocation
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB  // nil when the command runs without Postgres
	redis *redis.Client // disabled client when REDIS_ENABLED=false
}

// newApp loads config and opens the stores a command needs
func newApp(ctx context.Context, needDB bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if season != "" {
		cfg.Ranking.Season = season
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	a := &app{
		cfg: cfg,
		log: logger.New(cfg),
	}

	if needDB {
		if err := cfg.RequireDatabase(); err != nil {
			return nil, err
		}
		a.db, err = database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.log.Info("Connected to database")
	}

	a.redis, err = redis.New(ctx, cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// rules loads the YAML rule set and applies database overrides when connected
func (a *app) rules(ctx context.Context) (*ruleset.RuleSet, error) {
	rules, _, err := ruleset.Load(a.cfg.Ranking.RulesetPath)
	if err != nil {
		return nil, err
	}
	for _, w := range ruleset.Warn(rules) {
		a.log.WithField("code", w.Code).Warn(w.Message)
	}

	if a.db == nil {
		return rules, nil
	}

	overrides, err := ruleset.NewOverrideRepository(a.db).Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		return rules, nil
	}

	a.log.WithField("overrides", len(overrides)).Info("Applying factor overrides")
	return ruleset.ApplyOverrides(rules, overrides)
}

func (a *app) resolver(rules *ruleset.RuleSet) (*s5_playoff.Resolver, error) {
	list, err := s5_playoff.LoadReferenceList(a.cfg.Ranking.ClassificationsPath)
	if err != nil {
		return nil, err
	}
	return s5_playoff.NewResolver(list, rules.Playoff.LargeEnrollmentMin), nil
}

// cache is the API read-through cache; publishes invalidate it
func (a *app) cache() *redis.Cache {
	return redis.NewCache(a.redis, publish.KeyPrefix)
}

// sink publishes to Postgres first, then Redis when enabled
func (a *app) sink() contracts.ResultSink {
	sinks := []contracts.ResultSink{publish.NewPostgresSink(a.db, a.log)}
	if a.redis.Enabled() {
		sinks = append(sinks, publish.NewRedisSink(a.redis, a.cache(), a.log))
	}
	return publish.NewMultiSink(a.log, sinks...)
}

// orchestrator wires a pipeline; snapshotPath selects the YAML source, dryRun drops the sink
func (a *app) orchestrator(ctx context.Context, snapshotPath string, dryRun bool) (*pipeline.Orchestrator, error) {
	rules, err := a.rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rule set: %w", err)
	}
	resolver, err := a.resolver(rules)
	if err != nil {
		return nil, fmt.Errorf("load classifications: %w", err)
	}

	var source contracts.SnapshotSource
	if snapshotPath != "" {
		source = s0_snapshot.NewFileSource(snapshotPath, a.log)
	} else {
		source = s0_snapshot.NewPostgresSource(a.db, a.log)
	}

	var sink contracts.ResultSink
	if !dryRun {
		sink = a.sink()
	}

	return pipeline.NewOrchestrator(source, sink, rules, resolver, pipeline.Options{
		Workers:         a.cfg.Ranking.Workers,
		SnapshotTimeout: a.cfg.Ranking.SnapshotTimeout,
		PublishTimeout:  a.cfg.Ranking.PublishTimeout,
	}, a.log)
}
