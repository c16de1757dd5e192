// Package main is the entry point of the alem-quest scoring API.
//
// The server records quiz attempts, lesson completions and challenge claims,
// derives streaks from the activity log and serves leaderboards. Startup
// order: config, logger, store, guard, optional Redis (leaderboard cache and
// cross-instance events), application handlers, maintenance jobs, HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alem-hub/alem-quest/config"
	"github.com/alem-hub/alem-quest/internal/application/command"
	"github.com/alem-hub/alem-quest/internal/application/eventhandler"
	"github.com/alem-hub/alem-quest/internal/application/guard"
	"github.com/alem-hub/alem-quest/internal/application/query"
	"github.com/alem-hub/alem-quest/internal/domain/challenge"
	"github.com/alem-hub/alem-quest/internal/domain/leaderboard"
	"github.com/alem-hub/alem-quest/internal/domain/scoring"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/internal/domain/streak"
	"github.com/alem-hub/alem-quest/internal/infrastructure/messaging"
	"github.com/alem-hub/alem-quest/internal/infrastructure/persistence"
	"github.com/alem-hub/alem-quest/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/alem-quest/internal/infrastructure/scheduler"
	"github.com/alem-hub/alem-quest/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/alem-hub/alem-quest/internal/interface/http"
	"github.com/alem-hub/alem-quest/internal/interface/http/handlers"
	"github.com/alem-hub/alem-quest/pkg/logger"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, json or toml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.Level),
		Format:    cfg.Observability.Format,
		AddSource: cfg.Observability.AddSource,
	})
	slog.SetDefault(log)

	log.Info("starting alem-quest",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Location.String(),
		"store", cfg.Database.Engine,
		"events", cfg.Events.Bus,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Store
	// ─────────────────────────────────────────────────────────────────────────
	store, err := persistence.NewByEngine(ctx, persistence.Config{
		Engine:      cfg.Database.Engine,
		PostgresURL: cfg.Database.URL,
		SQLitePath:  cfg.Database.SQLitePath,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		AutoMigrate: cfg.Database.AutoMigrate,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		log.Info("closing store")
		store.Close()
	}()

	if err := store.SeedChallenges(ctx, challenge.DefaultCatalog()); err != nil {
		return fmt.Errorf("failed to seed challenges: %w", err)
	}

	storeGuard := guard.New(guard.Config{
		MaxAttempts:      cfg.Guard.MaxAttempts,
		InitialDelay:     cfg.Guard.InitialDelay,
		MaxDelay:         cfg.Guard.MaxDelay,
		FailureThreshold: cfg.Guard.FailureThreshold,
		OpenTimeout:      cfg.Guard.OpenTimeout,
	}, log)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("store", handlers.PingCheck(store), true)
	health.AddCheck("store_circuit", storeGuard.Check, false)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Redis and events
	// ─────────────────────────────────────────────────────────────────────────
	var boards leaderboard.Cache
	var redisClient *goredis.Client

	if cfg.Redis.Enabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.URL = cfg.Redis.URL
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err := redis.NewCache(ctx, redisCfg)
		switch {
		case err != nil && cfg.Events.Bus == "redis":
			return fmt.Errorf("failed to connect to redis: %w", err)
		case err != nil:
			log.Warn("redis unavailable, leaderboard caching disabled", logger.Err(err))
		default:
			defer cache.Close()
			redisClient = cache.Client()
			boards = redis.NewLeaderboardCache(cache, cfg.Leaderboard.CacheTTL)
			health.AddCheck("redis", handlers.PingCheck(cache), false)
			log.Info("redis connection established")
		}
	}

	bus, err := newEventBus(ctx, cfg, redisClient, log)
	if err != nil {
		return err
	}
	defer func() {
		if m := bus.Metrics(); m != nil {
			snap := m.Snapshot()
			log.Info("event bus totals",
				"published", snap.TotalPublished,
				"handler_executions", snap.HandlerExecutions,
				"handler_failures", snap.HandlerFailures,
				"avg_handler_duration", snap.AverageHandlerDuration.String(),
			)
		}
		_ = bus.Close()
	}()

	if boards != nil {
		sub, err := eventhandler.NewOnRankingChangedHandler(boards, log, eventhandler.DefaultRankingChangedConfig()).Register(bus)
		if err != nil {
			return fmt.Errorf("failed to register cache invalidation: %w", err)
		}
		defer sub.Cancel()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Application handlers
	// ─────────────────────────────────────────────────────────────────────────
	policy, err := streak.ParsePolicy(cfg.Streak.Policy)
	if err != nil {
		return err
	}
	tracker := streak.NewTracker(policy)
	clock := timeutil.NewSystemClock(cfg.App.Location)

	cmdDeps := command.Deps{
		Profiles:   store.Profiles,
		Attempts:   store.Attempts,
		Activity:   store.Activity,
		Challenges: store.Challenges,
		Lessons:    store.Lessons,
		Tx:         store.Tx,
		Tracker:    tracker,
		Clock:      clock,
		Guard:      storeGuard,
		Publisher:  bus,
		Logger:     log,
	}
	queryDeps := query.Deps{
		Profiles: store.Profiles,
		Activity: store.Activity,
		Tracker:  tracker,
		Clock:    clock,
		Guard:    storeGuard,
		Cache:    boards,
		Logger:   log,
	}

	calculator := scoring.NewCalculator(scoring.Config{
		BaseXP:            cfg.Scoring.BaseXP,
		PerfectBonus:      cfg.Scoring.PerfectBonus,
		TimeBonusPerMille: cfg.Scoring.TimeBonusPerMille,
		MaxTimeBonus:      cfg.Scoring.MaxTimeBonus,
		PassPercent:       cfg.Scoring.PassPercent,
	})

	getLeaderboard := query.NewGetLeaderboardHandler(queryDeps, cfg.Leaderboard.Concurrency)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Maintenance jobs
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Jobs.Enabled {
		sched, err := newScheduler(cfg, getLeaderboard, boards != nil, log)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop failed", logger.Err(err))
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	if cfg.IsProduction() && slices.Contains(cfg.HTTP.AllowedOrigins, "*") {
		log.Warn("CORS allows any origin in production")
	}
	httpCfg.Version = cfg.App.Version
	httpCfg.RateLimit = httpserver.RateLimitConfig{
		RequestsPerMinute: cfg.HTTP.RateLimit.RequestsPerMinute,
		Burst:             cfg.HTTP.RateLimit.Burst,
		BanThreshold:      cfg.HTTP.RateLimit.BanThreshold,
		BanDuration:       cfg.HTTP.RateLimit.BanDuration,
	}

	server := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		CreateProfile:  command.NewCreateProfileHandler(cmdDeps),
		SubmitAttempt:  command.NewSubmitAttemptHandler(cmdDeps, calculator),
		CompleteLesson: command.NewCompleteLessonHandler(cmdDeps, cfg.Scoring.LessonXP),
		ClaimChallenge: command.NewClaimChallengeHandler(cmdDeps),
		GetProfile:     query.NewGetProfileHandler(queryDeps),
		GetStreak:      query.NewGetStreakHandler(queryDeps),
		GetLeaderboard: getLeaderboard,
		HealthChecker:  health,
		Logger:         log,
	})

	errCh := server.StartAsync()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("http shutdown failed", logger.Err(err))
	}

	log.Info("alem-quest stopped")
	return nil
}

// closableBus is the event bus as used by main.
type closableBus interface {
	shared.EventBus
	Metrics() *messaging.EventBusMetrics
	Close() error
}

// newScheduler registers the jobs that apply to this deployment. Warming is
// skipped without a leaderboard cache.
func newScheduler(cfg *config.Config, reader jobs.LeaderboardReader, cached bool, log *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New(scheduler.Config{Logger: log, Location: cfg.App.Location})

	if cached && cfg.Jobs.WarmInterval > 0 {
		if err := sched.Register(jobs.NewWarmLeaderboardsJob(reader, log), scheduler.Every(cfg.Jobs.WarmInterval)); err != nil {
			return nil, fmt.Errorf("failed to register job: %w", err)
		}
	}

	hour, minute, ok, err := cfg.Jobs.StreakRefreshTime()
	if err != nil {
		return nil, err
	}
	if ok {
		daily := scheduler.DailyAt(hour, minute, cfg.App.Location)
		if err := sched.Register(jobs.NewRefreshStreaksJob(reader, log), daily); err != nil {
			return nil, fmt.Errorf("failed to register job: %w", err)
		}
	}
	return sched, nil
}

func newEventBus(ctx context.Context, cfg *config.Config, client *goredis.Client, log *slog.Logger) (closableBus, error) {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.AsyncMode = cfg.Events.Async
	local.Logger = log

	if cfg.Events.Bus != "redis" {
		return messaging.NewInMemoryEventBus(local), nil
	}

	bus, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
		Client:         client,
		ChannelName:    cfg.Events.Channel,
		LocalBusConfig: local,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis event bus: %w", err)
	}
	return bus, nil
}
