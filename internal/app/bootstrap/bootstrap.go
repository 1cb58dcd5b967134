package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	actionthrottle "festrank/contexts/event-engagement/action-throttle"
	throttleredis "festrank/contexts/event-engagement/action-throttle/adapters/redis"
	rankingengine "festrank/contexts/event-engagement/ranking-engine"
	postgresadapter "festrank/contexts/event-engagement/ranking-engine/adapters/postgres"
	redisadapter "festrank/contexts/event-engagement/ranking-engine/adapters/redis"
	"festrank/contexts/event-engagement/ranking-engine/application/commands"
	"festrank/contexts/event-engagement/ranking-engine/application/workers"
	"festrank/contexts/event-engagement/ranking-engine/domain/entities"
	"festrank/internal/platform/cache"
	"festrank/internal/platform/config"
	"festrank/internal/platform/db"
	"festrank/internal/platform/httpserver"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	rankings rankingengine.Module
	postgres *db.Postgres
	redis    *cache.Redis
	logger   *slog.Logger
}

type WorkerApp struct {
	recalculator workers.BiasRecalculator
	postgres     *db.Postgres
	redis        *cache.Redis
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	rds, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)

	// Action type definitions change through migrations, not at runtime,
	// so one load at startup is enough.
	actionTypes, err := repo.ListActionTypes(context.Background())
	if err != nil {
		return nil, err
	}
	typesByCode := make(map[string]entities.ActionType, len(actionTypes))
	cooldowns := make(map[string]time.Duration, len(actionTypes))
	for _, t := range actionTypes {
		typesByCode[t.Code] = t
		cooldowns[t.Code] = time.Duration(t.CooldownMS) * time.Millisecond
	}

	throttleModule := actionthrottle.NewModule(actionthrottle.Dependencies{
		Store:     throttleredis.NewStore(rds.Client, logger),
		Cooldowns: cooldowns,
		Disabled:  cfg.DisableThrottle,
		Clock:     postgresadapter.SystemClock{},
		Logger:    logger,
	})

	rankingModule := rankingengine.NewModule(rankingengine.Dependencies{
		Rankings:        repo,
		Biases:          repo,
		Engagement:      repo,
		RankingStore:    redisadapter.NewRankingStore(rds.Client, logger),
		Gate:            throttleModule.Gate,
		ActionTypes:     typesByCode,
		Clock:           postgresadapter.SystemClock{},
		IDGen:           postgresadapter.UUIDGenerator{},
		FreshnessWindow: cfg.RankingFreshnessWindow,
		UpdatingTTL:     cfg.RankingUpdatingTTL,
		Logger:          logger,
	})

	server := httpserver.New(rankingModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		rankings: rankingModule,
		postgres: pg,
		redis:    rds,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	rds, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	return &WorkerApp{
		recalculator: workers.BiasRecalculator{
			Biases: commands.BiasUseCase{
				Biases: repo,
				Logger: logger,
			},
			Rankings: redisadapter.NewRankingStore(rds.Client, logger),
			Interval: cfg.BiasRecalcInterval,
			Logger:   logger,
		},
		postgres: pg,
		redis:    rds,
		logger:   logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if err := a.rankings.Cache.Initialize(ctx); err != nil {
		return err
	}
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return a.server.Start()
}

func (a *APIApp) Close() error {
	var errs []error
	if a.rankings.Cache != nil {
		errs = append(errs, a.rankings.Cache.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.postgres != nil {
		errs = append(errs, a.postgres.Close())
	}
	return errors.Join(errs...)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"interval", w.recalculator.Interval.String(),
	)
	return w.recalculator.Run(ctx)
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.redis != nil {
		errs = append(errs, w.redis.Close())
	}
	if w.postgres != nil {
		errs = append(errs, w.postgres.Close())
	}
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
