package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/config"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/database"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/cost"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/objectstore"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/repository"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/service"
)

// sweepLockKey — ключ распределённой блокировки прогона в Redis.
const sweepLockKey = "lifecycle-engine:sweep-lock"

// app — собранный граф зависимостей.
type app struct {
	pool  *pgxpool.Pool
	pgDB  *sql.DB
	store objectstore.Store
	redis *redis.Client

	analytics *service.AnalyticsService
	costs     *service.CostMonitor
	lifecycle *service.LifecycleService
}

// newApp подключается к PostgreSQL, blob-хранилищу и Redis и создаёт сервисный слой.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	// 1. PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool

	// 1.1 Адаптер pgxpool → *sql.DB для topologymetrics.
	// Проверка здоровья идёт через тот же пул и замечает его исчерпание.
	a.pgDB = stdlib.OpenDBFromPool(pool)

	// 2. Blob-хранилище
	a.store, err = objectstore.New(cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("создание blob-хранилища: %w", err)
	}

	// 3. Блокировка прогона: Redis, если задан, иначе внутри процесса
	var lock service.SweepLock
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("подключение к Redis %s: %w", cfg.RedisAddr, err)
		}
		lock = service.NewRedisSweepLock(a.redis, sweepLockKey, cfg.SweepLockTTL, logger)
		logger.Info("Блокировка прогона в Redis", slog.String("addr", cfg.RedisAddr))
	} else {
		lock = service.NewLocalSweepLock()
		logger.Warn("LE_REDIS_ADDR не задан, блокировка прогона только внутри процесса")
	}

	// 4. Repositories
	files := repository.NewFileRepository(pool)
	plans := repository.NewPlanRepository(pool)
	audit := repository.NewAuditRepository(pool)
	alerts := repository.NewCostAlertRepository(pool)
	usage := repository.NewUsageRepository(pool)

	// 5. Services
	rates := cfg.CostRates()
	a.analytics = service.NewAnalyticsService(
		files, usage,
		rates, cost.DefaultAdvisorRules(),
		service.NewAnalyticsCache(cfg.AnalyticsCacheSize, cfg.AnalyticsCacheTTL),
		cfg.StoreTimeout,
		logger,
	)
	a.costs = service.NewCostMonitor(a.analytics, plans, alerts, cfg.CostThresholds(), cfg.StoreTimeout, logger)

	transitions := service.NewTransitionExecutor(files, audit, cfg.Thresholds(), cfg.StoreTimeout, logger)
	cleanup := service.NewCleanupExecutor(
		files, a.store, audit,
		rates, cfg.GracePeriod,
		cfg.SweepPageSize, cfg.StoreTimeout,
		logger,
	)
	a.lifecycle = service.NewLifecycleService(
		files, plans,
		transitions, cleanup, a.analytics,
		lock,
		service.LifecycleOptions{
			Thresholds:  cfg.Thresholds(),
			Concurrency: cfg.SweepConcurrency,
			PageSize:    cfg.SweepPageSize,
			Interval:    cfg.SweepInterval,
			Timeout:     cfg.StoreTimeout,
		},
		logger,
	)

	return a, nil
}

// Close освобождает соединения.
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pgDB != nil {
		_ = a.pgDB.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
