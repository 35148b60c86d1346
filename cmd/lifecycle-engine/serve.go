package main

import (
	"context"
	"log/slog"
	"os"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/api/handlers"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/api/middleware"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/config"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/database"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/objectstore"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/server"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/service"
)

func newServeCmd(c *cli) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "HTTP API и встроенный планировщик прогонов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c.cfg, c.logger, skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "не применять миграции БД при старте")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, skipMigrate bool) error {
	logger.Info("Lifecycle Engine запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("object_store", cfg.ObjectStore),
	)
	if os.Getenv("LE_DEPHEALTH_GROUP") == "" {
		logger.Warn("LE_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 1. Применение миграций БД
	if !skipMigrate {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			return err
		}
	}

	// 2. PostgreSQL, blob-хранилище, Redis, сервисный слой
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации", slog.String("error", err.Error()))
		return err
	}
	defer a.Close()

	// 3. Readiness checkers (PostgreSQL + blob-хранилище)
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(a.pool), a.store)

	// 4. API handler
	apiHandler := handlers.NewAPIHandler(healthHandler, a.analytics, a.costs, a.lifecycle, logger)

	// 5. JWT middleware (опционально)
	var jwtAuth *middleware.JWTAuth
	if cfg.JWTJWKSURL != "" {
		jwtAuth, err = middleware.NewJWTAuth(cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.JWTAdminRole, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			return err
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Warn("LE_JWT_JWKS_URL не задан, API доступен без аутентификации")
	}

	// 6. Встроенный планировщик прогонов
	a.lifecycle.Start(ctx)

	// 6.1 topologymetrics — мониторинг зависимостей
	deps := service.Dependencies{
		DB:        a.pgDB,
		PGConnURL: cfg.DatabaseDSN(),
		JWKSURL:   cfg.JWTJWKSURL,
	}
	if s3, ok := a.store.(*objectstore.S3Store); ok {
		deps.S3URL = s3.EndpointURL()
	}
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"lifecycle-engine",
		cfg.DephealthGroup,
		deps,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 7. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler, jwtAuth,
		chimw.RequestID,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		chimw.Recoverer,
	)
	runErr := srv.Run(ctx)
	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
	}

	// 8. Остановка фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	a.lifecycle.Stop()

	logger.Info("Lifecycle Engine остановлен")
	return runErr
}
