package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"linkrelay/internal/config"
	"linkrelay/internal/handler"
	"linkrelay/internal/infra/postgresql"
	"linkrelay/internal/infra/postgresql/migrations"
	infraredis "linkrelay/internal/infra/redis"
	"linkrelay/internal/notifier"
	"linkrelay/internal/observability"
	"linkrelay/internal/repository"
	"linkrelay/internal/service"
	"linkrelay/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	webhookNotifier, err := notifier.NewWebhookNotifier(cfg.NotifyWebhookURL)
	if err != nil {
		logger.Fatal("notifier initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	linkRepo := repository.NewGormLinkRepo(db)
	settingsRepo := repository.NewGormSettingsRepo(db)
	destinationRepo := repository.NewGormDestinationRepo(db)

	queueService, err := service.NewQueueService(linkRepo, settingsRepo, destinationRepo, webhookNotifier, metrics, logger)
	if err != nil {
		logger.Fatal("queue service initialization failed", zap.Error(err))
	}

	settingsService, err := service.NewSettingsService(settingsRepo, logger)
	if err != nil {
		logger.Fatal("settings service initialization failed", zap.Error(err))
	}

	registryService, err := service.NewRegistryService(destinationRepo, logger)
	if err != nil {
		logger.Fatal("registry service initialization failed", zap.Error(err))
	}

	scanInterval := time.Duration(cfg.DispatchScanIntervalSec) * time.Second
	scheduler, err := service.NewDispatchScheduler(queueService, settingsService, scanInterval, logger)
	if err != nil {
		logger.Fatal("dispatch scheduler initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(transport.CorrelationMiddleware())
	app.Use(metrics.HTTPMiddleware())
	app.Use(transport.RateLimitMiddleware(limiter, logger))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterQueueRoutes(app, queueService, settingsService); err != nil {
		logger.Fatal("queue routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterIngestRoutes(app, queueService); err != nil {
		logger.Fatal("ingest routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterBatchRoutes(app, queueService); err != nil {
		logger.Fatal("batch routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterAdminRoutes(app, settingsService, registryService); err != nil {
		logger.Fatal("admin routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("linkrelay api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		logger.Info("dispatch scheduler started", zap.Duration("interval", scanInterval))
		return scheduler.Start(groupCtx)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown completed with error", zap.Error(err))
		return
	}
	logger.Info("shutdown completed")
}
