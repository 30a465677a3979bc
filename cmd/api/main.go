package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/relaykit/smsrelay/internal/config"
	"github.com/relaykit/smsrelay/internal/driver"
	"github.com/relaykit/smsrelay/internal/handler"
	"github.com/relaykit/smsrelay/internal/infra/postgresql"
	"github.com/relaykit/smsrelay/internal/infra/postgresql/migrations"
	infraredis "github.com/relaykit/smsrelay/internal/infra/redis"
	"github.com/relaykit/smsrelay/internal/observability"
	"github.com/relaykit/smsrelay/internal/repository"
	"github.com/relaykit/smsrelay/internal/service"
	"github.com/relaykit/smsrelay/internal/transport"
	"go.uber.org/zap"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	var messageRepo repository.MessageRepository
	var sqlDB *sql.DB
	if cfg.PersistenceEnabled {
		db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("postgres initialization failed", zap.Error(err))
		}
		if err := migrations.Migrate(db); err != nil {
			logger.Fatal("database migrations failed", zap.Error(err))
		}
		sqlDB, err = db.DB()
		if err != nil {
			logger.Fatal("postgres underlying db init failed", zap.Error(err))
		}
		defer sqlDB.Close()

		messageRepo = repository.NewGormMessageRepo(db)
	}

	var rdb *redis.Client
	var callbackGuard fiber.Handler
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.CallbackRateLimit)
		if err != nil {
			logger.Fatal("rate limiter initialization failed", zap.Error(err))
		}
		callbackGuard = transport.CallbackRateLimit(limiter, logger)
	}

	sendDriver, err := driver.FromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("driver initialization failed", zap.Error(err))
	}

	deliveryService, err := service.NewDeliveryService(
		sendDriver,
		cfg.Driver,
		messageRepo,
		cfg.PersistenceEnabled,
		cfg.DefaultCountryPrefix,
		logger,
		metrics,
	)
	if err != nil {
		logger.Fatal("delivery service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(transport.CorrelationID())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)

	if cfg.PersistenceEnabled {
		reconciliationService, err := service.NewReconciliationService(messageRepo, logger, metrics)
		if err != nil {
			logger.Fatal("reconciliation service initialization failed", zap.Error(err))
		}

		var callbackMiddleware []fiber.Handler
		if callbackGuard != nil {
			callbackMiddleware = append(callbackMiddleware, callbackGuard)
		}
		if err := handler.RegisterMessageRoutes(app, deliveryService, reconciliationService, callbackMiddleware...); err != nil {
			logger.Fatal("route registration failed", zap.Error(err))
		}
	} else {
		// Without persistence there is no state for callbacks to reconcile,
		// so only the send endpoint is exposed.
		v1 := app.Group("/v1")
		v1.Post("/messages", handler.SendOnlyHandler(deliveryService))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("smsrelay api started",
		zap.Int("port", cfg.APIPort),
		zap.String("driver", cfg.Driver),
		zap.Bool("persistence", cfg.PersistenceEnabled),
	)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server stopped unexpectedly", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}

	logger.Info("smsrelay api stopped")
}
