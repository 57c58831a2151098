package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"watchdog/config"
	contractsmq "watchdog/contracts/mq"
	"watchdog/internal/mqhandler"
	"watchdog/internal/repository/postgres"
	"watchdog/pkg/db"
	"watchdog/pkg/logger"
	"watchdog/pkg/mq"
	"watchdog/pkg/otel"
	redisclient "watchdog/pkg/redis"
	"watchdog/pkg/util"
)

const maxArchiveRetries = 5

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logger.NewLogger(cfg.Log.Level)
	defer logger.Sync()

	logger.Info("Starting worker service...",
		zap.String("queue", cfg.MQ.Queue),
		zap.String("binding_key", contractsmq.BindingKeyLifecycle),
	)

	shutdownOTel, err := otel.Init(otel.Config{
		ServiceName: cfg.OTel.ServiceName + "-worker",
		Endpoint:    cfg.OTel.Endpoint,
		Enabled:     cfg.OTel.Enabled,
	}, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownOTel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init Redis
	rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	// Init DB
	pool, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("Database connection established")

	archiveHandler := mqhandler.NewArchiveHandler(
		postgres.NewArchiveRepository(pool, logger),
		util.NewDeduper(rdb, 24*time.Hour, logger),
		util.NewRetryCounter(rdb, time.Hour),
		maxArchiveRetries,
		logger,
	)

	consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Queue, contractsmq.BindingKeyLifecycle, cfg.MQ.Prefetch, logger)
	if err != nil {
		logger.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(archiveHandler.Handle)

	logger.Info("Archive consumer started, worker is ready to process messages")
	if err := consumer.StartConsuming(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("Archive consumer failed", zap.Error(err))
	}
	logger.Info("Worker shutdown complete")
}
