package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"watchdog/config"
	"watchdog/internal/handler"
	"watchdog/internal/httpserver"
	"watchdog/internal/repository"
	"watchdog/internal/repository/memory"
	"watchdog/internal/repository/postgres"
	"watchdog/internal/service"
	"watchdog/pkg/circuitbreaker"
	"watchdog/pkg/db"
	"watchdog/pkg/logger"
	"watchdog/pkg/mq"
	"watchdog/pkg/otel"
	"watchdog/pkg/outbox"
	"watchdog/pkg/rbac"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logger.NewLogger(cfg.Log.Level)
	defer logger.Sync()

	shutdownOTel, err := otel.Init(otel.Config{
		ServiceName: cfg.OTel.ServiceName,
		Endpoint:    cfg.OTel.Endpoint,
		Enabled:     cfg.OTel.Enabled,
	}, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownOTel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		stores repository.Stores
		ready  httpserver.ReadinessCheck
		admin  *handler.AdminHandler
		pool   *pgxpool.Pool
	)

	switch cfg.Server.Store {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		stores = memory.New().Stores()
	default:
		pool, err = db.NewConnection(cfg.DB, logger)
		if err != nil {
			logger.Fatal("DB initialization failed", zap.Error(err))
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("Schema migration failed", zap.Error(err))
		}
		stores = postgres.NewStores(pool, logger)
		ready = pool.Ping

		if cfg.Outbox.Enabled {
			publisher, err := mq.NewPublisher(cfg.MQ.URL)
			if err != nil {
				logger.Fatal("Failed to init MQ publisher", zap.Error(err))
			}
			defer publisher.Close()

			outboxRepo := outbox.NewRepository(pool)
			admin = handler.NewAdminHandler(outbox.NewReplayService(outboxRepo, publisher, logger), logger)

			breakerCfg := circuitbreaker.DefaultConfig()
			breakerCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}
			dispatcher := outbox.NewDispatcher(outboxRepo, publisher, logger).
				WithMaxRetries(cfg.Outbox.MaxRetries).
				WithInterval(cfg.Outbox.Interval).
				WithBatchSize(cfg.Outbox.BatchSize).
				WithCircuitBreaker(circuitbreaker.NewCircuitBreaker("outbox-publisher", breakerCfg))
			go dispatcher.Start(ctx)
		}
	}

	guard := rbac.NewGuard()
	uow := service.NewUnitOfWork(logger)
	audit := service.NewAuditTrailService(stores, guard, logger)
	tasks := service.NewTaskService(stores, audit, guard, uow, logger)
	subtasks := service.NewSubtaskService(stores, tasks, guard, logger)
	projects := service.NewProjectService(stores, tasks, audit, guard, uow, cfg.Lifecycle, logger)
	progression := service.NewProgressionService(stores, guard, logger)
	users := service.NewUserService(stores, guard, cfg.JWT, logger)

	router := httpserver.NewRouter(httpserver.Handlers{
		Users:    handler.NewUserHandler(users, tasks, logger),
		Projects: handler.NewProjectHandler(projects, logger),
		Tasks:    handler.NewTaskHandler(tasks, subtasks, progression, logger),
		Timeline: handler.NewTimelineHandler(audit, logger),
		Admin:    admin,
	}, cfg.JWT.Secret, ready, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("store", cfg.Server.Store),
			zap.Bool("enforce_monotonic_status", cfg.Lifecycle.EnforceMonotonicStatus),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down watchdog server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		logger.Info("HTTP server stopped")
	}
}
