package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow_backend/internal/clients"
	"leadflow_backend/internal/dedup/repository"
	"leadflow_backend/internal/delivery"
	"leadflow_backend/internal/delivery/handler"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/export"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/http/router"
	"leadflow_backend/internal/leadpool"
	"leadflow_backend/internal/notification"
	"leadflow_backend/internal/personalizer"
	"leadflow_backend/internal/plans"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/internal/stats"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	catalog, err := plans.LoadFile(cfg.GetPlansFile())
	if err != nil {
		log.Error("failed to load plan catalog", "error", err)
		panic("failed to load plan catalog: " + err.Error())
	}

	// CSV export storage (MinIO); nil when not configured
	exporter, err := export.NewMinIOService(cfg, log)
	if err != nil {
		log.Error("failed to initialize export storage", "error", err)
		panic("failed to initialize export storage: " + err.Error())
	}
	if exporter.Enabled() {
		if err := withRetry(ctx, log, "ensure deliveries bucket", 5, 2*time.Second, func() error {
			return exporter.EnsureBucketExists(ctx)
		}); err != nil {
			log.Error("failed to ensure deliveries bucket", "error", err)
			panic("failed to ensure deliveries bucket: " + err.Error())
		}
		log.Info("export storage initialized", "bucket", cfg.GetMinioBucketDeliveries())
	} else {
		log.Warn("MinIO not configured; delivery exports disabled")
	}

	var generator personalizer.Generator
	if cfg.IsPersonalizerEnabled() {
		gemini, err := personalizer.NewGeminiGenerator(ctx, cfg, log)
		if err != nil {
			log.Error("failed to initialize personalizer", "error", err)
			panic("failed to initialize personalizer: " + err.Error())
		}
		generator = gemini
		log.Info("AI personalizer initialized", "model", cfg.GetGeminiModel())
	} else {
		generator = personalizer.NewTemplateGenerator()
		log.Info("AI personalizer disabled; using templates")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	sender := notification.NewSender(cfg)
	notificationModule := notification.New(sender, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	clientsModule := clients.NewModule(pool, catalog, val, log)
	leadpoolModule := leadpool.NewModule(pool, eventBus, cfg.GetDedupWindowDays(), val, log)
	dedupRepo := repository.New(pool)

	runEnqueuer, closeEnqueuer := initRunEnqueuer(cfg, log)
	if closeEnqueuer != nil {
		defer closeEnqueuer()
	}

	deliveryModule := delivery.NewModule(delivery.Deps{
		Pool:            pool,
		LeadSource:      leadpoolModule.Service(),
		Clients:         clientsModule.Repository(),
		Catalog:         catalog,
		Generator:       generator,
		Exporter:        exporter,
		Bus:             eventBus,
		Validator:       val,
		Logger:          log,
		DedupWindowDays: cfg.GetDedupWindowDays(),
		Runs:            runEnqueuer,
	})

	statsModule := stats.NewModule(pool, leadpoolModule.Service(), dedupRepo, cfg.GetDedupWindowDays())

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			clientsModule,
			leadpoolModule,
			deliveryModule,
			statsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRunEnqueuer(cfg config.SchedulerConfig, log *logger.Logger) (handler.RunEnqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; async delivery runs disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize delivery run enqueuer", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
