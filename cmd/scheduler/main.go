package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientrepo "leadflow_backend/internal/clients/repository"
	deduprepo "leadflow_backend/internal/dedup/repository"
	"leadflow_backend/internal/delivery"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/export"
	leadpoolrepo "leadflow_backend/internal/leadpool/repository"
	leadpoolservice "leadflow_backend/internal/leadpool/service"
	"leadflow_backend/internal/notification"
	"leadflow_backend/internal/personalizer"
	"leadflow_backend/internal/plans"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	sender := notification.NewSender(cfg)
	notificationModule := notification.New(sender, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	catalog, err := plans.LoadFile(cfg.GetPlansFile())
	if err != nil {
		log.Error("failed to load plan catalog", "error", err)
		panic("failed to load plan catalog: " + err.Error())
	}

	exporter, err := export.NewMinIOService(cfg, log)
	if err != nil {
		log.Error("failed to initialize export storage", "error", err)
		panic("failed to initialize export storage: " + err.Error())
	}
	if exporter.Enabled() {
		if err := exporter.EnsureBucketExists(ctx); err != nil {
			log.Error("failed to ensure deliveries bucket", "error", err)
			panic("failed to ensure deliveries bucket: " + err.Error())
		}
	}

	var generator personalizer.Generator
	if cfg.IsPersonalizerEnabled() {
		gemini, err := personalizer.NewGeminiGenerator(ctx, cfg, log)
		if err != nil {
			log.Error("failed to initialize personalizer", "error", err)
			panic("failed to initialize personalizer: " + err.Error())
		}
		generator = gemini
	} else {
		generator = personalizer.NewTemplateGenerator()
	}

	// Worker-side delivery wiring (no HTTP handlers required).
	clientsRepo := clientrepo.New(pool)
	leadpoolSvc := leadpoolservice.New(leadpoolrepo.New(pool), eventBus, cfg.GetDedupWindowDays(), log)
	dedupRepo := deduprepo.New(pool)

	deliveryModule := delivery.NewModule(delivery.Deps{
		Pool:            pool,
		LeadSource:      leadpoolSvc,
		Clients:         clientsRepo,
		Catalog:         catalog,
		Generator:       generator,
		Exporter:        exporter,
		Bus:             eventBus,
		Logger:          log,
		DedupWindowDays: cfg.GetDedupWindowDays(),
	})

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	go func() {
		if err := periodic.Run(); err != nil {
			log.Error("periodic scheduler stopped", "error", err)
		}
	}()
	defer periodic.Shutdown()

	worker, err := scheduler.NewWorker(cfg, deliveryModule.Service(), leadpoolSvc, dedupRepo, clientsRepo, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
