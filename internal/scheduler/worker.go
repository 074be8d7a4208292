package scheduler

import (
	"context"
	"fmt"

	clientrepo "leadflow_backend/internal/clients/repository"
	deduprepo "leadflow_backend/internal/dedup/repository"
	deliveryservice "leadflow_backend/internal/delivery/service"
	"leadflow_backend/internal/events"
	leadpoolservice "leadflow_backend/internal/leadpool/service"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// WorkerConfig combines the config interfaces the worker needs.
type WorkerConfig interface {
	config.SchedulerConfig
	config.AllocationConfig
}

// Worker consumes the maintenance tasks and dispatches them to the domain
// services. One worker process serves all task types.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	delivery *deliveryservice.Service
	leadpool *leadpoolservice.Service
	dedup    deduprepo.Repository
	clients  clientrepo.Repository
	bus      events.Bus
	cfg      WorkerConfig
	log      *logger.Logger
}

// NewWorker creates the asynq server and registers all task handlers.
func NewWorker(
	cfg WorkerConfig,
	delivery *deliveryservice.Service,
	leadpool *leadpoolservice.Service,
	dedup deduprepo.Repository,
	clients clientrepo.Repository,
	bus events.Bus,
	log *logger.Logger,
) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		delivery: delivery,
		leadpool: leadpool,
		dedup:    dedup,
		clients:  clients,
		bus:      bus,
		cfg:      cfg,
		log:      log.WithComponent("scheduler"),
	}

	mux.HandleFunc(TaskDeliveryRun, w.handleDeliveryRun)
	mux.HandleFunc(TaskDedupPurge, w.handleDedupPurge)
	mux.HandleFunc(TaskQuotaMonitor, w.handleQuotaMonitor)
	mux.HandleFunc(TaskReservationsClaim, w.handleReservationsReclaim)

	return w, nil
}

// Run serves tasks until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleDeliveryRun(ctx context.Context, _ *asynq.Task) error {
	summary, err := w.delivery.RunAll(ctx)
	if err != nil {
		return fmt.Errorf("delivery run: %w", err)
	}
	w.log.Info("scheduled delivery run finished",
		"served", summary.ClientsServed, "leads", summary.LeadsDelivered, "errors", summary.Errors)
	return nil
}

func (w *Worker) handleDedupPurge(ctx context.Context, _ *asynq.Task) error {
	purged, err := w.dedup.PurgeExpired(ctx, w.cfg.GetDedupWindowDays(), w.cfg.GetExclusiveRetentionDays())
	if err != nil {
		return fmt.Errorf("dedup purge: %w", err)
	}
	w.log.Info("dedup entries purged", "removed", purged)
	return nil
}

func (w *Worker) handleQuotaMonitor(ctx context.Context, _ *asynq.Task) error {
	lowClients, err := w.clients.ListLowQuota(ctx)
	if err != nil {
		return fmt.Errorf("quota monitor: %w", err)
	}

	for _, client := range lowClients {
		batchesLeft := 0
		if client.LeadCount > 0 {
			batchesLeft = client.RemainingQuota / client.LeadCount
		}
		w.bus.Publish(ctx, events.QuotaAlert{
			BaseEvent:      events.NewBaseEvent(),
			ClientID:       client.ID,
			ClientName:     client.Name,
			RemainingQuota: client.RemainingQuota,
			BatchesLeft:    batchesLeft,
		})
	}
	if len(lowClients) > 0 {
		w.log.Warn("low quota clients detected", "count", len(lowClients))
	}
	return nil
}

func (w *Worker) handleReservationsReclaim(ctx context.Context, _ *asynq.Task) error {
	if _, err := w.leadpool.ReleaseExpired(ctx, w.cfg.GetReservationLease()); err != nil {
		return fmt.Errorf("reclaim reservations: %w", err)
	}
	return nil
}
