package scheduler

import (
	"fmt"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers the cron entries that drive the system: the daily
// delivery run, dedup purge, quota monitoring, and reservation reclaim.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// NewPeriodic creates the asynq scheduler with all cron entries registered.
func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	scheduler := asynq.NewScheduler(opt, nil)
	p := &Periodic{scheduler: scheduler, log: log.WithComponent("scheduler")}

	entries := []struct {
		cron string
		task *asynq.Task
	}{
		{cfg.GetDeliveryRunCron(), NewDeliveryRunTask()},
		{cfg.GetDedupPurgeCron(), NewDedupPurgeTask()},
		{cfg.GetQuotaMonitorCron(), NewQuotaMonitorTask()},
		{cfg.GetLeaseReclaimCron(), NewReservationsReclaimTask()},
	}
	for _, entry := range entries {
		if _, err := scheduler.Register(entry.cron, entry.task, asynq.Queue(queue)); err != nil {
			return nil, fmt.Errorf("register %s (%q): %w", entry.task.Type(), entry.cron, err)
		}
		p.log.Info("periodic task registered", "task", entry.task.Type(), "cron", entry.cron)
	}

	return p, nil
}

// Run blocks serving cron entries until Shutdown.
func (p *Periodic) Run() error {
	return p.scheduler.Run()
}

// Shutdown stops the scheduler.
func (p *Periodic) Shutdown() {
	p.scheduler.Shutdown()
}
