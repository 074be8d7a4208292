package scheduler

import "github.com/hibiken/asynq"

// Task type names for the periodic maintenance jobs. None carry a payload;
// each task is a trigger and the handler reads current state itself.
const (
	TaskDeliveryRun       = "delivery.run"
	TaskDedupPurge        = "dedup.purge"
	TaskQuotaMonitor      = "clients.quota.monitor"
	TaskReservationsClaim = "leadpool.reservations.reclaim"
)

// NewDeliveryRunTask triggers one delivery pass over all clients.
func NewDeliveryRunTask() *asynq.Task {
	return asynq.NewTask(TaskDeliveryRun, nil)
}

// NewDedupPurgeTask triggers expiry of lapsed dedup entries.
func NewDedupPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskDedupPurge, nil)
}

// NewQuotaMonitorTask triggers the low-quota sweep.
func NewQuotaMonitorTask() *asynq.Task {
	return asynq.NewTask(TaskQuotaMonitor, nil)
}

// NewReservationsReclaimTask triggers release of expired reservations.
func NewReservationsReclaimTask() *asynq.Task {
	return asynq.NewTask(TaskReservationsClaim, nil)
}
