// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Pool Events
// =============================================================================

// LeadsIngested is published after a batch of leads is accepted into the pool.
type LeadsIngested struct {
	BaseEvent
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
}

func (e LeadsIngested) EventName() string { return "leadpool.leads.ingested" }

// =============================================================================
// Delivery Events
// =============================================================================

// DeliveryCommitted is published after a delivery transaction commits. All
// state changes it describes are already durable when handlers run.
type DeliveryCommitted struct {
	BaseEvent
	DeliveryID  uuid.UUID `json:"deliveryId"`
	ClientID    uuid.UUID `json:"clientId"`
	ClientName  string    `json:"clientName"`
	ClientEmail string    `json:"clientEmail"`
	LeadCount   int       `json:"leadCount"`
	Exclusive   bool      `json:"exclusive"`
	ExportURL   string    `json:"exportUrl,omitempty"`
}

func (e DeliveryCommitted) EventName() string { return "delivery.committed" }

// DeliveryRunCompleted is published when a scheduled run over all active
// clients finishes, successfully or not.
type DeliveryRunCompleted struct {
	BaseEvent
	StartedAt      time.Time `json:"startedAt"`
	ClientsServed  int       `json:"clientsServed"`
	ClientsSkipped int       `json:"clientsSkipped"`
	LeadsDelivered int       `json:"leadsDelivered"`
	Errors         int       `json:"errors"`
}

func (e DeliveryRunCompleted) EventName() string { return "delivery.run.completed" }

// QuotaAlert is published when a client has fewer than two full batches of
// quota left.
type QuotaAlert struct {
	BaseEvent
	ClientID       uuid.UUID `json:"clientId"`
	ClientName     string    `json:"clientName"`
	RemainingQuota int       `json:"remainingQuota"`
	BatchesLeft    int       `json:"batchesLeft"`
}

func (e QuotaAlert) EventName() string { return "clients.quota.alert" }
