// Package notification provides event handlers for sending notifications
// in response to domain events. This module subscribes to events and inverts
// the dependency: domain modules never know about email providers.
package notification

import (
	"context"
	"fmt"

	"leadflow_backend/internal/events"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// Module routes domain events to the email sender. It is not HTTP-facing.
type Module struct {
	sender     Sender
	adminEmail string
	log        *logger.Logger
}

// New creates the notification module.
func New(sender Sender, cfg config.EmailConfig, log *logger.Logger) *Module {
	return &Module{
		sender:     sender,
		adminEmail: cfg.GetAdminEmail(),
		log:        log.WithComponent("notification"),
	}
}

// RegisterHandlers subscribes the module to the events it reacts to.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.DeliveryCommitted{}.EventName(), m)
	bus.Subscribe(events.DeliveryRunCompleted{}.EventName(), m)
	bus.Subscribe(events.QuotaAlert{}.EventName(), m)
}

// Handle routes events to the appropriate sender method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.DeliveryCommitted:
		return m.handleDeliveryCommitted(ctx, e)
	case events.DeliveryRunCompleted:
		return m.handleRunCompleted(ctx, e)
	case events.QuotaAlert:
		return m.handleQuotaAlert(ctx, e)
	default:
		return fmt.Errorf("notification module received unexpected event %q", event.EventName())
	}
}

func (m *Module) handleDeliveryCommitted(ctx context.Context, e events.DeliveryCommitted) error {
	if e.ClientEmail == "" {
		return nil
	}
	if err := m.sender.SendDeliveryNotice(ctx, e.ClientEmail, e.ClientName, e.LeadCount, e.ExportURL); err != nil {
		return fmt.Errorf("delivery notice to %s: %w", e.ClientEmail, err)
	}
	m.log.Info("delivery notice sent", "client_id", e.ClientID, "lead_count", e.LeadCount)
	return nil
}

func (m *Module) handleRunCompleted(ctx context.Context, e events.DeliveryRunCompleted) error {
	if m.adminEmail == "" {
		return nil
	}
	if err := m.sender.SendRunSummary(ctx, m.adminEmail, e.ClientsServed, e.ClientsSkipped, e.LeadsDelivered, e.Errors); err != nil {
		return fmt.Errorf("run summary to %s: %w", m.adminEmail, err)
	}
	return nil
}

func (m *Module) handleQuotaAlert(ctx context.Context, e events.QuotaAlert) error {
	if m.adminEmail == "" {
		return nil
	}
	if err := m.sender.SendQuotaAlert(ctx, m.adminEmail, e.ClientName, e.RemainingQuota, e.BatchesLeft); err != nil {
		return fmt.Errorf("quota alert for %s: %w", e.ClientName, err)
	}
	m.log.Warn("quota alert sent", "client_id", e.ClientID, "remaining", e.RemainingQuota)
	return nil
}
