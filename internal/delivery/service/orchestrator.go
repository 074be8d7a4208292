package service

import (
	"context"
	"errors"
	"time"

	clientrepo "leadflow_backend/internal/clients/repository"
	"leadflow_backend/internal/delivery/engine"
	"leadflow_backend/internal/events"
)

// RunSummary is the outcome of one pass over all deliverable clients.
type RunSummary struct {
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	ClientsServed  int       `json:"clientsServed"`
	ClientsSkipped int       `json:"clientsSkipped"`
	LeadsDelivered int       `json:"leadsDelivered"`
	Errors         int       `json:"errors"`
}

// RunAll delivers to every active client with quota, higher plan tiers first.
// Clients inside a tier are served in listing order. A client whose
// transaction aborts is retried once; other failures are counted and the run
// moves on.
func (s *Service) RunAll(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{StartedAt: time.Now().UTC()}

	clients, err := s.clients.ListDeliverable(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	byPlan := make(map[string][]clientrepo.Client, len(clients))
	for _, client := range clients {
		byPlan[client.Plan] = append(byPlan[client.Plan], client)
	}

	for _, plan := range s.catalog.Names() {
		for _, client := range byPlan[plan] {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}

			result, err := s.DeliverTo(ctx, client)
			if errors.Is(err, engine.ErrTransactionAborted) {
				s.log.Warn("delivery aborted, retrying once", "client_id", client.ID)
				result, err = s.DeliverTo(ctx, client)
			}
			if err != nil {
				s.log.Error("delivery failed during run", "client_id", client.ID, "error", err)
				summary.Errors++
				continue
			}

			if result.Delivered() {
				summary.ClientsServed++
				summary.LeadsDelivered += len(result.Leads)
			} else {
				summary.ClientsSkipped++
			}
		}
		delete(byPlan, plan)
	}

	// Clients on plans missing from the catalog are skipped, not failed.
	for plan, remaining := range byPlan {
		s.log.Warn("skipping clients on unknown plan", "plan", plan, "count", len(remaining))
		summary.ClientsSkipped += len(remaining)
	}

	summary.FinishedAt = time.Now().UTC()
	s.log.Info("delivery run completed",
		"served", summary.ClientsServed, "skipped", summary.ClientsSkipped,
		"leads", summary.LeadsDelivered, "errors", summary.Errors,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String())

	s.bus.Publish(ctx, events.DeliveryRunCompleted{
		BaseEvent:      events.NewBaseEvent(),
		StartedAt:      summary.StartedAt,
		ClientsServed:  summary.ClientsServed,
		ClientsSkipped: summary.ClientsSkipped,
		LeadsDelivered: summary.LeadsDelivered,
		Errors:         summary.Errors,
	})

	return summary, nil
}
