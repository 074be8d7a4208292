// Package service coordinates delivery attempts and their post-commit side
// effects: personalization, CSV export, and event publication. Side effects
// never roll a committed delivery back.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	clientrepo "leadflow_backend/internal/clients/repository"
	"leadflow_backend/internal/delivery/engine"
	"leadflow_backend/internal/delivery/repository"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/export"
	"leadflow_backend/internal/leadpool/domain"
	"leadflow_backend/internal/personalizer"
	"leadflow_backend/internal/plans"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

// personalizeConcurrency bounds parallel generation calls per delivery.
const personalizeConcurrency = 4

// Service runs deliveries for individual clients.
type Service struct {
	engine    *engine.Engine
	repo      repository.Repository
	clients   clientrepo.Repository
	catalog   *plans.Catalog
	generator personalizer.Generator
	exporter  *export.Service
	bus       events.Bus
	log       *logger.Logger
}

// New creates a delivery service. generator and exporter may be nil when the
// corresponding integrations are disabled.
func New(
	eng *engine.Engine,
	repo repository.Repository,
	clients clientrepo.Repository,
	catalog *plans.Catalog,
	generator personalizer.Generator,
	exporter *export.Service,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		engine:    eng,
		repo:      repo,
		clients:   clients,
		catalog:   catalog,
		generator: generator,
		exporter:  exporter,
		bus:       bus,
		log:       log.WithComponent("delivery"),
	}
}

// DeliverTo attempts one delivery for the client and runs post-commit side
// effects for a committed one.
func (s *Service) DeliverTo(ctx context.Context, client clientrepo.Client) (engine.Result, error) {
	result, err := s.engine.Deliver(ctx, client)
	if err != nil {
		// Audit row for the failed attempt; the transaction itself left no trace.
		if recErr := s.repo.RecordFailure(ctx, uuid.New(), client.ID, client.LeadCount); recErr != nil {
			s.log.Error("failed to record delivery failure", "client_id", client.ID, "error", recErr)
		}
		return engine.Result{}, err
	}
	if !result.Delivered() {
		return result, nil
	}

	s.afterCommit(ctx, client, result)
	return result, nil
}

// DeliverByID loads the client and attempts one delivery.
func (s *Service) DeliverByID(ctx context.Context, clientID uuid.UUID) (engine.Result, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return engine.Result{}, err
	}
	if !client.Active {
		return engine.Result{}, apperr.Conflict("client is deactivated")
	}
	return s.DeliverTo(ctx, client)
}

// GetByID returns a delivery with its leads.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (repository.DeliveryDetail, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByClient returns a client's recent deliveries.
func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]repository.Delivery, error) {
	return s.repo.ListByClient(ctx, clientID, limit)
}

// afterCommit runs personalization and export for a committed delivery.
// Failures here are logged and absorbed; the delivery already happened.
func (s *Service) afterCommit(ctx context.Context, client clientrepo.Client, result engine.Result) {
	messages := s.personalize(ctx, client, result.Leads)

	exportURL := s.export(ctx, client, result, messages)

	s.bus.Publish(ctx, events.DeliveryCommitted{
		BaseEvent:   events.NewBaseEvent(),
		DeliveryID:  result.DeliveryID,
		ClientID:    client.ID,
		ClientName:  client.Name,
		ClientEmail: client.Email,
		LeadCount:   len(result.Leads),
		Exclusive:   client.Exclusive,
		ExportURL:   exportURL,
	})
}

func (s *Service) personalize(ctx context.Context, client clientrepo.Client, leads []domain.Lead) map[uuid.UUID]personalizer.Message {
	plan, ok := s.catalog.Get(client.Plan)
	if !ok || !plan.Personalization || s.generator == nil {
		return nil
	}

	var mu sync.Mutex
	messages := make(map[uuid.UUID]personalizer.Message, len(leads))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(personalizeConcurrency)
	for _, lead := range leads {
		lead := lead
		group.Go(func() error {
			msg, err := s.generator.Generate(groupCtx, lead)
			if err != nil {
				s.log.Warn("personalization failed for lead", "lead_id", lead.ID, "error", err)
				return nil
			}
			mu.Lock()
			messages[lead.ID] = msg
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	return messages
}

func (s *Service) export(ctx context.Context, client clientrepo.Client, result engine.Result, messages map[uuid.UUID]personalizer.Message) string {
	rows := export.BuildRows(client.Name, time.Now().UTC(), result.Leads, messages)
	data, err := export.RenderCSV(rows)
	if err != nil {
		s.log.Error("failed to render delivery export", "delivery_id", result.DeliveryID, "error", err)
		return ""
	}

	if !s.exporter.Enabled() {
		return ""
	}

	url, err := s.exporter.Upload(ctx, result.DeliveryID, data)
	if err != nil {
		s.log.Error("failed to upload delivery export", "delivery_id", result.DeliveryID, "error", err)
		return ""
	}
	if err := s.repo.SetExportURL(ctx, result.DeliveryID, url); err != nil {
		s.log.Error("failed to store export url", "delivery_id", result.DeliveryID, "error", err)
	}
	return url
}
