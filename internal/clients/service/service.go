// Package service contains business logic for client management.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"leadflow_backend/internal/clients/repository"
	"leadflow_backend/internal/clients/transport"
	"leadflow_backend/internal/plans"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

// Service implements client management use cases.
type Service struct {
	repo    repository.Repository
	catalog *plans.Catalog
	log     *logger.Logger
}

// New creates a new clients service.
func New(repo repository.Repository, catalog *plans.Catalog, log *logger.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, log: log}
}

// Create registers a new client after validating its plan against the tier
// catalog. Exclusivity and batch size are constrained by the plan.
func (s *Service) Create(ctx context.Context, req transport.CreateClientRequest) (repository.Client, error) {
	plan, ok := s.catalog.Get(req.Plan)
	if !ok {
		return repository.Client{}, apperr.BadRequest(fmt.Sprintf("unknown plan %q", req.Plan))
	}
	if req.Exclusive && !plan.ExclusiveOption {
		return repository.Client{}, apperr.BadRequest(fmt.Sprintf("plan %q does not allow exclusive deliveries", req.Plan))
	}
	if req.LeadCount > plan.MaxLeadsPerBatch {
		return repository.Client{}, apperr.BadRequest(
			fmt.Sprintf("lead count %d exceeds plan %q batch cap of %d", req.LeadCount, req.Plan, plan.MaxLeadsPerBatch))
	}

	client, err := s.repo.Create(ctx, repository.CreateParams{
		Name:           req.Name,
		Email:          req.Email,
		Plan:           req.Plan,
		Exclusive:      req.Exclusive,
		LeadCount:      req.LeadCount,
		RemainingQuota: req.InitialQuota,
		MonthlyRevenue: req.MonthlyRevenue,
	})
	if err != nil {
		return repository.Client{}, err
	}

	s.log.Info("client registered", "client_id", client.ID, "plan", client.Plan, "exclusive", client.Exclusive)
	return client, nil
}

// GetByID returns a single client.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (repository.Client, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all clients.
func (s *Service) List(ctx context.Context) ([]repository.Client, error) {
	return s.repo.List(ctx)
}

// TopUpQuota increases a client's remaining quota.
func (s *Service) TopUpQuota(ctx context.Context, id uuid.UUID, amount int) (repository.Client, error) {
	client, err := s.repo.TopUpQuota(ctx, id, amount)
	if err != nil {
		return repository.Client{}, err
	}
	s.log.Info("client quota topped up", "client_id", id, "amount", amount, "remaining", client.RemainingQuota)
	return client, nil
}

// SetActive enables or disables a client for delivery runs.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (repository.Client, error) {
	return s.repo.SetActive(ctx, id, active)
}
