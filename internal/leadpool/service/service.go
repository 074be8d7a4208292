// Package service contains business logic for pool ingestion and withdrawal.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leadpool/domain"
	"leadflow_backend/internal/leadpool/repository"
	"leadflow_backend/internal/leadpool/transport"
	"leadflow_backend/platform/logger"
)

// Service implements lead pool use cases.
type Service struct {
	repo       repository.Repository
	bus        events.Bus
	windowDays int
	log        *logger.Logger
}

// New creates a new lead pool service.
func New(repo repository.Repository, bus events.Bus, dedupWindowDays int, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, windowDays: dedupWindowDays, log: log}
}

// Ingest normalizes a scraped batch, drops intra-batch duplicates keeping the
// first occurrence, and inserts the remainder. Emails delivered within the
// dedup window are rejected rather than pooled. Invalid rows were already
// rejected at the transport layer.
func (s *Service) Ingest(ctx context.Context, req transport.IngestRequest) (transport.IngestResponse, error) {
	seen := make(map[string]struct{}, len(req.Leads))
	leads := make([]domain.Lead, 0, len(req.Leads))
	intraBatch := 0

	for _, input := range req.Leads {
		email := domain.NormalizeEmail(input.Email)
		if _, dup := seen[email]; dup {
			intraBatch++
			continue
		}
		seen[email] = struct{}{}
		leads = append(leads, domain.Lead{
			Email:      email,
			FirstName:  input.FirstName,
			LastName:   input.LastName,
			Title:      input.Title,
			Company:    input.Company,
			ProfileURL: input.ProfileURL,
		})
	}

	result, err := s.repo.Ingest(ctx, leads, s.windowDays)
	if err != nil {
		return transport.IngestResponse{}, err
	}

	resp := transport.IngestResponse{
		Accepted:   result.Accepted,
		Duplicates: result.Duplicates + intraBatch,
		Rejected:   result.Rejected,
	}

	s.log.Info("leads ingested",
		"accepted", resp.Accepted, "duplicates", resp.Duplicates, "rejected", resp.Rejected,
		"batch_size", len(req.Leads))
	s.bus.Publish(ctx, events.LeadsIngested{
		BaseEvent:  events.NewBaseEvent(),
		Accepted:   resp.Accepted,
		Duplicates: resp.Duplicates,
		Rejected:   resp.Rejected,
	})

	return resp, nil
}

// Withdraw reserves up to count eligible leads for the client under a fresh
// reservation ID. The returned leads are in reserved state until the delivery
// commits or the reservation is released.
func (s *Service) Withdraw(ctx context.Context, clientID uuid.UUID, count, dedupWindowDays int) (uuid.UUID, []domain.Lead, error) {
	reservationID := uuid.New()
	leads, err := s.repo.Withdraw(ctx, repository.WithdrawParams{
		ReservationID:   reservationID,
		ClientID:        clientID,
		Count:           count,
		DedupWindowDays: dedupWindowDays,
	})
	if err != nil {
		return uuid.Nil, nil, err
	}
	return reservationID, leads, nil
}

// Release returns all leads under a reservation to the pool.
func (s *Service) Release(ctx context.Context, reservationID uuid.UUID) (int, error) {
	return s.repo.Release(ctx, reservationID)
}

// ReleaseExpired reclaims reservations older than the lease.
func (s *Service) ReleaseExpired(ctx context.Context, lease time.Duration) (int, error) {
	released, err := s.repo.ReleaseExpired(ctx, lease)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		s.log.Warn("reclaimed expired reservations", "leads_released", released, "lease", lease.String())
	}
	return released, nil
}

// CountByStatus reports pool sizes per lifecycle state.
func (s *Service) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	return s.repo.CountByStatus(ctx)
}
