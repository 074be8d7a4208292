package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/leadpool/domain"
	"leadflow_backend/internal/leadpool/repository"
	"leadflow_backend/internal/leadpool/transport"
	platformevents "leadflow_backend/platform/events"
	"leadflow_backend/platform/logger"
)

type fakePoolRepo struct {
	ingested     []domain.Lead
	ingestWindow int
	ingestResult repository.IngestResult
	withdrawArgs repository.WithdrawParams
	released     []uuid.UUID
}

func (f *fakePoolRepo) Ingest(_ context.Context, leads []domain.Lead, dedupWindowDays int) (repository.IngestResult, error) {
	f.ingested = leads
	f.ingestWindow = dedupWindowDays
	if f.ingestResult != (repository.IngestResult{}) {
		return f.ingestResult, nil
	}
	return repository.IngestResult{Accepted: len(leads)}, nil
}

func (f *fakePoolRepo) Withdraw(_ context.Context, params repository.WithdrawParams) ([]domain.Lead, error) {
	f.withdrawArgs = params
	return nil, nil
}

func (f *fakePoolRepo) Release(_ context.Context, reservationID uuid.UUID) (int, error) {
	f.released = append(f.released, reservationID)
	return 0, nil
}

func (f *fakePoolRepo) ReleaseExpired(context.Context, time.Duration) (int, error) {
	return 0, nil
}

func (f *fakePoolRepo) CountByStatus(context.Context) (map[domain.Status]int, error) {
	return nil, nil
}

func newTestService() (*Service, *fakePoolRepo) {
	repo := &fakePoolRepo{}
	log := logger.New("test")
	return New(repo, platformevents.NewInMemoryBus(log), 30, log), repo
}

func TestIngestNormalizesAndDeduplicatesBatch(t *testing.T) {
	svc, repo := newTestService()

	req := transport.IngestRequest{Leads: []transport.LeadInput{
		{Email: "Jane@Example.com", FirstName: "Jane", LastName: "Doe", Company: "Acme"},
		{Email: "jane@example.com", FirstName: "Janet", LastName: "Doe", Company: "Other"},
		{Email: "bob@corp.io", FirstName: "Bob", LastName: "Ray"},
	}}

	resp, err := svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if resp.Accepted != 2 {
		t.Errorf("Accepted = %d, want 2", resp.Accepted)
	}
	if resp.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", resp.Duplicates)
	}
	if len(repo.ingested) != 2 {
		t.Fatalf("ingested %d leads, want 2", len(repo.ingested))
	}
	// First occurrence wins and email is normalized.
	if repo.ingested[0].Email != "jane@example.com" || repo.ingested[0].FirstName != "Jane" {
		t.Errorf("first lead = %+v, want normalized Jane", repo.ingested[0])
	}
}

func TestIngestReportsRecentlyDeliveredRejections(t *testing.T) {
	svc, repo := newTestService()
	repo.ingestResult = repository.IngestResult{Accepted: 1, Rejected: 1}

	req := transport.IngestRequest{Leads: []transport.LeadInput{
		{Email: "fresh@example.com", FirstName: "Fred", LastName: "New"},
		{Email: "served@example.com", FirstName: "Sam", LastName: "Old"},
	}}

	resp, err := svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if resp.Accepted != 1 {
		t.Errorf("Accepted = %d, want 1", resp.Accepted)
	}
	if resp.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", resp.Rejected)
	}
	if repo.ingestWindow != 30 {
		t.Errorf("dedup window = %d, want 30", repo.ingestWindow)
	}
}

func TestWithdrawGeneratesFreshReservation(t *testing.T) {
	svc, repo := newTestService()
	clientID := uuid.New()

	reservationID, _, err := svc.Withdraw(context.Background(), clientID, 25, 30)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	if reservationID == uuid.Nil {
		t.Error("reservation ID is nil")
	}
	if repo.withdrawArgs.ReservationID != reservationID {
		t.Error("reservation ID not passed to repository")
	}
	if repo.withdrawArgs.ClientID != clientID || repo.withdrawArgs.Count != 25 || repo.withdrawArgs.DedupWindowDays != 30 {
		t.Errorf("unexpected withdraw params: %+v", repo.withdrawArgs)
	}
}
