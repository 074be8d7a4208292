package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	clientrepo "leadflow_backend/internal/clients/repository"
	"leadflow_backend/internal/delivery/engine"
	"leadflow_backend/internal/delivery/repository"
	"leadflow_backend/internal/leadpool/domain"
	"leadflow_backend/internal/plans"
	platformevents "leadflow_backend/platform/events"
	"leadflow_backend/platform/logger"
)

// fakeSource hands out synthetic leads and remembers releases.
type fakeSource struct {
	mu        sync.Mutex
	remaining int
	released  int
}

func (f *fakeSource) Withdraw(_ context.Context, _ uuid.UUID, count, _ int) (uuid.UUID, []domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if count > f.remaining {
		count = f.remaining
	}
	f.remaining -= count

	leads := make([]domain.Lead, count)
	for i := range leads {
		leads[i] = domain.Lead{ID: uuid.New(), Email: uuid.NewString() + "@x.io"}
	}
	return uuid.New(), leads, nil
}

func (f *fakeSource) Release(_ context.Context, _ uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return 0, nil
}

// fakeDeliveryRepo commits everything and records the order clients were
// served in. abortsLeft makes the first commits fail with an abort.
type fakeDeliveryRepo struct {
	mu         sync.Mutex
	order      []uuid.UUID
	failures   int
	abortsLeft int
}

func (f *fakeDeliveryRepo) Commit(_ context.Context, params engine.CommitParams) (engine.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.abortsLeft > 0 {
		f.abortsLeft--
		return engine.CommitResult{}, engine.ErrTransactionAborted
	}
	f.order = append(f.order, params.ClientID)
	return engine.CommitResult{Delivered: params.Leads}, nil
}

func (f *fakeDeliveryRepo) RecordFailure(_ context.Context, _, _ uuid.UUID, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures++
	return nil
}

func (f *fakeDeliveryRepo) SetExportURL(context.Context, uuid.UUID, string) error { return nil }

func (f *fakeDeliveryRepo) GetByID(context.Context, uuid.UUID) (repository.DeliveryDetail, error) {
	return repository.DeliveryDetail{}, nil
}

func (f *fakeDeliveryRepo) ListByClient(context.Context, uuid.UUID, int) ([]repository.Delivery, error) {
	return nil, nil
}

// fakeClientDir serves a fixed deliverable list.
type fakeClientDir struct {
	clientrepo.Repository
	deliverable []clientrepo.Client
}

func (f *fakeClientDir) ListDeliverable(context.Context) ([]clientrepo.Client, error) {
	return f.deliverable, nil
}

func (f *fakeClientDir) GetByID(_ context.Context, id uuid.UUID) (clientrepo.Client, error) {
	for _, c := range f.deliverable {
		if c.ID == id {
			return c, nil
		}
	}
	return clientrepo.Client{}, nil
}

func client(name, plan string, leadCount, quota int) clientrepo.Client {
	return clientrepo.Client{
		ID: uuid.New(), Name: name, Plan: plan,
		LeadCount: leadCount, RemainingQuota: quota, Active: true,
	}
}

func newTestService(source *fakeSource, repo *fakeDeliveryRepo, dir *fakeClientDir) *Service {
	log := logger.New("test")
	catalog := plans.Default()
	eng := engine.New(source, repo, catalog, 30, log)
	bus := platformevents.NewInMemoryBus(log)
	return New(eng, repo, dir, catalog, nil, nil, bus, log)
}

func TestRunAllServesHigherTiersFirst(t *testing.T) {
	basic := client("Basic Co", "basic", 5, 100)
	premium := client("Premium Co", "premium", 5, 100)
	pro := client("Pro Co", "pro", 5, 100)

	source := &fakeSource{remaining: 100}
	repo := &fakeDeliveryRepo{}
	svc := newTestService(source, repo, &fakeClientDir{deliverable: []clientrepo.Client{basic, premium, pro}})

	summary, err := svc.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if summary.ClientsServed != 3 || summary.LeadsDelivered != 15 {
		t.Errorf("summary = %+v, want 3 served / 15 leads", summary)
	}
	want := []uuid.UUID{premium.ID, pro.ID, basic.ID}
	for i, id := range want {
		if repo.order[i] != id {
			t.Fatalf("serve order[%d] = %s, want %s (premium, pro, basic)", i, repo.order[i], id)
		}
	}
}

func TestRunAllCountsEmptyPoolAsSkipped(t *testing.T) {
	source := &fakeSource{remaining: 0}
	repo := &fakeDeliveryRepo{}
	svc := newTestService(source, repo, &fakeClientDir{deliverable: []clientrepo.Client{
		client("Dry Co", "basic", 10, 100),
	}})

	summary, err := svc.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if summary.ClientsSkipped != 1 || summary.ClientsServed != 0 || summary.Errors != 0 {
		t.Errorf("summary = %+v, want 1 skipped", summary)
	}
}

func TestRunAllRetriesAbortedTransactionOnce(t *testing.T) {
	source := &fakeSource{remaining: 100}
	repo := &fakeDeliveryRepo{abortsLeft: 1}
	svc := newTestService(source, repo, &fakeClientDir{deliverable: []clientrepo.Client{
		client("Flaky Co", "basic", 5, 100),
	}})

	summary, err := svc.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if summary.ClientsServed != 1 || summary.Errors != 0 {
		t.Errorf("summary = %+v, want retry to succeed", summary)
	}
	if source.released != 1 {
		t.Errorf("released %d reservations, want 1 from the aborted attempt", source.released)
	}
	if repo.failures != 1 {
		t.Errorf("recorded %d failures, want 1 audit row for the abort", repo.failures)
	}
}

func TestRunAllCountsPersistentFailures(t *testing.T) {
	source := &fakeSource{remaining: 100}
	repo := &fakeDeliveryRepo{abortsLeft: 10}
	svc := newTestService(source, repo, &fakeClientDir{deliverable: []clientrepo.Client{
		client("Broken Co", "basic", 5, 100),
	}})

	summary, err := svc.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if summary.Errors != 1 || summary.ClientsServed != 0 {
		t.Errorf("summary = %+v, want 1 error", summary)
	}
}
