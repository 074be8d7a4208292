package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	clientrepo "leadflow_backend/internal/clients/repository"
	"leadflow_backend/internal/leadpool/domain"
	"leadflow_backend/internal/plans"
	"leadflow_backend/platform/logger"
)

// fakePool hands out leads from an in-memory slice under a lock, modeling the
// disjointness the database gives real withdrawals.
type fakePool struct {
	mu        sync.Mutex
	available []domain.Lead
	reserved  map[uuid.UUID][]domain.Lead
	released  int
}

func newFakePool(n int) *fakePool {
	pool := &fakePool{reserved: make(map[uuid.UUID][]domain.Lead)}
	for i := 0; i < n; i++ {
		pool.available = append(pool.available, domain.Lead{
			ID:     uuid.New(),
			Email:  uuid.NewString() + "@example.com",
			Status: domain.StatusAvailable,
		})
	}
	return pool
}

func (f *fakePool) Withdraw(_ context.Context, _ uuid.UUID, count, _ int) (uuid.UUID, []domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if count > len(f.available) {
		count = len(f.available)
	}
	batch := f.available[:count]
	f.available = f.available[count:]

	reservationID := uuid.New()
	f.reserved[reservationID] = batch
	return reservationID, batch, nil
}

func (f *fakePool) Release(_ context.Context, reservationID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch := f.reserved[reservationID]
	delete(f.reserved, reservationID)
	f.available = append(f.available, batch...)
	f.released += len(batch)
	return len(batch), nil
}

// fakeCommitter tracks delivered leads and enforces the quota floor the real
// transaction enforces with a row lock.
type fakeCommitter struct {
	mu        sync.Mutex
	quota     map[uuid.UUID]int
	delivered map[uuid.UUID]int // lead ID -> times delivered
	err       error
	dropAll   bool
}

func newFakeCommitter() *fakeCommitter {
	return &fakeCommitter{
		quota:     make(map[uuid.UUID]int),
		delivered: make(map[uuid.UUID]int),
	}
}

func (f *fakeCommitter) Commit(_ context.Context, params CommitParams) (CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return CommitResult{}, f.err
	}
	if f.dropAll {
		return CommitResult{Dropped: len(params.Leads)}, nil
	}
	if quota, ok := f.quota[params.ClientID]; ok {
		if quota < len(params.Leads) {
			return CommitResult{}, ErrTransactionAborted
		}
		f.quota[params.ClientID] = quota - len(params.Leads)
	}
	for _, lead := range params.Leads {
		f.delivered[lead.ID]++
	}
	return CommitResult{Delivered: params.Leads}, nil
}

func testClient(plan string, leadCount, quota int) clientrepo.Client {
	return clientrepo.Client{
		ID:             uuid.New(),
		Name:           "Test Client",
		Plan:           plan,
		LeadCount:      leadCount,
		RemainingQuota: quota,
		Active:         true,
	}
}

func newEngine(pool *fakePool, committer *fakeCommitter) *Engine {
	return New(pool, committer, plans.Default(), 30, logger.New("test"))
}

func TestDeliverQuotaExhausted(t *testing.T) {
	eng := newEngine(newFakePool(10), newFakeCommitter())

	result, err := eng.Deliver(context.Background(), testClient("basic", 50, 0))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if result.Reason != ReasonQuotaExhausted {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonQuotaExhausted)
	}
	if result.Delivered() {
		t.Error("Delivered() = true for exhausted quota")
	}
}

func TestDeliverBatchSizing(t *testing.T) {
	cases := []struct {
		name      string
		plan      string
		leadCount int
		quota     int
		poolSize  int
		want      int
	}{
		{"configured batch", "basic", 50, 1000, 200, 50},
		{"capped by plan", "basic", 0, 1000, 200, 100},
		{"capped by quota", "basic", 50, 7, 200, 7},
		{"short pool", "pro", 250, 1000, 12, 12},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			committer := newFakeCommitter()
			eng := newEngine(newFakePool(tc.poolSize), committer)

			result, err := eng.Deliver(context.Background(), testClient(tc.plan, tc.leadCount, tc.quota))
			if err != nil {
				t.Fatalf("Deliver: %v", err)
			}
			if len(result.Leads) != tc.want {
				t.Errorf("delivered %d leads, want %d", len(result.Leads), tc.want)
			}
		})
	}
}

func TestDeliverEmptyPool(t *testing.T) {
	eng := newEngine(newFakePool(0), newFakeCommitter())

	result, err := eng.Deliver(context.Background(), testClient("basic", 50, 100))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if result.Reason != ReasonNoEligibleLeads {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonNoEligibleLeads)
	}
}

func TestDeliverReleasesReservationOnCommitFailure(t *testing.T) {
	pool := newFakePool(20)
	committer := newFakeCommitter()
	committer.err = errors.New("connection reset")
	eng := newEngine(pool, committer)

	_, err := eng.Deliver(context.Background(), testClient("basic", 10, 100))
	if err == nil {
		t.Fatal("expected error from failed commit")
	}
	if pool.released != 10 {
		t.Errorf("released %d leads, want 10", pool.released)
	}
	if len(pool.available) != 20 {
		t.Errorf("pool has %d available leads, want all 20 back", len(pool.available))
	}
}

func TestDeliverAllLeadsDroppedAtCommit(t *testing.T) {
	committer := newFakeCommitter()
	committer.dropAll = true
	eng := newEngine(newFakePool(10), committer)

	result, err := eng.Deliver(context.Background(), testClient("basic", 5, 100))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if result.Reason != ReasonNoEligibleLeads {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonNoEligibleLeads)
	}
	if result.Dropped != 5 {
		t.Errorf("Dropped = %d, want 5", result.Dropped)
	}
}

func TestDeliverUnknownPlan(t *testing.T) {
	eng := newEngine(newFakePool(10), newFakeCommitter())

	if _, err := eng.Deliver(context.Background(), testClient("platinum", 5, 100)); err == nil {
		t.Error("expected error for unknown plan")
	}
}

// Concurrent deliveries must produce disjoint batches, deliver no lead twice,
// and never push quota below zero.
func TestDeliverConcurrentClientsDisjoint(t *testing.T) {
	const workers = 16
	pool := newFakePool(workers * 10)
	committer := newFakeCommitter()
	eng := newEngine(pool, committer)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		client := testClient("basic", 10, 10)
		committer.quota[client.ID] = 10

		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.Deliver(context.Background(), client); err != nil {
				t.Errorf("Deliver: %v", err)
			}
		}()
	}
	wg.Wait()

	for leadID, times := range committer.delivered {
		if times != 1 {
			t.Errorf("lead %s delivered %d times", leadID, times)
		}
	}
	if len(committer.delivered) != workers*10 {
		t.Errorf("delivered %d distinct leads, want %d", len(committer.delivered), workers*10)
	}
	for clientID, quota := range committer.quota {
		if quota < 0 {
			t.Errorf("client %s quota went negative: %d", clientID, quota)
		}
	}
}

// A client retrying after an aborted transaction observes no partial state.
func TestDeliverAbortLeavesNoPartialState(t *testing.T) {
	pool := newFakePool(10)
	committer := newFakeCommitter()
	client := testClient("basic", 10, 10)
	committer.quota[client.ID] = 3 // commit will refuse the batch
	eng := newEngine(pool, committer)

	_, err := eng.Deliver(context.Background(), client)
	if !errors.Is(err, ErrTransactionAborted) {
		t.Fatalf("err = %v, want ErrTransactionAborted", err)
	}
	if len(pool.available) != 10 {
		t.Errorf("pool has %d available leads after abort, want 10", len(pool.available))
	}
	if committer.quota[client.ID] != 3 {
		t.Errorf("quota changed on aborted commit: %d", committer.quota[client.ID])
	}
	if len(committer.delivered) != 0 {
		t.Errorf("leads delivered on aborted commit: %d", len(committer.delivered))
	}
}
