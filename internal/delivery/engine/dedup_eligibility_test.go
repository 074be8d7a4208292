package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/dedup"
	"leadflow_backend/internal/leadpool/domain"
	"leadflow_backend/internal/plans"
	"leadflow_backend/platform/logger"
)

type indexEntry struct {
	email       string
	fingerprint string
	exclusive   bool
	clientID    uuid.UUID
	deliveredAt time.Time
}

// indexedPool models pool and dedup index together, applying the same
// eligibility rules as the withdraw and commit SQL: an entry inside the
// window blocks everyone, an exclusive entry blocks every other client at
// any age, and a re-delivery to the lock holder replaces a stale lock row
// instead of colliding with it.
type indexedPool struct {
	mu         sync.Mutex
	windowDays int
	available  []domain.Lead
	reserved   map[uuid.UUID][]domain.Lead
	entries    []indexEntry
}

func newIndexedPool(windowDays int, leads ...domain.Lead) *indexedPool {
	return &indexedPool{
		windowDays: windowDays,
		available:  leads,
		reserved:   make(map[uuid.UUID][]domain.Lead),
	}
}

func (p *indexedPool) eligible(lead domain.Lead, clientID uuid.UUID) bool {
	window := time.Duration(p.windowDays) * 24 * time.Hour
	for _, e := range p.entries {
		if e.email != lead.Email {
			continue
		}
		if time.Since(e.deliveredAt) < window {
			return false
		}
		if e.exclusive && e.clientID != clientID {
			return false
		}
	}
	return true
}

func (p *indexedPool) Withdraw(_ context.Context, clientID uuid.UUID, count, _ int) (uuid.UUID, []domain.Lead, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var batch, rest []domain.Lead
	for _, lead := range p.available {
		if len(batch) < count && p.eligible(lead, clientID) {
			batch = append(batch, lead)
		} else {
			rest = append(rest, lead)
		}
	}
	p.available = rest

	reservationID := uuid.New()
	p.reserved[reservationID] = batch
	return reservationID, batch, nil
}

func (p *indexedPool) Release(_ context.Context, reservationID uuid.UUID) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch := p.reserved[reservationID]
	delete(p.reserved, reservationID)
	p.available = append(p.available, batch...)
	return len(batch), nil
}

func (p *indexedPool) Commit(_ context.Context, params CommitParams) (CommitResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch := p.reserved[params.ReservationID]
	delete(p.reserved, params.ReservationID)

	var delivered []domain.Lead
	dropped := 0
	for _, lead := range batch {
		if !p.eligible(lead, params.ClientID) {
			p.available = append(p.available, lead)
			dropped++
			continue
		}
		if err := p.record(lead, params.Exclusive, params.ClientID); err != nil {
			return CommitResult{}, err
		}
		delivered = append(delivered, lead)
	}
	return CommitResult{Delivered: delivered, Dropped: dropped}, nil
}

func (p *indexedPool) record(lead domain.Lead, exclusive bool, clientID uuid.UUID) error {
	fp := dedup.Fingerprint(lead.Email, lead.Company)

	if exclusive {
		kept := p.entries[:0]
		for _, e := range p.entries {
			if e.email == lead.Email && e.exclusive && e.clientID == clientID && e.fingerprint != fp {
				continue
			}
			kept = append(kept, e)
		}
		p.entries = kept
	}

	for i := range p.entries {
		e := &p.entries[i]
		if e.email == lead.Email && e.fingerprint == fp {
			e.exclusive = e.exclusive || exclusive
			e.clientID = clientID
			e.deliveredAt = time.Now()
			return nil
		}
	}

	if exclusive {
		for _, e := range p.entries {
			if e.email == lead.Email && e.exclusive {
				return ErrTransactionAborted
			}
		}
	}

	p.entries = append(p.entries, indexEntry{
		email:       lead.Email,
		fingerprint: fp,
		exclusive:   exclusive,
		clientID:    clientID,
		deliveredAt: time.Now(),
	})
	return nil
}

func indexedEngine(pool *indexedPool) *Engine {
	return New(pool, pool, plans.Default(), pool.windowDays, logger.New("test"))
}

func daysAgo(n int) time.Time {
	return time.Now().Add(-time.Duration(n) * 24 * time.Hour)
}

// An exclusive lock blocks other clients at any age; a plain window entry
// stops blocking once the window lapses.
func TestDeliverDedupEligibility(t *testing.T) {
	holder := uuid.New()

	cases := []struct {
		name      string
		exclusive bool
		ageDays   int
		want      string // reason; empty means delivered
	}{
		{"within window", false, 29, ReasonNoEligibleLeads},
		{"window lapsed", false, 31, ""},
		{"exclusive within window", true, 29, ReasonNoEligibleLeads},
		{"exclusive long past window", true, 120, ReasonNoEligibleLeads},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lead := domain.Lead{ID: uuid.New(), Email: "carol@example.com", Company: "Example BV"}
			pool := newIndexedPool(30, lead)
			pool.entries = []indexEntry{{
				email:       lead.Email,
				fingerprint: dedup.Fingerprint(lead.Email, lead.Company),
				exclusive:   tc.exclusive,
				clientID:    holder,
				deliveredAt: daysAgo(tc.ageDays),
			}}

			result, err := indexedEngine(pool).Deliver(context.Background(), testClient("pro", 10, 100))
			if err != nil {
				t.Fatalf("Deliver: %v", err)
			}
			if result.Reason != tc.want {
				t.Errorf("Reason = %q, want %q", result.Reason, tc.want)
			}
			if (tc.want == "") != result.Delivered() {
				t.Errorf("Delivered() = %v with reason %q", result.Delivered(), result.Reason)
			}
		})
	}
}

// The lock holder may receive the same email again after the window, even
// when a changed company spelling gives the lead a new fingerprint. The old
// lock row is replaced, not collided with, so the commit must not abort.
func TestDeliverExclusiveHolderRedeliversChangedCompany(t *testing.T) {
	holderID := uuid.New()
	lead := domain.Lead{ID: uuid.New(), Email: "dave@example.com", Company: "Acme Corp."}

	pool := newIndexedPool(30, lead)
	pool.entries = []indexEntry{{
		email:       lead.Email,
		fingerprint: dedup.Fingerprint(lead.Email, "Acme"),
		exclusive:   true,
		clientID:    holderID,
		deliveredAt: daysAgo(60),
	}}

	holder := testClient("premium", 10, 100)
	holder.ID = holderID
	holder.Exclusive = true

	result, err := indexedEngine(pool).Deliver(context.Background(), holder)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !result.Delivered() {
		t.Fatalf("not delivered, reason %q", result.Reason)
	}

	locks := 0
	for _, e := range pool.entries {
		if e.email == lead.Email && e.exclusive {
			locks++
			if e.fingerprint != dedup.Fingerprint(lead.Email, lead.Company) {
				t.Errorf("lock kept stale fingerprint %q", e.fingerprint)
			}
			if e.clientID != holderID {
				t.Errorf("lock moved to client %s", e.clientID)
			}
		}
	}
	if locks != 1 {
		t.Errorf("found %d exclusive entries for %s, want 1", locks, lead.Email)
	}
}

// A foreign exclusive lock appearing between withdrawal and commit drops the
// lead instead of aborting the batch.
func TestDeliverDropsLeadLockedAfterWithdrawal(t *testing.T) {
	contested := domain.Lead{ID: uuid.New(), Email: "erin@example.com", Company: "Contested"}
	free := domain.Lead{ID: uuid.New(), Email: "frank@example.com", Company: "Free"}
	pool := newIndexedPool(30, contested, free)

	client := testClient("pro", 10, 100)
	reservationID, leads, err := pool.Withdraw(context.Background(), client.ID, 10, pool.windowDays)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("withdrew %d leads, want 2", len(leads))
	}

	// Another client locks the contested email while the batch is reserved.
	pool.entries = append(pool.entries, indexEntry{
		email:       contested.Email,
		fingerprint: dedup.Fingerprint(contested.Email, contested.Company),
		exclusive:   true,
		clientID:    uuid.New(),
		deliveredAt: time.Now(),
	})

	result, err := pool.Commit(context.Background(), CommitParams{
		DeliveryID:      uuid.New(),
		ReservationID:   reservationID,
		ClientID:        client.ID,
		DedupWindowDays: pool.windowDays,
		Leads:           leads,
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(result.Delivered) != 1 || result.Delivered[0].Email != free.Email {
		t.Errorf("delivered %v, want only %s", result.Delivered, free.Email)
	}
	if result.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", result.Dropped)
	}
	if len(pool.available) != 1 || pool.available[0].Email != contested.Email {
		t.Errorf("dropped lead not returned to pool: %v", pool.available)
	}
}
