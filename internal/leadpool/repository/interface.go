package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/leadpool/domain"
)

// IngestResult summarizes the outcome of a batch insert.
type IngestResult struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	// Rejected counts emails refused because they were delivered to someone
	// within the dedup window.
	Rejected int `json:"rejected"`
}

// WithdrawParams describes a single atomic withdrawal from the pool.
type WithdrawParams struct {
	// ReservationID tags every lead reserved by this withdrawal so a later
	// commit or release can address exactly this set.
	ReservationID uuid.UUID
	// ClientID is the requesting client; its own prior deliveries do not
	// block re-eligibility checks for exclusivity.
	ClientID uuid.UUID
	// Count is the requested batch size. Fewer leads may be returned.
	Count int
	// DedupWindowDays is the recency window. Leads whose email was delivered
	// to anyone within the window are skipped.
	DedupWindowDays int
}

// Repository defines persistence operations for the shared lead pool.
type Repository interface {
	// Ingest inserts leads, silently skipping emails that already have a live
	// pool entry and rejecting emails delivered within the dedup window.
	// Input is assumed normalized and intra-batch deduplicated.
	Ingest(ctx context.Context, leads []domain.Lead, dedupWindowDays int) (IngestResult, error)

	// Withdraw atomically moves up to params.Count eligible leads from
	// available to reserved and returns them. Concurrent withdrawals never
	// reserve the same lead.
	Withdraw(ctx context.Context, params WithdrawParams) ([]domain.Lead, error)

	// Release returns all leads held under the reservation to available.
	Release(ctx context.Context, reservationID uuid.UUID) (int, error)

	// ReleaseExpired returns leads whose reservation is older than the lease
	// to available. Used by the reclaim job to recover from crashed runs.
	ReleaseExpired(ctx context.Context, lease time.Duration) (int, error)

	// CountByStatus reports pool sizes per lifecycle state.
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
}
