package engine

import (
	"context"

	"github.com/google/uuid"

	"leadflow_backend/internal/leadpool/domain"
)

// LeadSource supplies reserved leads from the pool and takes back the ones a
// failed delivery leaves behind. Satisfied by the lead pool service.
type LeadSource interface {
	// Withdraw reserves up to count eligible leads for the client and returns
	// the reservation ID tagging them.
	Withdraw(ctx context.Context, clientID uuid.UUID, count, dedupWindowDays int) (uuid.UUID, []domain.Lead, error)
	// Release returns all leads under the reservation to the pool.
	Release(ctx context.Context, reservationID uuid.UUID) (int, error)
}

// CommitParams describes the atomic hand-off of a reserved batch to a client.
type CommitParams struct {
	DeliveryID      uuid.UUID
	ReservationID   uuid.UUID
	ClientID        uuid.UUID
	Exclusive       bool
	DedupWindowDays int
	Leads           []domain.Lead
}

// CommitResult reports what the transaction actually delivered.
type CommitResult struct {
	// Delivered is the subset of the batch that was handed off.
	Delivered []domain.Lead
	// Dropped counts leads released inside the transaction because a
	// conflicting exclusive lock or window entry appeared after withdrawal.
	Dropped int
}

// Committer finalizes a delivery in one transaction: leads to delivered,
// dedup entries recorded, quota decremented, delivery row written. Returning
// an error means nothing was persisted.
type Committer interface {
	Commit(ctx context.Context, params CommitParams) (CommitResult, error)
}
