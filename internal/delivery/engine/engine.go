// Package engine implements the allocation decision for a single client:
// how many leads to request, whether the client may receive anything at all,
// and the withdraw-commit-release choreography around the pool.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	clientrepo "leadflow_backend/internal/clients/repository"
	"leadflow_backend/internal/leadpool/domain"
	"leadflow_backend/internal/plans"
	"leadflow_backend/platform/logger"
)

// ErrTransactionAborted signals that a delivery transaction rolled back with
// no state change. The reservation has been released and the run may retry.
var ErrTransactionAborted = errors.New("delivery transaction aborted")

// Allocation outcomes when no leads were delivered.
const (
	ReasonQuotaExhausted  = "quota_exhausted"
	ReasonNoEligibleLeads = "no_eligible_leads"
)

// Result is the outcome of one allocation attempt.
type Result struct {
	// DeliveryID identifies the committed delivery. Zero when Reason is set.
	DeliveryID uuid.UUID
	// Leads is what the client received, in delivery order.
	Leads []domain.Lead
	// Reason is non-empty when nothing was delivered.
	Reason string
	// Dropped counts leads surrendered at commit time to a conflicting
	// exclusive lock or a dedup entry that appeared after withdrawal.
	Dropped int
}

// Delivered reports whether the attempt handed leads to the client.
func (r Result) Delivered() bool {
	return r.Reason == "" && len(r.Leads) > 0
}

// Engine allocates one batch per call. It holds no state between calls; all
// coordination lives in the pool and the commit transaction.
type Engine struct {
	source          LeadSource
	committer       Committer
	catalog         *plans.Catalog
	dedupWindowDays int
	log             *logger.Logger
}

// New creates an allocation engine.
func New(source LeadSource, committer Committer, catalog *plans.Catalog, dedupWindowDays int, log *logger.Logger) *Engine {
	return &Engine{
		source:          source,
		committer:       committer,
		catalog:         catalog,
		dedupWindowDays: dedupWindowDays,
		log:             log,
	}
}

// Deliver allocates and commits one batch for the client.
//
// Batch size is the smallest of the client's configured batch, the plan's
// cap, and remaining quota. A short batch is delivered as-is; quota can never
// go below zero because the commit transaction re-checks it under lock.
func (e *Engine) Deliver(ctx context.Context, client clientrepo.Client) (Result, error) {
	plan, ok := e.catalog.Get(client.Plan)
	if !ok {
		return Result{}, fmt.Errorf("client %s has unknown plan %q", client.ID, client.Plan)
	}

	if client.RemainingQuota <= 0 {
		e.log.DeliveryEvent("allocation_skipped", client.ID.String(), 0, ReasonQuotaExhausted)
		return Result{Reason: ReasonQuotaExhausted}, nil
	}

	batch := client.LeadCount
	if batch < 1 || batch > plan.MaxLeadsPerBatch {
		batch = plan.MaxLeadsPerBatch
	}
	if batch > client.RemainingQuota {
		batch = client.RemainingQuota
	}

	reservationID, leads, err := e.source.Withdraw(ctx, client.ID, batch, e.dedupWindowDays)
	if err != nil {
		return Result{}, fmt.Errorf("withdraw for client %s: %w", client.ID, err)
	}
	if len(leads) == 0 {
		e.log.DeliveryEvent("allocation_skipped", client.ID.String(), 0, ReasonNoEligibleLeads)
		return Result{Reason: ReasonNoEligibleLeads}, nil
	}

	deliveryID := uuid.New()
	commitRes, err := e.committer.Commit(ctx, CommitParams{
		DeliveryID:      deliveryID,
		ReservationID:   reservationID,
		ClientID:        client.ID,
		Exclusive:       client.Exclusive,
		DedupWindowDays: e.dedupWindowDays,
		Leads:           leads,
	})
	if err != nil {
		// Nothing committed; put the whole batch back.
		if _, releaseErr := e.source.Release(ctx, reservationID); releaseErr != nil {
			e.log.Error("failed to release reservation after aborted commit",
				"reservation_id", reservationID, "error", releaseErr)
		}
		return Result{}, fmt.Errorf("commit delivery for client %s: %w", client.ID, err)
	}

	if len(commitRes.Delivered) == 0 {
		// Every withdrawn lead lost a race to a conflicting delivery. The
		// transaction already released them.
		e.log.DeliveryEvent("allocation_skipped", client.ID.String(), 0, ReasonNoEligibleLeads)
		return Result{Reason: ReasonNoEligibleLeads, Dropped: commitRes.Dropped}, nil
	}

	e.log.DeliveryEvent("delivery_committed", client.ID.String(), len(commitRes.Delivered), "")
	return Result{
		DeliveryID: deliveryID,
		Leads:      commitRes.Delivered,
		Dropped:    commitRes.Dropped,
	}, nil
}
