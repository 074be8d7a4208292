package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/internal/dedup"
	"leadflow_backend/internal/delivery/engine"
	"leadflow_backend/internal/leadpool/domain"
	"leadflow_backend/platform/apperr"
)

const deliveryNotFoundMessage = "delivery not found"

// pgUniqueViolation is the SQLSTATE for unique constraint violations. Inside
// Commit it means a concurrent transaction won an exclusive lock race.
const pgUniqueViolation = "23505"

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new delivery repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Commit finalizes a delivery in one transaction:
//
//  1. Lock the client row and verify it is still active.
//  2. Drop reserved leads that lost a race to a conflicting delivery since
//     withdrawal, returning them to the pool inside the transaction.
//  3. Move the surviving leads to delivered and verify the count.
//  4. Record dedup entries for every delivered lead.
//  5. Decrement quota, guarded so it can never go negative.
//  6. Write the delivery and its lead list.
//
// Any failure rolls back everything; the caller releases the reservation.
func (r *Repo) Commit(ctx context.Context, params engine.CommitParams) (engine.CommitResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return engine.CommitResult{}, fmt.Errorf("commit begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var active bool
	err = tx.QueryRow(ctx,
		`SELECT active FROM clients WHERE id = $1 FOR UPDATE`,
		params.ClientID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.CommitResult{}, fmt.Errorf("client %s: %w", params.ClientID, engine.ErrTransactionAborted)
		}
		return engine.CommitResult{}, fmt.Errorf("lock client row: %w", err)
	}
	if !active {
		return engine.CommitResult{}, fmt.Errorf("client %s deactivated: %w", params.ClientID, engine.ErrTransactionAborted)
	}

	dropped, err := r.releaseConflicting(ctx, tx, params)
	if err != nil {
		return engine.CommitResult{}, err
	}

	deliveredIDs, err := r.markDelivered(ctx, tx, params.ReservationID)
	if err != nil {
		return engine.CommitResult{}, err
	}
	if len(deliveredIDs)+dropped != len(params.Leads) {
		return engine.CommitResult{}, fmt.Errorf(
			"reservation %s: expected %d leads, delivered %d with %d dropped: %w",
			params.ReservationID, len(params.Leads), len(deliveredIDs), dropped, engine.ErrTransactionAborted)
	}

	if len(deliveredIDs) == 0 {
		// The whole batch was conflicting. Commit just the releases.
		if err := tx.Commit(ctx); err != nil {
			return engine.CommitResult{}, fmt.Errorf("commit releases: %w", err)
		}
		return engine.CommitResult{Dropped: dropped}, nil
	}

	delivered := filterByID(params.Leads, deliveredIDs)

	if err := r.recordDedupEntries(ctx, tx, params, delivered); err != nil {
		return engine.CommitResult{}, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE clients
		SET remaining_quota = remaining_quota - $2, updated_at = now()
		WHERE id = $1 AND remaining_quota >= $2`,
		params.ClientID, len(delivered))
	if err != nil {
		return engine.CommitResult{}, fmt.Errorf("decrement quota: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return engine.CommitResult{}, fmt.Errorf("quota below batch size for client %s: %w",
			params.ClientID, engine.ErrTransactionAborted)
	}

	if err := r.insertDelivery(ctx, tx, params, delivered); err != nil {
		return engine.CommitResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return engine.CommitResult{}, fmt.Errorf("commit delivery: %w", err)
	}
	return engine.CommitResult{Delivered: delivered, Dropped: dropped}, nil
}

// releaseConflicting returns reserved leads that became ineligible between
// withdrawal and commit back to the pool, inside the transaction.
func (r *Repo) releaseConflicting(ctx context.Context, tx pgx.Tx, params engine.CommitParams) (int, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE pool_leads p
		SET status = 'available', reservation_id = NULL, reserved_at = NULL
		WHERE p.reservation_id = $1 AND p.status = 'reserved'
		  AND EXISTS (
			SELECT 1 FROM dedup_entries d
			WHERE d.email = p.email
			  AND (d.delivered_at > now() - make_interval(days => $3)
			       OR (d.exclusive AND d.client_id IS DISTINCT FROM $2))
		  )`,
		params.ReservationID, params.ClientID, params.DedupWindowDays)
	if err != nil {
		return 0, fmt.Errorf("release conflicting leads: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repo) markDelivered(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `
		UPDATE pool_leads
		SET status = 'delivered', delivered_at = now(), reservation_id = NULL, reserved_at = NULL
		WHERE reservation_id = $1 AND status = 'reserved'
		RETURNING id`,
		reservationID)
	if err != nil {
		return nil, fmt.Errorf("mark leads delivered: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan delivered lead id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivered lead ids: %w", err)
	}
	return ids, nil
}

// recordDedupEntries writes one index entry per delivered lead. A repeat
// delivery of the same person refreshes the window; an exclusive delivery
// upgrades the entry and the partial unique index backstops races for the
// exclusive lock.
func (r *Repo) recordDedupEntries(ctx context.Context, tx pgx.Tx, params engine.CommitParams, delivered []domain.Lead) error {
	emails := make([]string, len(delivered))
	fingerprints := make([]string, len(delivered))
	for i, lead := range delivered {
		emails[i] = lead.Email
		fingerprints[i] = dedup.Fingerprint(lead.Email, lead.Company)
	}

	// A re-delivery to the lock holder can carry a new fingerprint (the
	// company spelling changed), which the (email, fingerprint) conflict
	// clause would miss. Drop the client's own stale lock row first so the
	// insert never collides with it on the exclusive-email index.
	if params.Exclusive {
		_, err := tx.Exec(ctx, `
			DELETE FROM dedup_entries d
			USING unnest($1::text[], $2::text[]) AS t(email, fingerprint)
			WHERE d.email = t.email
			  AND d.exclusive
			  AND d.client_id = $3
			  AND d.fingerprint <> t.fingerprint`,
			emails, fingerprints, params.ClientID)
		if err != nil {
			return fmt.Errorf("refresh exclusive dedup entries: %w", err)
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO dedup_entries (email, fingerprint, exclusive, client_id)
		SELECT t.email, t.fingerprint, $3, $4
		FROM unnest($1::text[], $2::text[]) AS t(email, fingerprint)
		ON CONFLICT (email, fingerprint) DO UPDATE
		SET exclusive    = dedup_entries.exclusive OR EXCLUDED.exclusive,
		    client_id    = EXCLUDED.client_id,
		    delivered_at = now()`,
		emails, fingerprints, params.Exclusive, params.ClientID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("exclusive lock race on dedup index: %w", engine.ErrTransactionAborted)
		}
		return fmt.Errorf("record dedup entries: %w", err)
	}
	return nil
}

func (r *Repo) insertDelivery(ctx context.Context, tx pgx.Tx, params engine.CommitParams, delivered []domain.Lead) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO deliveries (id, client_id, lead_count, status)
		VALUES ($1, $2, $3, 'committed')`,
		params.DeliveryID, params.ClientID, len(delivered))
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}

	leadIDs := make([]uuid.UUID, len(delivered))
	positions := make([]int, len(delivered))
	for i, lead := range delivered {
		leadIDs[i] = lead.ID
		positions[i] = i + 1
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO delivery_leads (delivery_id, lead_id, position)
		SELECT $1, t.lead_id, t.position
		FROM unnest($2::uuid[], $3::int[]) AS t(lead_id, position)`,
		params.DeliveryID, leadIDs, positions)
	if err != nil {
		return fmt.Errorf("insert delivery leads: %w", err)
	}
	return nil
}

// RecordFailure writes an audit row for a delivery that rolled back.
func (r *Repo) RecordFailure(ctx context.Context, deliveryID, clientID uuid.UUID, leadCount int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deliveries (id, client_id, lead_count, status)
		VALUES ($1, $2, $3, 'failed')`,
		deliveryID, clientID, leadCount)
	if err != nil {
		return fmt.Errorf("record failed delivery: %w", err)
	}
	return nil
}

// SetExportURL attaches the exported CSV location to a delivery.
func (r *Repo) SetExportURL(ctx context.Context, deliveryID uuid.UUID, url string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE deliveries SET export_url = $2 WHERE id = $1`,
		deliveryID, url)
	if err != nil {
		return fmt.Errorf("set export url: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return apperr.NotFound(deliveryNotFoundMessage)
	}
	return nil
}

// GetByID returns a delivery with its leads in delivery order.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (DeliveryDetail, error) {
	var detail DeliveryDetail
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, lead_count, status, export_url, created_at
		FROM deliveries WHERE id = $1`, id).Scan(
		&detail.ID, &detail.ClientID, &detail.LeadCount, &detail.Status, &detail.ExportURL, &detail.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DeliveryDetail{}, apperr.NotFound(deliveryNotFoundMessage)
		}
		return DeliveryDetail{}, fmt.Errorf("get delivery by id: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.email, p.first_name, p.last_name, p.title, p.company,
		       p.profile_url, p.status, p.reservation_id, p.ingested_at, p.delivered_at
		FROM delivery_leads dl
		JOIN pool_leads p ON p.id = dl.lead_id
		WHERE dl.delivery_id = $1
		ORDER BY dl.position ASC`, id)
	if err != nil {
		return DeliveryDetail{}, fmt.Errorf("get delivery leads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.Lead
		err := rows.Scan(
			&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.Title, &l.Company,
			&l.ProfileURL, &l.Status, &l.ReservationID, &l.IngestedAt, &l.DeliveredAt)
		if err != nil {
			return DeliveryDetail{}, fmt.Errorf("scan delivery lead: %w", err)
		}
		detail.Leads = append(detail.Leads, l)
	}
	if err := rows.Err(); err != nil {
		return DeliveryDetail{}, fmt.Errorf("iterate delivery leads: %w", err)
	}
	return detail, nil
}

// ListByClient returns a client's most recent deliveries.
func (r *Repo) ListByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]Delivery, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, client_id, lead_count, status, export_url, created_at
		FROM deliveries
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := make([]Delivery, 0)
	for rows.Next() {
		var d Delivery
		err := rows.Scan(&d.ID, &d.ClientID, &d.LeadCount, &d.Status, &d.ExportURL, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return deliveries, nil
}

func filterByID(leads []domain.Lead, ids []uuid.UUID) []domain.Lead {
	keep := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	filtered := make([]domain.Lead, 0, len(ids))
	for _, lead := range leads {
		if _, ok := keep[lead.ID]; ok {
			lead.Status = domain.StatusDelivered
			filtered = append(filtered, lead)
		}
	}
	return filtered
}
