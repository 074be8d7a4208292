package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/internal/leadpool/domain"
)

const leadColumns = `id, email, first_name, last_name, title, company, profile_url, status, reservation_id, ingested_at, delivered_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new lead pool repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Ingest inserts leads in one statement. Emails delivered within the dedup
// window are rejected; emails that already have a live pool entry are skipped
// via the partial unique index rather than surfaced as errors, so
// re-submitting a scrape batch is idempotent.
func (r *Repo) Ingest(ctx context.Context, leads []domain.Lead, dedupWindowDays int) (IngestResult, error) {
	if len(leads) == 0 {
		return IngestResult{}, nil
	}

	emails := make([]string, len(leads))
	firstNames := make([]string, len(leads))
	lastNames := make([]string, len(leads))
	titles := make([]string, len(leads))
	companies := make([]string, len(leads))
	profileURLs := make([]string, len(leads))
	for i, lead := range leads {
		emails[i] = lead.Email
		firstNames[i] = lead.FirstName
		lastNames[i] = lead.LastName
		titles[i] = lead.Title
		companies[i] = lead.Company
		profileURLs[i] = lead.ProfileURL
	}

	query := `
		WITH batch AS (
			SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::text[])
				AS t(email, first_name, last_name, title, company, profile_url)
		), blocked AS (
			SELECT b.email FROM batch b
			WHERE EXISTS (
				SELECT 1 FROM dedup_entries d
				WHERE d.email = b.email
				  AND d.delivered_at > now() - make_interval(days => $7)
			)
		), inserted AS (
			INSERT INTO pool_leads (email, first_name, last_name, title, company, profile_url)
			SELECT b.email, b.first_name, b.last_name, b.title, b.company, b.profile_url
			FROM batch b
			WHERE b.email NOT IN (SELECT email FROM blocked)
			ON CONFLICT (email) WHERE status IN ('available', 'reserved') DO NOTHING
			RETURNING id
		)
		SELECT (SELECT count(*) FROM inserted), (SELECT count(*) FROM blocked)`

	var accepted, rejected int
	err := r.pool.QueryRow(ctx, query,
		emails, firstNames, lastNames, titles, companies, profileURLs, dedupWindowDays).Scan(&accepted, &rejected)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest leads: %w", err)
	}

	return IngestResult{
		Accepted:   accepted,
		Duplicates: len(leads) - accepted - rejected,
		Rejected:   rejected,
	}, nil
}

// Withdraw reserves up to params.Count eligible leads in a single statement.
// The locking CTE makes concurrent withdrawals disjoint: each available row is
// locked by at most one transaction and SKIP LOCKED steps over the rest.
// Eligibility excludes emails delivered to anyone within the dedup window and
// emails exclusively locked by a different client.
func (r *Repo) Withdraw(ctx context.Context, params WithdrawParams) ([]domain.Lead, error) {
	if params.Count < 1 {
		return nil, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("withdraw begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT p.id
		FROM pool_leads p
		WHERE p.status = 'available'
		  AND NOT EXISTS (
			SELECT 1 FROM dedup_entries d
			WHERE d.email = p.email
			  AND d.delivered_at > now() - make_interval(days => $3)
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM dedup_entries d
			WHERE d.email = p.email
			  AND d.exclusive
			  AND d.client_id IS DISTINCT FROM $4
		  )
		ORDER BY p.ingested_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	)
	UPDATE pool_leads p
	SET status = 'reserved', reservation_id = $1, reserved_at = now()
	FROM cte
	WHERE p.id = cte.id
	RETURNING p.id, p.email, p.first_name, p.last_name, p.title, p.company, p.profile_url, p.status, p.reservation_id, p.ingested_at, p.delivered_at`,
		params.ReservationID, params.Count, params.DedupWindowDays, params.ClientID)
	if err != nil {
		return nil, fmt.Errorf("withdraw leads: %w", err)
	}

	leads, err := scanLeads(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("withdraw commit: %w", err)
	}
	return leads, nil
}

// Release returns every lead held under the reservation to the available
// state. Safe to call after a failed commit or for leftover reserved leads.
func (r *Repo) Release(ctx context.Context, reservationID uuid.UUID) (int, error) {
	query := `
		UPDATE pool_leads
		SET status = 'available', reservation_id = NULL, reserved_at = NULL
		WHERE reservation_id = $1 AND status = 'reserved'`

	tag, err := r.pool.Exec(ctx, query, reservationID)
	if err != nil {
		return 0, fmt.Errorf("release reservation: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ReleaseExpired reclaims leads whose reservation outlived the lease.
func (r *Repo) ReleaseExpired(ctx context.Context, lease time.Duration) (int, error) {
	query := `
		UPDATE pool_leads
		SET status = 'available', reservation_id = NULL, reserved_at = NULL
		WHERE status = 'reserved' AND reserved_at < now() - make_interval(secs => $1)`

	tag, err := r.pool.Exec(ctx, query, lease.Seconds())
	if err != nil {
		return 0, fmt.Errorf("release expired reservations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountByStatus reports pool sizes per lifecycle state.
func (r *Repo) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM pool_leads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count leads by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status domain.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan lead count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lead counts: %w", err)
	}
	return counts, nil
}

func scanLeads(rows pgx.Rows) ([]domain.Lead, error) {
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		var l domain.Lead
		err := rows.Scan(
			&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.Title, &l.Company,
			&l.ProfileURL, &l.Status, &l.ReservationID, &l.IngestedAt, &l.DeliveredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, nil
}
