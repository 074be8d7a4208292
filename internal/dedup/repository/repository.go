package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new dedup index repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// IsEligible checks the two blocking conditions in one round trip.
func (r *Repo) IsEligible(ctx context.Context, email string, clientID uuid.UUID, windowDays int) (bool, error) {
	query := `
		SELECT NOT EXISTS (
			SELECT 1 FROM dedup_entries
			WHERE email = $1
			  AND delivered_at > now() - make_interval(days => $3)
		) AND NOT EXISTS (
			SELECT 1 FROM dedup_entries
			WHERE email = $1
			  AND exclusive
			  AND client_id IS DISTINCT FROM $2
		)`

	var eligible bool
	if err := r.pool.QueryRow(ctx, query, email, clientID, windowDays).Scan(&eligible); err != nil {
		return false, fmt.Errorf("check dedup eligibility: %w", err)
	}
	return eligible, nil
}

// PurgeExpired drops entries whose blocking effect has lapsed. Exclusive
// locks are retained longer than the recency window.
func (r *Repo) PurgeExpired(ctx context.Context, windowDays, exclusiveRetentionDays int) (int, error) {
	query := `
		DELETE FROM dedup_entries
		WHERE (NOT exclusive AND delivered_at < now() - make_interval(days => $1))
		   OR (exclusive AND delivered_at < now() - make_interval(days => $2))`

	tag, err := r.pool.Exec(ctx, query, windowDays, exclusiveRetentionDays)
	if err != nil {
		return 0, fmt.Errorf("purge dedup entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Stats summarizes the index.
func (r *Repo) Stats(ctx context.Context, windowDays int) (Stats, error) {
	query := `
		SELECT count(*),
		       count(*) FILTER (WHERE exclusive),
		       count(*) FILTER (WHERE delivered_at > now() - make_interval(days => $1))
		FROM dedup_entries`

	var stats Stats
	if err := r.pool.QueryRow(ctx, query, windowDays).Scan(&stats.Total, &stats.Exclusive, &stats.WithinWindow); err != nil {
		return Stats{}, fmt.Errorf("dedup stats: %w", err)
	}
	return stats, nil
}
