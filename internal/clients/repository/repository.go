package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/platform/apperr"
)

const clientNotFoundMessage = "client not found"

const clientColumns = `id, name, email, plan, exclusive, lead_count, remaining_quota, monthly_revenue, active, created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new clients repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Create inserts a new client.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Client, error) {
	query := `
		INSERT INTO clients (name, email, plan, exclusive, lead_count, remaining_quota, monthly_revenue)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + clientColumns

	row := r.pool.QueryRow(ctx, query,
		params.Name, params.Email, params.Plan, params.Exclusive,
		params.LeadCount, params.RemainingQuota, params.MonthlyRevenue,
	)
	client, err := scanClient(row)
	if err != nil {
		return Client{}, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

// GetByID retrieves a client by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	client, err := scanClient(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, apperr.NotFound(clientNotFoundMessage)
		}
		return Client{}, fmt.Errorf("get client by id: %w", err)
	}
	return client, nil
}

// List retrieves all clients ordered by name.
func (r *Repo) List(ctx context.Context) ([]Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	return scanClients(rows)
}

// ListDeliverable retrieves active clients that still have quota, ordered by
// name. Run ordering across plan tiers is applied by the orchestrator.
func (r *Repo) ListDeliverable(ctx context.Context) ([]Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE active = true AND remaining_quota > 0
		ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list deliverable clients: %w", err)
	}
	defer rows.Close()

	return scanClients(rows)
}

// ListLowQuota retrieves active clients running out of quota. The threshold
// is two full batches so an alert goes out before the next run falls short.
func (r *Repo) ListLowQuota(ctx context.Context) ([]Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE active = true AND lead_count > 0 AND remaining_quota < lead_count * 2
		ORDER BY remaining_quota ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list low quota clients: %w", err)
	}
	defer rows.Close()

	return scanClients(rows)
}

// TopUpQuota adds the given amount to a client's remaining quota.
func (r *Repo) TopUpQuota(ctx context.Context, id uuid.UUID, amount int) (Client, error) {
	query := `
		UPDATE clients
		SET remaining_quota = remaining_quota + $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + clientColumns

	client, err := scanClient(r.pool.QueryRow(ctx, query, id, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, apperr.NotFound(clientNotFoundMessage)
		}
		return Client{}, fmt.Errorf("top up client quota: %w", err)
	}
	return client, nil
}

// SetActive toggles whether a client participates in delivery runs.
func (r *Repo) SetActive(ctx context.Context, id uuid.UUID, active bool) (Client, error) {
	query := `
		UPDATE clients
		SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + clientColumns

	client, err := scanClient(r.pool.QueryRow(ctx, query, id, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, apperr.NotFound(clientNotFoundMessage)
		}
		return Client{}, fmt.Errorf("set client active: %w", err)
	}
	return client, nil
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Plan, &c.Exclusive, &c.LeadCount,
		&c.RemainingQuota, &c.MonthlyRevenue, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func scanClients(rows pgx.Rows) ([]Client, error) {
	clients := make([]Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return clients, nil
}
