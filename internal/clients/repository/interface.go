package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Client is a subscribing customer that receives lead deliveries.
type Client struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Plan           string    `json:"plan"`
	Exclusive      bool      `json:"exclusive"`
	LeadCount      int       `json:"leadCount"`
	RemainingQuota int       `json:"remainingQuota"`
	MonthlyRevenue float64   `json:"monthlyRevenue"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CreateParams holds the fields needed to register a new client.
type CreateParams struct {
	Name           string
	Email          string
	Plan           string
	Exclusive      bool
	LeadCount      int
	RemainingQuota int
	MonthlyRevenue float64
}

// Repository defines persistence operations for clients.
//
// RemainingQuota is intentionally not writable here except through TopUpQuota;
// decrements happen only inside a delivery transaction so quota can never go
// negative or drift from delivered counts.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Client, error)
	GetByID(ctx context.Context, id uuid.UUID) (Client, error)
	List(ctx context.Context) ([]Client, error)
	// ListDeliverable returns active clients with remaining quota, for a
	// scheduled run.
	ListDeliverable(ctx context.Context) ([]Client, error)
	// ListLowQuota returns active clients with less than two full batches of
	// quota left, for the monitoring sweep.
	ListLowQuota(ctx context.Context) ([]Client, error)
	TopUpQuota(ctx context.Context, id uuid.UUID, amount int) (Client, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (Client, error)
}
