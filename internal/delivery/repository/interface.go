package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/delivery/engine"
	"leadflow_backend/internal/leadpool/domain"
)

// Delivery is a persisted hand-off of leads to a client.
type Delivery struct {
	ID        uuid.UUID `json:"id"`
	ClientID  uuid.UUID `json:"clientId"`
	LeadCount int       `json:"leadCount"`
	Status    string    `json:"status"`
	ExportURL *string   `json:"exportUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DeliveryDetail is a delivery with its leads in delivery order.
type DeliveryDetail struct {
	Delivery
	Leads []domain.Lead `json:"leads"`
}

// Repository persists deliveries. The Commit method implements engine.Committer.
type Repository interface {
	engine.Committer

	// RecordFailure writes a failed delivery row for audit, outside any
	// transaction. Best effort; callers log but do not propagate its error.
	RecordFailure(ctx context.Context, deliveryID, clientID uuid.UUID, leadCount int) error

	// SetExportURL attaches the exported CSV location to a committed delivery.
	SetExportURL(ctx context.Context, deliveryID uuid.UUID, url string) error

	GetByID(ctx context.Context, id uuid.UUID) (DeliveryDetail, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]Delivery, error)
}
