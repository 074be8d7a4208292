package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded delivery in the dedup index.
type Entry struct {
	Email       string    `json:"email"`
	Fingerprint string    `json:"fingerprint"`
	Exclusive   bool      `json:"exclusive"`
	ClientID    uuid.UUID `json:"clientId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// Stats summarizes the index for reporting.
type Stats struct {
	Total        int `json:"total"`
	Exclusive    int `json:"exclusive"`
	WithinWindow int `json:"withinWindow"`
}

// Repository defines persistence operations for the dedup index.
//
// Writes happen inside delivery transactions (see the delivery module); this
// interface covers standalone reads and maintenance.
type Repository interface {
	// IsEligible reports whether the email may be delivered to the client:
	// no entry within the window and no exclusive lock held by someone else.
	IsEligible(ctx context.Context, email string, clientID uuid.UUID, windowDays int) (bool, error)

	// PurgeExpired removes non-exclusive entries older than the window and
	// exclusive entries older than the retention period. Returns rows removed.
	PurgeExpired(ctx context.Context, windowDays, exclusiveRetentionDays int) (int, error)

	// Stats summarizes the index.
	Stats(ctx context.Context, windowDays int) (Stats, error)
}
