// Package domain defines the lead pool's core types and normalization rules.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a pooled lead.
type Status string

const (
	// StatusAvailable means the lead can be reserved by a withdrawal.
	StatusAvailable Status = "available"
	// StatusReserved means the lead is held by an in-flight delivery.
	StatusReserved Status = "reserved"
	// StatusDelivered means the lead left the pool permanently.
	StatusDelivered Status = "delivered"
)

// Lead is a prospect record in the shared pool.
type Lead struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Title         string     `json:"title"`
	Company       string     `json:"company"`
	ProfileURL    string     `json:"profileUrl"`
	Status        Status     `json:"status"`
	ReservationID *uuid.UUID `json:"reservationId,omitempty"`
	IngestedAt    time.Time  `json:"ingestedAt"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
}

// FullName joins the lead's first and last name.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// NormalizeEmail lowercases and trims an email address. All pool storage,
// dedup entries, and fingerprints use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeCompany lowercases and trims a company name for fingerprinting.
func NormalizeCompany(company string) string {
	return strings.ToLower(strings.TrimSpace(company))
}
