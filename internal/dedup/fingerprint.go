// Package dedup maintains the permanent delivery history used to keep leads
// from being re-sold inside the recency window or across exclusive locks.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"

	"leadflow_backend/internal/leadpool/domain"
)

// Fingerprint derives a stable identity for a lead from its normalized email
// and company. Two scrapes of the same person always produce the same value,
// which makes recording a delivery idempotent.
func Fingerprint(email, company string) string {
	normalized := domain.NormalizeEmail(email) + "|" + domain.NormalizeCompany(company)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
