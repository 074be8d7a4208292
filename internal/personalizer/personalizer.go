// Package personalizer generates per-lead outreach content for plans that
// include it. Generation is best effort: a failed or disabled generator
// degrades to template content and never blocks a delivery.
package personalizer

import (
	"context"

	"leadflow_backend/internal/leadpool/domain"
)

// Message is the outreach content attached to one delivered lead.
type Message struct {
	Icebreaker string `json:"icebreaker"`
	ColdEmail  string `json:"coldEmail"`
}

// Generator produces outreach content for a single lead.
type Generator interface {
	Generate(ctx context.Context, lead domain.Lead) (Message, error)
}
