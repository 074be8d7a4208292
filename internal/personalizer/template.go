package personalizer

import (
	"context"
	"fmt"
	"strings"

	"leadflow_backend/internal/leadpool/domain"
)

// TemplateGenerator fills fixed outreach templates with lead fields. It is
// the fallback when AI generation is disabled or fails.
type TemplateGenerator struct{}

// NewTemplateGenerator creates the template-based generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Compile-time check that TemplateGenerator implements Generator.
var _ Generator = (*TemplateGenerator)(nil)

// Generate fills the templates. It never fails.
func (g *TemplateGenerator) Generate(_ context.Context, lead domain.Lead) (Message, error) {
	firstName := strings.TrimSpace(lead.FirstName)
	if firstName == "" {
		firstName = "there"
	}

	icebreaker := fmt.Sprintf("Hi %s, I came across your profile and was impressed by your work", firstName)
	if company := strings.TrimSpace(lead.Company); company != "" {
		icebreaker = fmt.Sprintf("%s at %s", icebreaker, company)
	}
	icebreaker += "."

	coldEmail := fmt.Sprintf(
		"Hi %s,\n\n%s I'd love to connect and share something that could be relevant to your role",
		firstName, icebreaker)
	if title := strings.TrimSpace(lead.Title); title != "" {
		coldEmail = fmt.Sprintf("%s as %s", coldEmail, title)
	}
	coldEmail += ".\n\nWould you be open to a quick chat this week?\n\nBest regards"

	return Message{Icebreaker: icebreaker, ColdEmail: coldEmail}, nil
}
