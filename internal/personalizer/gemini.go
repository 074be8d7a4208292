package personalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"leadflow_backend/internal/leadpool/domain"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// GeminiGenerator produces outreach content with the Gemini API, falling back
// to templates when a response cannot be obtained or parsed.
type GeminiGenerator struct {
	client   *genai.Client
	model    string
	fallback *TemplateGenerator
	log      *logger.Logger
}

// NewGeminiGenerator creates the AI-backed generator.
func NewGeminiGenerator(ctx context.Context, cfg config.PersonalizerConfig, log *logger.Logger) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiGenerator{
		client:   client,
		model:    cfg.GetGeminiModel(),
		fallback: NewTemplateGenerator(),
		log:      log.WithComponent("personalizer"),
	}, nil
}

// Compile-time check that GeminiGenerator implements Generator.
var _ Generator = (*GeminiGenerator)(nil)

const promptTemplate = `You write concise B2B outreach. Given this prospect:

Name: %s
Title: %s
Company: %s

Respond with a JSON object, nothing else, with exactly these keys:
  "icebreaker": one personalized opening sentence
  "coldEmail": a short cold email of at most 120 words, plain text

Do not invent facts beyond the fields above.`

// Generate asks the model for content and parses its JSON reply. Any failure
// degrades to the template generator so the export still ships.
func (g *GeminiGenerator) Generate(ctx context.Context, lead domain.Lead) (Message, error) {
	prompt := fmt.Sprintf(promptTemplate, lead.FullName(), lead.Title, lead.Company)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		g.log.Warn("gemini generation failed, using template", "lead_id", lead.ID, "error", err)
		return g.fallback.Generate(ctx, lead)
	}

	msg, err := parseMessage(resp.Text())
	if err != nil {
		g.log.Warn("gemini reply unparsable, using template", "lead_id", lead.ID, "error", err)
		return g.fallback.Generate(ctx, lead)
	}
	return msg, nil
}

// parseMessage extracts the JSON object from a model reply, tolerating code
// fences around it.
func parseMessage(text string) (Message, error) {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var msg Message
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return Message{}, fmt.Errorf("parse model reply: %w", err)
	}
	if msg.Icebreaker == "" || msg.ColdEmail == "" {
		return Message{}, fmt.Errorf("model reply missing fields")
	}
	return msg, nil
}
