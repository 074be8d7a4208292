package personalizer

import (
	"context"
	"strings"
	"testing"

	"leadflow_backend/internal/leadpool/domain"
)

func TestTemplateGeneratorUsesLeadFields(t *testing.T) {
	gen := NewTemplateGenerator()

	msg, err := gen.Generate(context.Background(), domain.Lead{
		FirstName: "Jane",
		LastName:  "Doe",
		Title:     "VP Engineering",
		Company:   "Acme Corp",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !strings.Contains(msg.Icebreaker, "Jane") || !strings.Contains(msg.Icebreaker, "Acme Corp") {
		t.Errorf("icebreaker missing lead fields: %q", msg.Icebreaker)
	}
	if !strings.Contains(msg.ColdEmail, "VP Engineering") {
		t.Errorf("cold email missing title: %q", msg.ColdEmail)
	}
}

func TestTemplateGeneratorHandlesSparseLead(t *testing.T) {
	gen := NewTemplateGenerator()

	msg, err := gen.Generate(context.Background(), domain.Lead{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if msg.Icebreaker == "" || msg.ColdEmail == "" {
		t.Error("empty content for sparse lead")
	}
	if !strings.Contains(msg.Icebreaker, "Hi there") {
		t.Errorf("expected generic greeting, got %q", msg.Icebreaker)
	}
}

func TestParseMessage(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"plain json", `{"icebreaker": "hi", "coldEmail": "hello"}`, false},
		{"fenced json", "```json\n{\"icebreaker\": \"hi\", \"coldEmail\": \"hello\"}\n```", false},
		{"missing field", `{"icebreaker": "hi"}`, true},
		{"not json", "sorry, I cannot help", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := parseMessage(tc.in)
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("parseMessage: %v", err)
				}
				if msg.Icebreaker != "hi" || msg.ColdEmail != "hello" {
					t.Errorf("unexpected message: %+v", msg)
				}
			}
		})
	}
}
