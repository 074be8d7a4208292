// Package transport defines request and response DTOs for the lead pool module.
package transport

// LeadInput is one scraped prospect in an ingestion batch.
type LeadInput struct {
	Email      string `json:"email" validate:"required,email"`
	FirstName  string `json:"firstName" validate:"required,min=1,max=100"`
	LastName   string `json:"lastName" validate:"required,min=1,max=100"`
	Title      string `json:"title" validate:"max=200"`
	Company    string `json:"company" validate:"max=200"`
	ProfileURL string `json:"profileUrl" validate:"omitempty,url"`
}

// IngestRequest is a batch of scraped leads.
type IngestRequest struct {
	Leads []LeadInput `json:"leads" validate:"required,min=1,max=5000,dive"`
}

// IngestResponse reports how the batch was absorbed.
type IngestResponse struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
}
