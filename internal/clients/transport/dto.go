// Package transport defines request and response DTOs for the clients module.
package transport

// CreateClientRequest is the payload for registering a new client.
type CreateClientRequest struct {
	Name           string  `json:"name" validate:"required,min=2,max=200"`
	Email          string  `json:"email" validate:"required,email"`
	Plan           string  `json:"plan" validate:"required"`
	Exclusive      bool    `json:"exclusive"`
	LeadCount      int     `json:"leadCount" validate:"required,min=1"`
	InitialQuota   int     `json:"initialQuota" validate:"min=0"`
	MonthlyRevenue float64 `json:"monthlyRevenue" validate:"min=0"`
}

// TopUpQuotaRequest adds quota to an existing client.
type TopUpQuotaRequest struct {
	Amount int `json:"amount" validate:"required,min=1"`
}

// SetActiveRequest enables or disables a client for delivery runs.
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}
