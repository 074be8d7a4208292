// Package transport defines request and response DTOs for the delivery module.
package transport

import (
	"github.com/google/uuid"

	"leadflow_backend/internal/delivery/engine"
)

// DeliverResponse reports the outcome of a single delivery attempt.
type DeliverResponse struct {
	DeliveryID *uuid.UUID `json:"deliveryId,omitempty"`
	LeadCount  int        `json:"leadCount"`
	Reason     string     `json:"reason,omitempty"`
	Dropped    int        `json:"dropped,omitempty"`
}

// FromResult converts an engine result to the wire shape.
func FromResult(result engine.Result) DeliverResponse {
	resp := DeliverResponse{
		LeadCount: len(result.Leads),
		Reason:    result.Reason,
		Dropped:   result.Dropped,
	}
	if result.Delivered() {
		id := result.DeliveryID
		resp.DeliveryID = &id
	}
	return resp
}

// ListDeliveriesRequest filters the delivery history endpoint.
type ListDeliveriesRequest struct {
	ClientID string `form:"clientId" validate:"required,uuid4"`
	Limit    int    `form:"limit" validate:"min=0,max=500"`
}
