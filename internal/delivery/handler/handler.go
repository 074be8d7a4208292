package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadflow_backend/internal/delivery/service"
	"leadflow_backend/internal/delivery/transport"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"
)

const (
	msgInvalidRequest    = "invalid request"
	msgInvalidID         = "invalid delivery ID"
	msgInvalidClientID   = "invalid client ID"
	msgValidationMessage = "validation failed"
)

// RunEnqueuer queues a delivery pass on the background job queue.
// Satisfied by the scheduler client; nil when no queue is configured.
type RunEnqueuer interface {
	EnqueueDeliveryRun(ctx context.Context) error
}

// Handler handles HTTP requests for deliveries.
type Handler struct {
	svc  *service.Service
	val  *validator.Validator
	runs RunEnqueuer
}

// New creates a new delivery handler.
func New(svc *service.Service, val *validator.Validator, runs RunEnqueuer) *Handler {
	return &Handler{svc: svc, val: val, runs: runs}
}

// Run triggers a delivery pass over all deliverable clients.
// POST /api/v1/deliveries/run
func (h *Handler) Run(c *gin.Context) {
	summary, err := h.svc.RunAll(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

// RunAsync queues a delivery pass on the job queue instead of running it
// inline.
// POST /api/v1/deliveries/run/async
func (h *Handler) RunAsync(c *gin.Context) {
	if h.runs == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "job queue not configured", nil)
		return
	}
	if err := h.runs.EnqueueDeliveryRun(c.Request.Context()); err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to queue delivery run", nil)
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "queued"})
}

// DeliverToClient triggers one delivery attempt for a single client.
// POST /api/v1/deliveries/clients/:clientId
func (h *Handler) DeliverToClient(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("clientId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidClientID, nil)
		return
	}

	result, err := h.svc.DeliverByID(c.Request.Context(), clientID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromResult(result))
}

// GetByID returns a delivery with its leads.
// GET /api/v1/deliveries/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	detail, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, detail)
}

// ListByClient returns a client's recent deliveries.
// GET /api/v1/deliveries?clientId=...&limit=...
func (h *Handler) ListByClient(c *gin.Context) {
	var req transport.ListDeliveriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationMessage, err.Error())
		return
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidClientID, nil)
		return
	}

	deliveries, err := h.svc.ListByClient(c.Request.Context(), clientID, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, deliveries)
}
