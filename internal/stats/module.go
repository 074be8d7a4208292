// Package stats exposes operational counters: pool composition, dedup index
// size, and delivery totals. Read-only; useful for dashboards and smoke checks.
package stats

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	deduprepo "leadflow_backend/internal/dedup/repository"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leadpool/domain"
	leadpoolservice "leadflow_backend/internal/leadpool/service"
	"leadflow_backend/platform/httpkit"
)

// Overview is the aggregate snapshot served by the stats endpoint.
type Overview struct {
	Pool       map[domain.Status]int `json:"pool"`
	Dedup      deduprepo.Stats       `json:"dedup"`
	Deliveries DeliveryTotals        `json:"deliveries"`
	WindowDays int                   `json:"windowDays"`
}

// DeliveryTotals summarizes the deliveries table.
type DeliveryTotals struct {
	Committed  int `json:"committed"`
	Failed     int `json:"failed"`
	LeadsTotal int `json:"leadsTotal"`
}

// Module is the stats bounded context module implementing http.Module.
type Module struct {
	pool       *pgxpool.Pool
	leadpool   *leadpoolservice.Service
	dedup      deduprepo.Repository
	windowDays int
}

// NewModule creates the stats module.
func NewModule(pool *pgxpool.Pool, leadpool *leadpoolservice.Service, dedup deduprepo.Repository, windowDays int) *Module {
	return &Module{pool: pool, leadpool: leadpool, dedup: dedup, windowDays: windowDays}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "stats"
}

// RegisterRoutes mounts the stats endpoints on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/stats", m.overview)
	ctx.Protected.GET("/dedup/eligibility", m.eligibility)
}

// eligibility answers whether an email could currently be delivered to the
// given client. Read-only probe; the delivery transaction re-checks anyway.
func (m *Module) eligibility(c *gin.Context) {
	email := domain.NormalizeEmail(c.Query("email"))
	if email == "" {
		httpkit.Error(c, http.StatusBadRequest, "email is required", nil)
		return
	}
	clientID, err := uuid.Parse(c.Query("clientId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid client ID", nil)
		return
	}

	eligible, err := m.dedup.IsEligible(c.Request.Context(), email, clientID, m.windowDays)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"email": email, "eligible": eligible, "windowDays": m.windowDays})
}

func (m *Module) overview(c *gin.Context) {
	ctx := c.Request.Context()

	poolCounts, err := m.leadpool.CountByStatus(ctx)
	if httpkit.HandleError(c, err) {
		return
	}
	dedupStats, err := m.dedup.Stats(ctx, m.windowDays)
	if httpkit.HandleError(c, err) {
		return
	}
	totals, err := m.deliveryTotals(ctx)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, Overview{
		Pool:       poolCounts,
		Dedup:      dedupStats,
		Deliveries: totals,
		WindowDays: m.windowDays,
	})
}

func (m *Module) deliveryTotals(ctx context.Context) (DeliveryTotals, error) {
	query := `
		SELECT count(*) FILTER (WHERE status = 'committed'),
		       count(*) FILTER (WHERE status = 'failed'),
		       COALESCE(sum(lead_count) FILTER (WHERE status = 'committed'), 0)
		FROM deliveries`

	var totals DeliveryTotals
	if err := m.pool.QueryRow(ctx, query).Scan(&totals.Committed, &totals.Failed, &totals.LeadsTotal); err != nil {
		return DeliveryTotals{}, fmt.Errorf("delivery totals: %w", err)
	}
	return totals, nil
}
