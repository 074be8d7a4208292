// Package delivery provides the allocation and delivery bounded context
// module: withdrawing eligible leads from the pool and committing them to
// clients atomically.
package delivery

import (
	clientrepo "leadflow_backend/internal/clients/repository"
	"leadflow_backend/internal/delivery/engine"
	"leadflow_backend/internal/delivery/handler"
	"leadflow_backend/internal/delivery/repository"
	"leadflow_backend/internal/delivery/service"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/export"
	apphttp "leadflow_backend/internal/http"
	leadpoolservice "leadflow_backend/internal/leadpool/service"
	"leadflow_backend/internal/personalizer"
	"leadflow_backend/internal/plans"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the delivery bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	engine  *engine.Engine
	repo    repository.Repository
}

// Deps are the cross-module dependencies the delivery module is wired with.
type Deps struct {
	Pool            *pgxpool.Pool
	LeadSource      *leadpoolservice.Service
	Clients         clientrepo.Repository
	Catalog         *plans.Catalog
	Generator       personalizer.Generator // nil disables personalization
	Exporter        *export.Service        // nil disables exports
	Bus             events.Bus
	Validator       *validator.Validator
	Logger          *logger.Logger
	DedupWindowDays int
	Runs            handler.RunEnqueuer // nil when no job queue is configured
}

// NewModule creates and initializes the delivery module with all its dependencies.
func NewModule(deps Deps) *Module {
	repo := repository.New(deps.Pool)
	eng := engine.New(deps.LeadSource, repo, deps.Catalog, deps.DedupWindowDays, deps.Logger)
	svc := service.New(eng, repo, deps.Clients, deps.Catalog, deps.Generator, deps.Exporter, deps.Bus, deps.Logger)
	h := handler.New(svc, deps.Validator, deps.Runs)

	return &Module{
		handler: h,
		service: svc,
		engine:  eng,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "delivery"
}

// Service returns the service layer for external use (scheduler jobs).
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts delivery routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/deliveries")
	group.POST("/run", m.handler.Run)
	group.POST("/run/async", m.handler.RunAsync)
	group.POST("/clients/:clientId", m.handler.DeliverToClient)
	group.GET("", m.handler.ListByClient)
	group.GET("/:id", m.handler.GetByID)
}
