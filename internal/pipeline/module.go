// Package pipeline provides the email pipeline bounded context module.
// This file defines the module that encapsulates all pipeline setup and
// route registration.
package pipeline

import (
	"mailpilot_backend/internal/events"
	apphttp "mailpilot_backend/internal/http"
	"mailpilot_backend/internal/pipeline/handler"
	"mailpilot_backend/internal/pipeline/ports"
	"mailpilot_backend/internal/pipeline/repository"
	"mailpilot_backend/internal/pipeline/service"
	"mailpilot_backend/platform/config"
	"mailpilot_backend/platform/logger"
	"mailpilot_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the pipeline module with all its dependencies.
func NewModule(pool *pgxpool.Pool, threads ports.ThreadReader, calendar ports.CalendarWriter, invoices ports.InvoiceWriter, eventBus events.Bus, val *validator.Validator, cfg config.PipelineConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, threads, calendar, invoices, eventBus, cfg, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipeline"
}

// Service returns the pipeline service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts pipeline routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All pipeline routes require authentication
	group := ctx.Protected.Group("/pipeline")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
