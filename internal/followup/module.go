// Package followup provides the follow-up reminder bounded context module.
// This file defines the module that encapsulates all follow-up setup and
// route registration.
package followup

import (
	"mailpilot_backend/internal/events"
	"mailpilot_backend/internal/followup/handler"
	"mailpilot_backend/internal/followup/ports"
	"mailpilot_backend/internal/followup/repository"
	"mailpilot_backend/internal/followup/service"
	apphttp "mailpilot_backend/internal/http"
	"mailpilot_backend/platform/config"
	"mailpilot_backend/platform/logger"
	"mailpilot_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the follow-up bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the follow-up module with all its dependencies.
func NewModule(pool *pgxpool.Pool, mailbox ports.MailboxReader, users ports.UserDirectory, notifier ports.NotificationSink, eventBus events.Bus, val *validator.Validator, cfg config.FollowupConfig, notifCfg config.NotificationConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, mailbox, users, notifier, eventBus, cfg, notifCfg, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "followup"
}

// Service returns the follow-up service for the scheduler jobs.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts follow-up routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All reminder routes require authentication
	group := ctx.Protected.Group("/followups")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
