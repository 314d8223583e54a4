// Package notification provides the in-app notification bounded context
// module: persistence, SSE push and route registration.
package notification

import (
	"context"

	"mailpilot_backend/internal/events"
	"mailpilot_backend/internal/followup/ports"
	"mailpilot_backend/internal/http"
	"mailpilot_backend/internal/notification/handler"
	"mailpilot_backend/internal/notification/inapp"
	"mailpilot_backend/internal/notification/sse"
	"mailpilot_backend/platform/httpkit"
	"mailpilot_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the notification bounded context module implementing http.Module.
type Module struct {
	handler *handler.HTTPHandler
	inapp   *inapp.Service
	sse     *sse.Service
}

// NewModule creates and initializes the notification module.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, log *logger.Logger) *Module {
	repo := inapp.NewRepository(pool)
	svc := inapp.NewService(repo, log)
	sseSvc := sse.New(log)
	svc.SetSSE(sseSvc)
	h := handler.NewHTTPHandler(svc)

	// Push pipeline stage changes to connected clients so boards refresh
	// without polling.
	if eventBus != nil {
		eventBus.Subscribe(events.PipelineStageChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
			e, ok := event.(events.PipelineStageChanged)
			if !ok {
				return nil
			}
			sseSvc.Publish(e.UserID, sse.Event{
				Type:     sse.EventPipelineUpdated,
				ThreadID: e.ThreadID,
				Data: map[string]interface{}{
					"fromStage":        e.FromStage,
					"toStage":          e.ToStage,
					"sideEffectFailed": e.SideEffectFailed,
				},
			})
			return nil
		}))
	}

	return &Module{
		handler: h,
		inapp:   svc,
		sse:     sseSvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// Sink returns the notification sink consumed by the follow-up scheduler.
func (m *Module) Sink() ports.NotificationSink {
	return &sinkAdapter{svc: m.inapp}
}

// Close shuts down the SSE connections.
func (m *Module) Close() {
	m.sse.Close()
}

// RegisterRoutes mounts notification routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *http.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	m.handler.RegisterRoutes(group)
	group.GET("/stream", m.sse.Handler(httpkit.UserID))
}

// sinkAdapter adapts the in-app service to the follow-up module's
// NotificationSink port.
type sinkAdapter struct {
	svc *inapp.Service
}

func (a *sinkAdapter) CreateNotification(ctx context.Context, params ports.NotificationParams) error {
	return a.svc.Send(ctx, inapp.SendParams{
		UserID:    params.UserID,
		Type:      params.Type,
		Title:     params.Title,
		Message:   params.Message,
		ActionURL: params.ActionURL,
		Metadata:  params.Metadata,
	})
}

// Compile-time check that Module implements http.Module
var _ http.Module = (*Module)(nil)
