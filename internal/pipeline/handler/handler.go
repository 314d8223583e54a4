// Package handler exposes the pipeline module over HTTP.
package handler

import (
	"net/http"

	"mailpilot_backend/internal/pipeline/repository"
	"mailpilot_backend/internal/pipeline/service"
	"mailpilot_backend/internal/pipeline/transport"
	"mailpilot_backend/platform/httpkit"
	"mailpilot_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for pipeline state and transitions.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new pipeline handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the pipeline routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/threads", h.IngestThread)
	rg.GET("/threads/:threadId", h.GetState)
	rg.POST("/threads/:threadId/transition", h.Transition)
	rg.GET("/threads/:threadId/transitions", h.ListTransitions)
}

// IngestThread registers a mailbox thread in the pipeline.
func (h *Handler) IngestThread(c *gin.Context) {
	var req transport.IngestThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	state, err := h.svc.IngestThread(c.Request.Context(), userID, req.ThreadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toStateResponse(state))
}

// GetState returns the pipeline state for a thread.
func (h *Handler) GetState(c *gin.Context) {
	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	state, err := h.svc.GetState(c.Request.Context(), userID, c.Param("threadId"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toStateResponse(state))
}

// Transition moves a thread to a new pipeline stage.
func (h *Handler) Transition(c *gin.Context) {
	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	result, err := h.svc.Transition(c.Request.Context(), userID, c.Param("threadId"), req.Stage, userID.String())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// ListTransitions returns the transition history for a thread.
func (h *Handler) ListTransitions(c *gin.Context) {
	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	rows, err := h.svc.ListTransitions(c.Request.Context(), userID, c.Param("threadId"))
	if httpkit.HandleError(c, err) {
		return
	}

	entries := make([]transport.TransitionLogEntry, 0, len(rows))
	for _, tr := range rows {
		entries = append(entries, transport.TransitionLogEntry{
			FromStage:      tr.FromStage,
			ToStage:        tr.ToStage,
			TransitionedBy: tr.TransitionedBy,
			Reason:         tr.Reason,
			CreatedAt:      tr.CreatedAt,
		})
	}

	httpkit.OK(c, gin.H{"transitions": entries})
}

func toStateResponse(s repository.State) transport.StateResponse {
	return transport.StateResponse{
		ThreadID:         s.ThreadID,
		Stage:            s.Stage,
		TaskType:         s.TaskType,
		Source:           s.Source,
		SourceConfidence: s.SourceConfidence,
		CalendarEventID:  s.CalendarEventID,
		InvoiceID:        s.InvoiceID,
		TransitionedAt:   s.TransitionedAt,
		CreatedAt:        s.CreatedAt,
	}
}
