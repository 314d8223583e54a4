// Package handler exposes the follow-up module over HTTP.
package handler

import (
	"context"
	"net/http"

	"mailpilot_backend/internal/followup/repository"
	"mailpilot_backend/internal/followup/service"
	"mailpilot_backend/internal/followup/transport"
	"mailpilot_backend/platform/httpkit"
	"mailpilot_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for follow-up reminders.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new follow-up handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the reminder routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.POST("/:id/complete", h.MarkComplete)
	rg.POST("/:id/cancel", h.Cancel)
	rg.PATCH("/:id/date", h.UpdateDate)
}

// List returns the caller's reminders, optionally filtered by status and
// priority.
func (h *Handler) List(c *gin.Context) {
	var query transport.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	reminders, err := h.svc.List(c.Request.Context(), userID, repository.ListFilter{
		Status:   query.Status,
		Priority: query.Priority,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"reminders": reminders})
}

// Create adds a reminder for a thread. If the thread already has an active
// reminder, the existing one is returned.
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateReminderRequest
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

	params := service.CreateReminderParams{
		UserID:   userID,
		ThreadID: req.ThreadID,
		Title:    req.Title,
		Priority: req.Priority,
	}
	if req.ReminderDate != nil {
		params.ReminderDate = *req.ReminderDate
	}

	reminder, err := h.svc.Create(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, reminder)
}

// MarkComplete closes an active reminder.
func (h *Handler) MarkComplete(c *gin.Context) {
	h.updateStatus(c, h.svc.MarkComplete)
}

// Cancel closes an active reminder without completing it.
func (h *Handler) Cancel(c *gin.Context) {
	h.updateStatus(c, h.svc.Cancel)
}

func (h *Handler) updateStatus(c *gin.Context, op func(ctx context.Context, userID, id uuid.UUID) (repository.Reminder, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	reminder, err := op(c.Request.Context(), userID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, reminder)
}

// UpdateDate reschedules an active reminder.
func (h *Handler) UpdateDate(c *gin.Context) {
	var req transport.UpdateDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	reminder, err := h.svc.UpdateDate(c.Request.Context(), userID, id, req.ReminderDate.UTC())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, reminder)
}
