// Package transport defines the HTTP request/response shapes for the
// follow-up module.
package transport

import "time"

// CreateReminderRequest creates (or finds) a reminder for a thread.
type CreateReminderRequest struct {
	ThreadID     string     `json:"threadId" validate:"required,min=1,max=255"`
	Title        string     `json:"title" validate:"max=500"`
	Priority     string     `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ReminderDate *time.Time `json:"reminderDate,omitempty"`
}

// UpdateDateRequest reschedules a reminder.
type UpdateDateRequest struct {
	ReminderDate time.Time `json:"reminderDate" validate:"required"`
}

// ListQuery narrows the reminder listing.
type ListQuery struct {
	Status   string `form:"status" validate:"omitempty,oneof=pending overdue completed cancelled"`
	Priority string `form:"priority" validate:"omitempty,oneof=low normal high urgent"`
}
