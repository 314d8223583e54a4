package events

import "github.com/google/uuid"

// PipelineStageChanged is published after a pipeline transition has been
// recorded. Subscribers must tolerate SideEffectFailed: the stage advanced
// even when the calendar/invoice call did not succeed.
type PipelineStageChanged struct {
	BaseEvent
	UserID           uuid.UUID
	ThreadID         string
	FromStage        string
	ToStage          string
	SideEffectFailed bool
}

// EventName returns the unique event identifier.
func (PipelineStageChanged) EventName() string { return "pipeline.stage_changed" }

// ReminderOverdue is published for each reminder the sweep flips from
// pending to overdue.
type ReminderOverdue struct {
	BaseEvent
	ReminderID uuid.UUID
	UserID     uuid.UUID
	ThreadID   string
}

// EventName returns the unique event identifier.
func (ReminderOverdue) EventName() string { return "followup.reminder_overdue" }
