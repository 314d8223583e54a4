// Package transport defines the HTTP request/response shapes for the
// pipeline module.
package transport

import "time"

// IngestThreadRequest registers a mailbox thread in the pipeline.
type IngestThreadRequest struct {
	ThreadID string `json:"threadId" validate:"required,min=1,max=255"`
}

// TransitionRequest moves a thread to a new pipeline stage.
type TransitionRequest struct {
	Stage string `json:"stage" validate:"required,min=1,max=50"`
}

// StateResponse is the pipeline state of a single thread.
type StateResponse struct {
	ThreadID         string    `json:"threadId"`
	Stage            string    `json:"stage"`
	TaskType         string    `json:"taskType"`
	Source           string    `json:"source"`
	SourceConfidence int       `json:"sourceConfidence"`
	CalendarEventID  *string   `json:"calendarEventId,omitempty"`
	InvoiceID        *string   `json:"invoiceId,omitempty"`
	TransitionedAt   time.Time `json:"transitionedAt"`
	CreatedAt        time.Time `json:"createdAt"`
}

// TransitionLogEntry is one row of a thread's transition history.
type TransitionLogEntry struct {
	FromStage      string    `json:"fromStage"`
	ToStage        string    `json:"toStage"`
	TransitionedBy string    `json:"transitionedBy"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
