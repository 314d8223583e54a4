// Package repository persists pipeline state and the append-only transition log.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailpilot_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const stateNotFoundMessage = "pipeline state not found"

// State is one row per (userID, threadID). CalendarEventID and InvoiceID are
// the idempotency anchors: set at most once, never cleared.
type State struct {
	UserID           uuid.UUID `json:"userId"`
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

// Transition is one immutable log row. Rows are only ever inserted.
type Transition struct {
	ID             int64     `json:"id"`
	UserID         uuid.UUID `json:"userId"`
	ThreadID       string    `json:"threadId"`
	FromStage      string    `json:"fromStage"`
	ToStage        string    `json:"toStage"`
	TransitionedBy string    `json:"transitionedBy"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateStateParams holds the fields set on first classification of a thread.
type CreateStateParams struct {
	UserID           uuid.UUID
	ThreadID         string
	Stage            string
	TaskType         string
	Source           string
	SourceConfidence int
}

// AppendTransitionParams holds the fields of a transition log row.
type AppendTransitionParams struct {
	UserID         uuid.UUID
	ThreadID       string
	FromStage      string
	ToStage        string
	TransitionedBy string
	Reason         string
}

// Repository implements pipeline persistence with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new pipeline repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetState retrieves the pipeline state for a thread.
func (r *Repository) GetState(ctx context.Context, userID uuid.UUID, threadID string) (State, error) {
	query := `
		SELECT user_id, thread_id, stage, task_type, source, source_confidence,
		       calendar_event_id, invoice_id, transitioned_at, created_at
		FROM MP_pipeline_states
		WHERE user_id = $1 AND thread_id = $2`

	var s State
	err := r.pool.QueryRow(ctx, query, userID, threadID).Scan(
		&s.UserID, &s.ThreadID, &s.Stage, &s.TaskType, &s.Source, &s.SourceConfidence,
		&s.CalendarEventID, &s.InvoiceID, &s.TransitionedAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{}, apperr.NotFound(stateNotFoundMessage)
		}
		return State{}, fmt.Errorf("get pipeline state: %w", err)
	}

	return s, nil
}

// CreateState inserts the state row for a newly classified thread. The unique
// constraint on (user_id, thread_id) makes re-ingestion a no-op; the existing
// row is returned in that case.
func (r *Repository) CreateState(ctx context.Context, params CreateStateParams) (State, error) {
	query := `
		INSERT INTO MP_pipeline_states (user_id, thread_id, stage, task_type, source, source_confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, thread_id) DO NOTHING
		RETURNING user_id, thread_id, stage, task_type, source, source_confidence,
		          calendar_event_id, invoice_id, transitioned_at, created_at`

	var s State
	err := r.pool.QueryRow(ctx, query,
		params.UserID, params.ThreadID, params.Stage, params.TaskType, params.Source, params.SourceConfidence,
	).Scan(
		&s.UserID, &s.ThreadID, &s.Stage, &s.TaskType, &s.Source, &s.SourceConfidence,
		&s.CalendarEventID, &s.InvoiceID, &s.TransitionedAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict path: the row already existed.
			return r.GetState(ctx, params.UserID, params.ThreadID)
		}
		return State{}, fmt.Errorf("create pipeline state: %w", err)
	}

	return s, nil
}

// UpdateStage sets the current stage and transition timestamp.
func (r *Repository) UpdateStage(ctx context.Context, userID uuid.UUID, threadID, stage string) error {
	query := `
		UPDATE MP_pipeline_states
		SET stage = $3, transitioned_at = now(), updated_at = now()
		WHERE user_id = $1 AND thread_id = $2`

	result, err := r.pool.Exec(ctx, query, userID, threadID, stage)
	if err != nil {
		return fmt.Errorf("update pipeline stage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(stateNotFoundMessage)
	}

	return nil
}

// SetCalendarEventID persists the calendar idempotency anchor. The
// conditional update guarantees the anchor is written at most once; the
// return value reports whether this call claimed it.
func (r *Repository) SetCalendarEventID(ctx context.Context, userID uuid.UUID, threadID, eventID string) (bool, error) {
	query := `
		UPDATE MP_pipeline_states
		SET calendar_event_id = $3, updated_at = now()
		WHERE user_id = $1 AND thread_id = $2 AND calendar_event_id IS NULL`

	result, err := r.pool.Exec(ctx, query, userID, threadID, eventID)
	if err != nil {
		return false, fmt.Errorf("set calendar event id: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// SetInvoiceID persists the invoice idempotency anchor, at most once.
func (r *Repository) SetInvoiceID(ctx context.Context, userID uuid.UUID, threadID, invoiceID string) (bool, error) {
	query := `
		UPDATE MP_pipeline_states
		SET invoice_id = $3, updated_at = now()
		WHERE user_id = $1 AND thread_id = $2 AND invoice_id IS NULL`

	result, err := r.pool.Exec(ctx, query, userID, threadID, invoiceID)
	if err != nil {
		return false, fmt.Errorf("set invoice id: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// AppendTransition inserts one transition log row. Log rows record intent:
// they are appended even when the stage's side effect later fails.
func (r *Repository) AppendTransition(ctx context.Context, params AppendTransitionParams) error {
	query := `
		INSERT INTO MP_pipeline_transitions (user_id, thread_id, from_stage, to_stage, transitioned_by, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		params.UserID, params.ThreadID, params.FromStage, params.ToStage, params.TransitionedBy, params.Reason,
	)
	if err != nil {
		return fmt.Errorf("append pipeline transition: %w", err)
	}

	return nil
}

// ListTransitions returns the transition log for a thread, oldest first.
func (r *Repository) ListTransitions(ctx context.Context, userID uuid.UUID, threadID string) ([]Transition, error) {
	query := `
		SELECT id, user_id, thread_id, from_stage, to_stage, transitioned_by, reason, created_at
		FROM MP_pipeline_transitions
		WHERE user_id = $1 AND thread_id = $2
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, userID, threadID)
	if err != nil {
		return nil, fmt.Errorf("list pipeline transitions: %w", err)
	}
	defer rows.Close()

	var results []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.ID, &t.UserID, &t.ThreadID, &t.FromStage, &t.ToStage, &t.TransitionedBy, &t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline transition: %w", err)
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipeline transitions: %w", err)
	}

	return results, nil
}
