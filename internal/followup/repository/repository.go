// Package repository persists follow-up reminders.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailpilot_backend/internal/followup/domain"
	"mailpilot_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reminderNotFoundMessage = "follow-up reminder not found"

// Reminder is one row of MP_followup_reminders. At most one active
// (pending or overdue) reminder exists per (userID, threadID); the service
// layer enforces this with find-or-create semantics.
type Reminder struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"userId"`
	ThreadID     string     `json:"threadId"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	ReminderDate time.Time  `json:"reminderDate"`
	AutoCreated  bool       `json:"autoCreated"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// CreateParams holds the fields of a new reminder.
type CreateParams struct {
	UserID       uuid.UUID
	ThreadID     string
	Title        string
	Priority     string
	ReminderDate time.Time
	AutoCreated  bool
}

// ListFilter narrows List results. Empty fields match everything.
type ListFilter struct {
	Status   string
	Priority string
}

const reminderColumns = `id, user_id, thread_id, title, status, priority, reminder_date,
	       auto_created, sent_at, completed_at, cancelled_at, created_at, updated_at`

// Repository implements reminder persistence with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new follow-up reminder repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanReminder(row pgx.Row) (Reminder, error) {
	var rem Reminder
	err := row.Scan(
		&rem.ID, &rem.UserID, &rem.ThreadID, &rem.Title, &rem.Status, &rem.Priority, &rem.ReminderDate,
		&rem.AutoCreated, &rem.SentAt, &rem.CompletedAt, &rem.CancelledAt, &rem.CreatedAt, &rem.UpdatedAt,
	)
	return rem, err
}

// GetByID retrieves a single reminder scoped to its owner.
func (r *Repository) GetByID(ctx context.Context, userID, id uuid.UUID) (Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM MP_followup_reminders
		WHERE user_id = $1 AND id = $2`

	rem, err := scanReminder(r.pool.QueryRow(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reminder{}, apperr.NotFound(reminderNotFoundMessage)
		}
		return Reminder{}, fmt.Errorf("get reminder: %w", err)
	}

	return rem, nil
}

// FindActive returns the pending or overdue reminder for a thread, if any.
func (r *Repository) FindActive(ctx context.Context, userID uuid.UUID, threadID string) (Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM MP_followup_reminders
		WHERE user_id = $1 AND thread_id = $2 AND status IN ($3, $4)
		ORDER BY created_at DESC
		LIMIT 1`

	rem, err := scanReminder(r.pool.QueryRow(ctx, query, userID, threadID, domain.StatusPending, domain.StatusOverdue))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reminder{}, apperr.NotFound(reminderNotFoundMessage)
		}
		return Reminder{}, fmt.Errorf("find active reminder: %w", err)
	}

	return rem, nil
}

// Create inserts a new pending reminder.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Reminder, error) {
	query := `
		INSERT INTO MP_followup_reminders (user_id, thread_id, title, status, priority, reminder_date, auto_created)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + reminderColumns

	rem, err := scanReminder(r.pool.QueryRow(ctx, query,
		params.UserID, params.ThreadID, params.Title, domain.StatusPending, params.Priority, params.ReminderDate, params.AutoCreated,
	))
	if err != nil {
		return Reminder{}, fmt.Errorf("create reminder: %w", err)
	}

	return rem, nil
}

// List returns a user's reminders, due first, optionally filtered by status
// and priority.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM MP_followup_reminders
		WHERE user_id = $1
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR priority = $3)
		ORDER BY reminder_date ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, userID, filter.Status, filter.Priority)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var results []Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		results = append(results, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}

	return results, nil
}

// ListDue returns all active reminders across users whose reminder date has
// passed. This is the sweep's atomic read of the due set.
func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM MP_followup_reminders
		WHERE status IN ($1, $2) AND reminder_date <= $3
		ORDER BY user_id, reminder_date ASC`

	rows, err := r.pool.Query(ctx, query, domain.StatusPending, domain.StatusOverdue, now)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	var results []Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		results = append(results, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due reminders: %w", err)
	}

	return results, nil
}

// MarkOverdue flips the given reminders from pending to overdue in one
// batched conditional update and stamps sent_at. Reminders that raced to a
// different status are left untouched; the count of flipped rows is returned.
func (r *Repository) MarkOverdue(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE MP_followup_reminders
		SET status = $1, sent_at = $2, updated_at = $2
		WHERE id = ANY($3) AND status = $4`

	result, err := r.pool.Exec(ctx, query, domain.StatusOverdue, now, ids, domain.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("mark reminders overdue: %w", err)
	}

	return result.RowsAffected(), nil
}

// SweepOverdueForUser lazily flips a single user's due pending reminders to
// overdue. Called from read paths so listed statuses are current.
func (r *Repository) SweepOverdueForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	query := `
		UPDATE MP_followup_reminders
		SET status = $1, updated_at = $2
		WHERE user_id = $3 AND status = $4 AND reminder_date <= $2`

	result, err := r.pool.Exec(ctx, query, domain.StatusOverdue, now, userID, domain.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("sweep overdue reminders: %w", err)
	}

	return result.RowsAffected(), nil
}

// MarkComplete closes an active reminder. Terminal reminders are immutable;
// completing one reports NotFound.
func (r *Repository) MarkComplete(ctx context.Context, userID, id uuid.UUID, now time.Time) (Reminder, error) {
	query := `
		UPDATE MP_followup_reminders
		SET status = $1, completed_at = $2, updated_at = $2
		WHERE user_id = $3 AND id = $4 AND status IN ($5, $6)
		RETURNING ` + reminderColumns

	rem, err := scanReminder(r.pool.QueryRow(ctx, query,
		domain.StatusCompleted, now, userID, id, domain.StatusPending, domain.StatusOverdue,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reminder{}, apperr.NotFound("no active reminder to complete")
		}
		return Reminder{}, fmt.Errorf("complete reminder: %w", err)
	}

	return rem, nil
}

// Cancel closes an active reminder without completing it.
func (r *Repository) Cancel(ctx context.Context, userID, id uuid.UUID, now time.Time) (Reminder, error) {
	query := `
		UPDATE MP_followup_reminders
		SET status = $1, cancelled_at = $2, updated_at = $2
		WHERE user_id = $3 AND id = $4 AND status IN ($5, $6)
		RETURNING ` + reminderColumns

	rem, err := scanReminder(r.pool.QueryRow(ctx, query,
		domain.StatusCancelled, now, userID, id, domain.StatusPending, domain.StatusOverdue,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reminder{}, apperr.NotFound("no active reminder to cancel")
		}
		return Reminder{}, fmt.Errorf("cancel reminder: %w", err)
	}

	return rem, nil
}

// UpdateDate moves an active reminder's due date. An overdue reminder whose
// new date lies in the future reverts to pending; this is the only path back
// from overdue.
func (r *Repository) UpdateDate(ctx context.Context, userID, id uuid.UUID, newDate, now time.Time) (Reminder, error) {
	query := `
		UPDATE MP_followup_reminders
		SET reminder_date = $1,
		    status = CASE WHEN status = $2 AND $1 > $3 THEN $4 ELSE status END,
		    updated_at = $3
		WHERE user_id = $5 AND id = $6 AND status IN ($4, $2)
		RETURNING ` + reminderColumns

	rem, err := scanReminder(r.pool.QueryRow(ctx, query,
		newDate, domain.StatusOverdue, now, domain.StatusPending, userID, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reminder{}, apperr.NotFound("no active reminder to reschedule")
		}
		return Reminder{}, fmt.Errorf("update reminder date: %w", err)
	}

	return rem, nil
}

// DeleteTerminalBefore hard-deletes completed and cancelled reminders whose
// last update is older than the cutoff. Returns the number of rows removed.
func (r *Repository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM MP_followup_reminders
		WHERE status IN ($1, $2) AND updated_at < $3`

	result, err := r.pool.Exec(ctx, query, domain.StatusCompleted, domain.StatusCancelled, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal reminders: %w", err)
	}

	return result.RowsAffected(), nil
}
