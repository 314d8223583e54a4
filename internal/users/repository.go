// Package users provides the user directory consumed by the follow-up
// scheduler and the mailbox adapter.
package users

import (
	"context"
	"errors"
	"fmt"

	"mailpilot_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads users from MP_users.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new user directory repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUserEmail returns the user's own email address.
func (r *Repository) GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `SELECT email FROM MP_users WHERE id = $1`

	var email string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("user not found")
		}
		return "", fmt.Errorf("get user email: %w", err)
	}

	return email, nil
}

// ListActiveUsers returns the ids of all users eligible for the scheduler
// fan-out.
func (r *Repository) ListActiveUsers(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM MP_users WHERE is_active = TRUE ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return ids, nil
}
