// Package ports defines the collaborator interfaces the follow-up module
// consumes. Implementations live in the mailbox, users and notification
// modules; tests provide fakes.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is a single email inside a thread.
type Message struct {
	From string
	To   string
	Body string
	Date time.Time
}

// Thread is an email conversation.
type Thread struct {
	ID       string
	Subject  string
	Messages []Message
}

// LastMessage returns the newest message, or the zero Message for an empty
// thread.
func (t Thread) LastMessage() Message {
	if len(t.Messages) == 0 {
		return Message{}
	}
	return t.Messages[len(t.Messages)-1]
}

// ThreadSummary is a lightweight listing entry used by the auto-create scan.
type ThreadSummary struct {
	ID            string
	Subject       string
	Snippet       string
	LastMessageAt time.Time
}

// MailboxReader reads threads from the user's mailbox.
type MailboxReader interface {
	GetThread(ctx context.Context, threadID string) (Thread, error)
	// ListRecentThreads returns up to limit threads with activity since the
	// given time, newest first.
	ListRecentThreads(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]ThreadSummary, error)
}

// UserDirectory resolves user identity for the detector and the scheduler
// fan-out.
type UserDirectory interface {
	// GetUserEmail returns the user's own address. apperr.NotFound when the
	// user does not exist.
	GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error)
	ListActiveUsers(ctx context.Context) ([]uuid.UUID, error)
}

// NotificationParams describes one in-app notification.
type NotificationParams struct {
	UserID    uuid.UUID
	Type      string
	Title     string
	Message   string
	ActionURL string
	Metadata  map[string]string
}

// NotificationSink delivers in-app notifications.
type NotificationSink interface {
	CreateNotification(ctx context.Context, params NotificationParams) error
}

// ReminderMailer delivers reminder emails. Email is a secondary channel;
// the sweep continues when it fails.
type ReminderMailer interface {
	SendOverdueReminderEmail(ctx context.Context, toEmail, reminderTitle, threadURL string) error
	SendFollowupDigestEmail(ctx context.Context, toEmail string, dueCount int, listURL string) error
}
