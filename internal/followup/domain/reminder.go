// Package domain holds the follow-up reminder lifecycle rules and the
// content heuristics that decide whether a thread needs a reminder.
package domain

// Reminder statuses. Completed and cancelled are terminal: once a reminder
// reaches either, no further status change is allowed.
const (
	StatusPending   = "pending"
	StatusOverdue   = "overdue"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Reminder priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// IsKnownStatus reports whether s is one of the defined reminder statuses.
func IsKnownStatus(s string) bool {
	switch s {
	case StatusPending, StatusOverdue, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminalStatus reports whether s admits no further transitions.
func IsTerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActiveStatus reports whether a reminder with status s counts against the
// one-active-reminder-per-thread rule.
func IsActiveStatus(s string) bool {
	return s == StatusPending || s == StatusOverdue
}

// IsKnownPriority reports whether p is one of the defined priorities.
func IsKnownPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
