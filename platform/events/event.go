// Package events defines the in-process event bus the modules talk over.
// Pipeline stage changes and reminder state flips are published here so the
// notification side can react without the publishing module knowing about it.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event carried on the bus, such as a
// thread transitioned between stages or a reminder turned overdue.
type Event interface {
	// EventName identifies the event type, e.g. "pipeline.stage_changed".
	EventName() string
	// OccurredAt returns when the event happened.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all concrete events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event happened.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a new event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler processes events of one type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes domain events to subscribed handlers.
type Bus interface {
	// Publish delivers an event to every handler subscribed to its name.
	// Handlers run asynchronously; a slow subscriber never blocks a
	// pipeline transition.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers an event and waits for all handlers to finish.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under an event name as returned by
	// Event.EventName().
	Subscribe(eventName string, handler Handler)
}
