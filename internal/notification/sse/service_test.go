package sse

import (
	"testing"

	"mailpilot_backend/platform/logger"

	"github.com/google/uuid"
)

func TestPublishDeliversToConnectedClient(t *testing.T) {
	svc := New(logger.New("test"))
	userID := uuid.New()

	cl := &client{userID: userID, events: make(chan Event, 32)}
	svc.addClient(cl)
	defer svc.removeClient(cl)

	svc.Publish(userID, Event{Type: EventReminderOverdue, ThreadID: "thread-a"})

	select {
	case got := <-cl.events:
		if got.Type != EventReminderOverdue || got.ThreadID != "thread-a" {
			t.Errorf("received event = %+v", got)
		}
	default:
		t.Fatal("published event never reached the client channel")
	}
}

func TestRemoveClientClosesChannel(t *testing.T) {
	svc := New(logger.New("test"))

	cl := &client{userID: uuid.New(), events: make(chan Event, 1)}
	svc.addClient(cl)
	svc.removeClient(cl)

	if _, ok := <-cl.events; ok {
		t.Error("channel still open after removeClient")
	}
	if len(svc.clients) != 0 {
		t.Errorf("clients map has %d entries, want 0", len(svc.clients))
	}
}

func TestRemoveClientAfterCloseDoesNotPanic(t *testing.T) {
	svc := New(logger.New("test"))

	cl := &client{userID: uuid.New(), events: make(chan Event, 1)}
	svc.addClient(cl)

	// Shutdown closes every client channel; the handler's deferred
	// removeClient then runs against an already-closed channel.
	svc.Close()
	svc.removeClient(cl)
}
