package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return "test" }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func TestClientEnqueueSweepIsUnique(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(testSchedulerConfig{redisURL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if err := client.EnqueueSweep(context.Background(), "test"); err != nil {
		t.Fatalf("EnqueueSweep() error = %v", err)
	}

	// The uniqueness lock rejects a duplicate within the window.
	err = client.EnqueueSweep(context.Background(), "test")
	if !errors.Is(err, asynq.ErrDuplicateTask) {
		t.Errorf("second EnqueueSweep() error = %v, want ErrDuplicateTask", err)
	}
}

func TestClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{redisURL: ""}); err == nil {
		t.Error("NewClient() with empty redis url must fail")
	}
}

func TestFollowupJobPayloadRoundTrip(t *testing.T) {
	enqueuedAt := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	task, err := NewFollowupSweepTask(FollowupJobPayload{TriggeredBy: "cron", EnqueuedAt: enqueuedAt})
	if err != nil {
		t.Fatalf("NewFollowupSweepTask() error = %v", err)
	}
	if task.Type() != TaskFollowupSweep {
		t.Errorf("task type = %q, want %q", task.Type(), TaskFollowupSweep)
	}

	payload, err := ParseFollowupJobPayload(task)
	if err != nil {
		t.Fatalf("ParseFollowupJobPayload() error = %v", err)
	}
	if payload.TriggeredBy != "cron" {
		t.Errorf("triggeredBy = %q, want cron", payload.TriggeredBy)
	}
	if !payload.EnqueuedAt.Equal(enqueuedAt) {
		t.Errorf("enqueuedAt = %v, want %v", payload.EnqueuedAt, enqueuedAt)
	}
}
