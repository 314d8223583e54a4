package scheduler

import (
	"context"
	"time"

	"mailpilot_backend/platform/logger"

	"github.com/robfig/cron/v3"
)

// Default schedules: sweep and auto-create daily in the morning, cleanup
// weekly on Sunday night.
const (
	defaultSweepSpec      = "0 8 * * *"
	defaultAutoCreateSpec = "30 8 * * *"
	defaultCleanupSpec    = "0 3 * * 0"

	enqueueTimeout = 30 * time.Second
)

// Cron periodically enqueues the follow-up jobs. It only produces tasks; the
// asynq worker consumes them, so a crashed tick is retried on the next one.
type Cron struct {
	engine *cron.Cron
	client *Client
	log    *logger.Logger
}

// NewCron creates the periodic enqueuer.
func NewCron(client *Client, log *logger.Logger) *Cron {
	return &Cron{
		engine: cron.New(cron.WithLocation(time.UTC)),
		client: client,
		log:    log,
	}
}

// Start registers the schedules and starts the cron engine.
func (c *Cron) Start() error {
	jobs := []struct {
		spec    string
		name    string
		enqueue func(ctx context.Context, triggeredBy string) error
	}{
		{defaultSweepSpec, TaskFollowupSweep, c.client.EnqueueSweep},
		{defaultAutoCreateSpec, TaskFollowupAutoCreate, c.client.EnqueueAutoCreate},
		{defaultCleanupSpec, TaskFollowupCleanup, c.client.EnqueueCleanup},
	}

	for _, job := range jobs {
		if _, err := c.engine.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
			defer cancel()
			if err := job.enqueue(ctx, "cron"); err != nil {
				c.log.Error("failed to enqueue scheduled job", "task", job.name, "error", err)
			}
		}); err != nil {
			return err
		}
	}

	c.engine.Start()
	c.log.Info("follow-up cron started",
		"sweep", defaultSweepSpec,
		"autoCreate", defaultAutoCreateSpec,
		"cleanup", defaultCleanupSpec,
	)
	return nil
}

// Stop halts the cron engine and waits for running jobs to finish.
func (c *Cron) Stop() {
	ctx := c.engine.Stop()
	<-ctx.Done()
}
