package scheduler

import (
	"context"
	"fmt"

	followupservice "mailpilot_backend/internal/followup/service"
	"mailpilot_backend/platform/config"
	"mailpilot_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// TokenPurger removes stale auth refresh tokens during the weekly cleanup.
type TokenPurger interface {
	Cleanup(ctx context.Context) (int64, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	followup *followupservice.Service
	tokens   TokenPurger
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, followup *followupservice.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		followup: followup,
		log:      log,
	}

	mux.HandleFunc(TaskFollowupSweep, w.handleFollowupSweep)
	mux.HandleFunc(TaskFollowupAutoCreate, w.handleFollowupAutoCreate)
	mux.HandleFunc(TaskFollowupCleanup, w.handleFollowupCleanup)

	return w, nil
}

// SetTokenPurger attaches an auth token purger to the cleanup task. Optional.
func (w *Worker) SetTokenPurger(p TokenPurger) {
	w.tokens = p
}

// handleFollowupSweep runs check-and-notify. The step aggregates its own
// per-reminder failures; only a malformed task is an error to asynq.
func (w *Worker) handleFollowupSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowupJobPayload(task)
	if err != nil {
		return err
	}

	stats := w.followup.CheckAndNotify(ctx)
	w.log.Info("follow-up sweep finished",
		"triggeredBy", payload.TriggeredBy,
		"checked", stats.Checked,
		"notified", stats.Notified,
		"flipped", stats.Flipped,
		"errors", stats.Errors,
	)
	return nil
}

func (w *Worker) handleFollowupAutoCreate(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowupJobPayload(task)
	if err != nil {
		return err
	}

	stats := w.followup.AutoCreateFollowups(ctx)
	w.log.Info("follow-up auto-create finished",
		"triggeredBy", payload.TriggeredBy,
		"users", stats.Users,
		"scanned", stats.Scanned,
		"created", stats.Created,
		"errors", stats.Errors,
	)
	return nil
}

func (w *Worker) handleFollowupCleanup(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowupJobPayload(task)
	if err != nil {
		return err
	}

	deleted, err := w.followup.Cleanup(ctx)
	if err != nil {
		// Retried by asynq; the delete is idempotent.
		return err
	}

	var expiredTokens int64
	if w.tokens != nil {
		if expiredTokens, err = w.tokens.Cleanup(ctx); err != nil {
			return err
		}
	}

	w.log.Info("weekly cleanup finished",
		"triggeredBy", payload.TriggeredBy,
		"deleted", deleted,
		"expiredTokens", expiredTokens,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
