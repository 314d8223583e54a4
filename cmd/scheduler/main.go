package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	authrepository "mailpilot_backend/internal/auth/repository"
	authservice "mailpilot_backend/internal/auth/service"
	"mailpilot_backend/internal/email"
	"mailpilot_backend/internal/events"
	"mailpilot_backend/internal/followup"
	"mailpilot_backend/internal/mailbox"
	"mailpilot_backend/internal/notification"
	"mailpilot_backend/internal/scheduler"
	"mailpilot_backend/internal/users"
	"mailpilot_backend/platform/config"
	"mailpilot_backend/platform/db"
	"mailpilot_backend/platform/logger"
	"mailpilot_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// Worker-side follow-up wiring (no HTTP handlers required).
	mailboxClient := mailbox.NewClient(cfg, log)
	usersRepo := users.New(pool)
	notificationModule := notification.NewModule(pool, eventBus, log)
	defer notificationModule.Close()

	followupModule := followup.NewModule(pool, mailbox.NewFollowupReader(mailboxClient), usersRepo, notificationModule.Sink(), eventBus, val, cfg, cfg, log)
	followupModule.Service().SetMailer(email.NewSMTPSender(cfg))

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	enqueuer := scheduler.NewCron(client, log)
	if err := enqueuer.Start(); err != nil {
		log.Error("failed to start cron enqueuer", "error", err)
		panic("failed to start cron enqueuer: " + err.Error())
	}
	defer enqueuer.Stop()

	worker, err := scheduler.NewWorker(cfg, followupModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	worker.SetTokenPurger(authservice.New(authrepository.New(pool), cfg, log))

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
