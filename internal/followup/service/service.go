// Package service implements follow-up reminder lifecycle, detection and the
// scheduler steps.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"mailpilot_backend/internal/events"
	"mailpilot_backend/internal/followup/domain"
	"mailpilot_backend/internal/followup/ports"
	"mailpilot_backend/internal/followup/repository"
	"mailpilot_backend/platform/apperr"
	"mailpilot_backend/platform/config"
	"mailpilot_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// autoCreateConcurrency bounds the per-user fan-out of the auto-create scan.
const autoCreateConcurrency = 4

// Store is the persistence surface the service needs. Implemented by
// repository.Repository; tests provide an in-memory fake.
type Store interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (repository.Reminder, error)
	FindActive(ctx context.Context, userID uuid.UUID, threadID string) (repository.Reminder, error)
	Create(ctx context.Context, params repository.CreateParams) (repository.Reminder, error)
	List(ctx context.Context, userID uuid.UUID, filter repository.ListFilter) ([]repository.Reminder, error)
	ListDue(ctx context.Context, now time.Time) ([]repository.Reminder, error)
	MarkOverdue(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error)
	SweepOverdueForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	MarkComplete(ctx context.Context, userID, id uuid.UUID, now time.Time) (repository.Reminder, error)
	Cancel(ctx context.Context, userID, id uuid.UUID, now time.Time) (repository.Reminder, error)
	UpdateDate(ctx context.Context, userID, id uuid.UUID, newDate, now time.Time) (repository.Reminder, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CreateReminderParams is the input for Create.
type CreateReminderParams struct {
	UserID       uuid.UUID
	ThreadID     string
	Title        string
	Priority     string
	ReminderDate time.Time
	AutoCreated  bool
}

// CheckStats are the aggregate counts of one check-and-notify run.
type CheckStats struct {
	Checked  int   `json:"checked"`
	Notified int   `json:"notified"`
	Emailed  int   `json:"emailed"`
	Flipped  int64 `json:"flipped"`
	Errors   int   `json:"errors"`
}

// AutoCreateStats are the aggregate counts of one auto-create run.
type AutoCreateStats struct {
	Users   int `json:"users"`
	Scanned int `json:"scanned"`
	Created int `json:"created"`
	Errors  int `json:"errors"`
}

// Service coordinates reminder lifecycle and the scheduler steps.
type Service struct {
	repo     Store
	mailbox  ports.MailboxReader
	users    ports.UserDirectory
	notifier ports.NotificationSink
	bus      events.Bus
	cfg      config.FollowupConfig
	notifCfg config.NotificationConfig
	log      *logger.Logger
	mailer   ports.ReminderMailer

	now func() time.Time
}

// New creates the follow-up service.
func New(repo Store, mailbox ports.MailboxReader, users ports.UserDirectory, notifier ports.NotificationSink, bus events.Bus, cfg config.FollowupConfig, notifCfg config.NotificationConfig, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		mailbox:  mailbox,
		users:    users,
		notifier: notifier,
		bus:      bus,
		cfg:      cfg,
		notifCfg: notifCfg,
		log:      log,
		now:      time.Now,
	}
}

// SetMailer enables email delivery for the overdue sweep. Without it the
// sweep only produces in-app notifications.
func (s *Service) SetMailer(mailer ports.ReminderMailer) {
	s.mailer = mailer
}

// SetClock overrides the time source. Intended for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Create adds a reminder with find-or-create semantics: if the thread
// already has an active reminder, that reminder is returned unchanged and
// nothing is inserted.
func (s *Service) Create(ctx context.Context, params CreateReminderParams) (repository.Reminder, error) {
	if params.UserID == uuid.Nil || params.ThreadID == "" {
		return repository.Reminder{}, apperr.Validation("userId and threadId are required")
	}
	if params.Priority == "" {
		params.Priority = domain.PriorityNormal
	}
	if !domain.IsKnownPriority(params.Priority) {
		return repository.Reminder{}, apperr.Validation(fmt.Sprintf("unknown priority %q", params.Priority))
	}
	if params.ReminderDate.IsZero() {
		params.ReminderDate = s.now().AddDate(0, 0, s.cfg.GetReminderOffsetDays())
	}
	if params.Title == "" {
		params.Title = "Følg op på tråd"
	}

	existing, err := s.repo.FindActive(ctx, params.UserID, params.ThreadID)
	if err == nil {
		return existing, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return repository.Reminder{}, err
	}

	return s.repo.Create(ctx, repository.CreateParams{
		UserID:       params.UserID,
		ThreadID:     params.ThreadID,
		Title:        params.Title,
		Priority:     params.Priority,
		ReminderDate: params.ReminderDate,
		AutoCreated:  params.AutoCreated,
	})
}

// List returns a user's reminders. Due pending reminders are flipped to
// overdue first so callers always see current statuses.
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter repository.ListFilter) ([]repository.Reminder, error) {
	if filter.Status != "" && !domain.IsKnownStatus(filter.Status) {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.Priority != "" && !domain.IsKnownPriority(filter.Priority) {
		return nil, apperr.Validation(fmt.Sprintf("unknown priority %q", filter.Priority))
	}

	if _, err := s.repo.SweepOverdueForUser(ctx, userID, s.now()); err != nil {
		return nil, err
	}

	return s.repo.List(ctx, userID, filter)
}

// MarkComplete closes an active reminder.
func (s *Service) MarkComplete(ctx context.Context, userID, id uuid.UUID) (repository.Reminder, error) {
	return s.repo.MarkComplete(ctx, userID, id, s.now())
}

// Cancel closes an active reminder without completing it.
func (s *Service) Cancel(ctx context.Context, userID, id uuid.UUID) (repository.Reminder, error) {
	return s.repo.Cancel(ctx, userID, id, s.now())
}

// UpdateDate reschedules an active reminder. An overdue reminder moved to a
// future date reverts to pending.
func (s *Service) UpdateDate(ctx context.Context, userID, id uuid.UUID, newDate time.Time) (repository.Reminder, error) {
	if newDate.IsZero() {
		return repository.Reminder{}, apperr.Validation("reminderDate is required")
	}
	return s.repo.UpdateDate(ctx, userID, id, newDate, s.now())
}

// ShouldCreateFollowup decides whether a thread needs a reminder. It never
// returns an error: lookup failures are logged and degrade to false.
func (s *Service) ShouldCreateFollowup(ctx context.Context, userID uuid.UUID, threadID string) bool {
	if _, err := s.repo.FindActive(ctx, userID, threadID); err == nil {
		return false
	} else if !apperr.Is(err, apperr.KindNotFound) {
		s.log.Warn("follow-up detection skipped, reminder lookup failed", "userId", userID, "threadId", threadID, "error", err)
		return false
	}

	thread, err := s.mailbox.GetThread(ctx, threadID)
	if err != nil {
		s.log.ExternalServiceError("mailbox", "get_thread", err)
		return false
	}

	last := thread.LastMessage()
	if last.From == "" {
		return false
	}

	userEmail, err := s.users.GetUserEmail(ctx, userID)
	if err != nil {
		s.log.Warn("follow-up detection skipped, user email lookup failed", "userId", userID, "error", err)
		return false
	}
	if userEmail != "" && strings.Contains(strings.ToLower(last.From), strings.ToLower(userEmail)) {
		// The user spoke last; nothing to chase.
		return false
	}

	return domain.NeedsFollowup(thread.Subject, last.Body)
}

// CheckAndNotify is scheduler step one: read the due set once, emit one
// notification per due reminder, then flip every still-pending member of the
// set to overdue in one batched update. Per-reminder failures are counted,
// never propagated.
func (s *Service) CheckAndNotify(ctx context.Context) CheckStats {
	now := s.now()
	stats := CheckStats{}

	due, err := s.repo.ListDue(ctx, now)
	if err != nil {
		s.log.Error("overdue sweep failed to read due set", "error", err)
		stats.Errors++
		return stats
	}
	stats.Checked = len(due)

	var pendingIDs []uuid.UUID
	notifiedByUser := make(map[uuid.UUID][]repository.Reminder)
	for _, rem := range due {
		// Reminders already overdue were notified on a previous run.
		if rem.Status != domain.StatusPending {
			continue
		}
		pendingIDs = append(pendingIDs, rem.ID)

		if err := s.notifier.CreateNotification(ctx, ports.NotificationParams{
			UserID:    rem.UserID,
			Type:      "followup_overdue",
			Title:     "Opfølgning forfalden",
			Message:   fmt.Sprintf("Påmindelsen \"%s\" er forfalden.", rem.Title),
			ActionURL: fmt.Sprintf("%s/inbox/%s", s.notifCfg.GetAppBaseURL(), rem.ThreadID),
			Metadata: map[string]string{
				"reminderId": rem.ID.String(),
				"threadId":   rem.ThreadID,
			},
		}); err != nil {
			s.log.ExternalServiceError("notifications", "create_notification", err)
			stats.Errors++
			continue
		}
		stats.Notified++
		notifiedByUser[rem.UserID] = append(notifiedByUser[rem.UserID], rem)

		if s.bus != nil {
			s.bus.Publish(ctx, events.ReminderOverdue{
				BaseEvent:  events.NewBaseEvent(),
				ReminderID: rem.ID,
				UserID:     rem.UserID,
				ThreadID:   rem.ThreadID,
			})
		}
	}

	flipped, err := s.repo.MarkOverdue(ctx, pendingIDs, now)
	if err != nil {
		s.log.Error("overdue sweep failed to flip due set", "error", err)
		stats.Errors++
		return stats
	}
	stats.Flipped = flipped

	stats.Emailed = s.emailOverdue(ctx, notifiedByUser)

	return stats
}

// emailOverdue sends one mail per user: a single overdue reminder gets a
// direct mail, several get a digest. Failures are logged only.
func (s *Service) emailOverdue(ctx context.Context, byUser map[uuid.UUID][]repository.Reminder) int {
	if s.mailer == nil {
		return 0
	}

	emailed := 0
	for userID, reminders := range byUser {
		toEmail, err := s.users.GetUserEmail(ctx, userID)
		if err != nil || toEmail == "" {
			s.log.Warn("overdue email skipped, user email lookup failed", "userId", userID, "error", err)
			continue
		}

		baseURL := s.notifCfg.GetAppBaseURL()
		if len(reminders) == 1 {
			rem := reminders[0]
			err = s.mailer.SendOverdueReminderEmail(ctx, toEmail, rem.Title, fmt.Sprintf("%s/inbox/%s", baseURL, rem.ThreadID))
		} else {
			err = s.mailer.SendFollowupDigestEmail(ctx, toEmail, len(reminders), baseURL+"/followups")
		}
		if err != nil {
			s.log.ExternalServiceError("email", "send_overdue", err)
			continue
		}
		emailed++
	}

	return emailed
}

// AutoCreateFollowups is scheduler step two: scan each active user's recent
// threads and create reminders for positive detections. One user's failure
// never stops the others.
func (s *Service) AutoCreateFollowups(ctx context.Context) AutoCreateStats {
	stats := AutoCreateStats{}

	userIDs, err := s.users.ListActiveUsers(ctx)
	if err != nil {
		s.log.Error("auto-create failed to list users", "error", err)
		stats.Errors++
		return stats
	}
	stats.Users = len(userIDs)

	var scanned, created, failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(autoCreateConcurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			n, c, errs := s.autoCreateForUser(gctx, userID)
			scanned.Add(int64(n))
			created.Add(int64(c))
			failures.Add(int64(errs))
			return nil
		})
	}
	_ = g.Wait()

	stats.Scanned = int(scanned.Load())
	stats.Created = int(created.Load())
	stats.Errors += int(failures.Load())

	return stats
}

func (s *Service) autoCreateForUser(ctx context.Context, userID uuid.UUID) (scanned, created, failures int) {
	since := s.now().AddDate(0, 0, -s.cfg.GetThreadScanWindowDays())
	threads, err := s.mailbox.ListRecentThreads(ctx, userID, since, s.cfg.GetThreadScanMaxThreads())
	if err != nil {
		s.log.ExternalServiceError("mailbox", "list_recent_threads", err)
		return 0, 0, 1
	}

	for _, summary := range threads {
		scanned++
		if !s.ShouldCreateFollowup(ctx, userID, summary.ID) {
			continue
		}

		title := summary.Subject
		if title == "" {
			title = "Følg op på tråd"
		}

		if _, err := s.Create(ctx, CreateReminderParams{
			UserID:       userID,
			ThreadID:     summary.ID,
			Title:        title,
			Priority:     domain.PriorityNormal,
			ReminderDate: s.now().AddDate(0, 0, s.cfg.GetReminderOffsetDays()),
			AutoCreated:  true,
		}); err != nil {
			s.log.Error("auto-create reminder failed", "userId", userID, "threadId", summary.ID, "error", err)
			failures++
			continue
		}
		created++
	}

	return scanned, created, failures
}

// Cleanup is scheduler step three: purge terminal reminders older than the
// retention window. Returns the number of rows removed.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.cfg.GetReminderRetentionDays())
	deleted, err := s.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("purged terminal reminders", "deleted", deleted)
	}
	return deleted, nil
}
