// Package service implements the pipeline transition handler.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mailpilot_backend/internal/events"
	"mailpilot_backend/internal/leadsource"
	"mailpilot_backend/internal/pipeline/domain"
	"mailpilot_backend/internal/pipeline/ports"
	"mailpilot_backend/internal/pipeline/repository"
	"mailpilot_backend/platform/apperr"
	"mailpilot_backend/platform/config"
	"mailpilot_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs. Implemented by
// repository.Repository; tests provide an in-memory fake.
type Store interface {
	GetState(ctx context.Context, userID uuid.UUID, threadID string) (repository.State, error)
	CreateState(ctx context.Context, params repository.CreateStateParams) (repository.State, error)
	UpdateStage(ctx context.Context, userID uuid.UUID, threadID, stage string) error
	SetCalendarEventID(ctx context.Context, userID uuid.UUID, threadID, eventID string) (bool, error)
	SetInvoiceID(ctx context.Context, userID uuid.UUID, threadID, invoiceID string) (bool, error)
	AppendTransition(ctx context.Context, params repository.AppendTransitionParams) error
	ListTransitions(ctx context.Context, userID uuid.UUID, threadID string) ([]repository.Transition, error)
}

// Result reports what a transition did. SideEffectError carries a reported
// (non-fatal) calendar/invoice failure; the stage itself still advanced.
type Result struct {
	Applied         bool    `json:"applied"`
	FromStage       string  `json:"fromStage,omitempty"`
	ToStage         string  `json:"toStage,omitempty"`
	CalendarEventID *string `json:"calendarEventId,omitempty"`
	InvoiceID       *string `json:"invoiceId,omitempty"`
	SideEffectError string  `json:"sideEffectError,omitempty"`
}

// Service coordinates pipeline transitions and their side effects.
type Service struct {
	repo     Store
	threads  ports.ThreadReader
	calendar ports.CalendarWriter
	invoices ports.InvoiceWriter
	bus      events.Bus
	cfg      config.PipelineConfig
	log      *logger.Logger

	// Serializes transitions per (userID, threadID) so concurrent calls
	// cannot race on the idempotency check-then-set.
	locks sync.Map

	now func() time.Time
}

// New creates the pipeline service.
func New(repo Store, threads ports.ThreadReader, calendar ports.CalendarWriter, invoices ports.InvoiceWriter, bus events.Bus, cfg config.PipelineConfig, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		threads:  threads,
		calendar: calendar,
		invoices: invoices,
		bus:      bus,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// IngestThread creates the pipeline state row for a newly seen thread,
// classified by source and task type. Re-ingesting an already tracked thread
// returns the existing state unchanged.
func (s *Service) IngestThread(ctx context.Context, userID uuid.UUID, threadID string) (repository.State, error) {
	if userID == uuid.Nil || threadID == "" {
		return repository.State{}, apperr.Validation("userId and threadId are required")
	}

	thread, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		return repository.State{}, apperr.External("fetch thread for ingestion failed", err).WithOp("pipeline.ingest")
	}

	first := ports.Message{}
	if len(thread.Messages) > 0 {
		first = thread.Messages[0]
	}

	detection := leadsource.Detect(first.From, thread.Subject, first.Body)
	taskType := domain.ClassifyTaskType(thread.Subject, first.Body)

	return s.repo.CreateState(ctx, repository.CreateStateParams{
		UserID:           userID,
		ThreadID:         threadID,
		Stage:            domain.StageNeedsAction,
		TaskType:         taskType,
		Source:           detection.Source,
		SourceConfidence: detection.Confidence,
	})
}

// GetState returns the pipeline state for a thread.
func (s *Service) GetState(ctx context.Context, userID uuid.UUID, threadID string) (repository.State, error) {
	return s.repo.GetState(ctx, userID, threadID)
}

// ListTransitions returns the transition log for a thread.
func (s *Service) ListTransitions(ctx context.Context, userID uuid.UUID, threadID string) ([]repository.Transition, error) {
	return s.repo.ListTransitions(ctx, userID, threadID)
}

// Transition moves a thread to newStage and executes the stage's side effect
// exactly once. A missing state row is a no-op with a warning, not an error:
// state rows are created on thread ingestion, never fabricated here.
// Side-effect failures are reported in the Result but do not block the stage
// from advancing; re-invoking the same transition retries only the missing
// side effect.
func (s *Service) Transition(ctx context.Context, userID uuid.UUID, threadID, newStage, transitionedBy string) (Result, error) {
	if !domain.IsKnownStage(newStage) {
		return Result{}, apperr.Validation(fmt.Sprintf("unknown pipeline stage %q", newStage))
	}
	if userID == uuid.Nil || threadID == "" {
		return Result{}, apperr.Validation("userId and threadId are required")
	}

	unlock := s.lockThread(userID, threadID)
	defer unlock()

	state, err := s.repo.GetState(ctx, userID, threadID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("transition for untracked thread ignored", "userId", userID, "threadId", threadID, "stage", newStage)
			return Result{Applied: false}, nil
		}
		return Result{}, err
	}

	fromStage := state.Stage

	// The log row records intent and is appended before the side effect
	// runs, so the audit trail survives side-effect failures.
	if err := s.repo.AppendTransition(ctx, repository.AppendTransitionParams{
		UserID:         userID,
		ThreadID:       threadID,
		FromStage:      fromStage,
		ToStage:        newStage,
		TransitionedBy: transitionedBy,
		Reason:         fmt.Sprintf("stage change %s -> %s", fromStage, newStage),
	}); err != nil {
		return Result{}, err
	}

	result := Result{Applied: true, FromStage: fromStage, ToStage: newStage}

	var sideEffectErr error
	switch newStage {
	case domain.StageInCalendar:
		sideEffectErr = s.ensureCalendarEvent(ctx, &state, &result)
	case domain.StageFinance:
		sideEffectErr = s.ensureInvoice(ctx, &state, &result)
	}

	if sideEffectErr != nil {
		result.SideEffectError = sideEffectErr.Error()
	}

	// The business stage reflects user intent; it advances regardless of
	// the side-effect outcome.
	if err := s.repo.UpdateStage(ctx, userID, threadID, newStage); err != nil {
		return Result{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.PipelineStageChanged{
			BaseEvent:        events.NewBaseEvent(),
			UserID:           userID,
			ThreadID:         threadID,
			FromStage:        fromStage,
			ToStage:          newStage,
			SideEffectFailed: sideEffectErr != nil,
		})
	}

	return result, nil
}

// ensureCalendarEvent creates the calendar event for a thread entering
// i_kalender, unless the idempotency anchor shows it was already created.
func (s *Service) ensureCalendarEvent(ctx context.Context, state *repository.State, result *Result) error {
	if state.CalendarEventID != nil {
		result.CalendarEventID = state.CalendarEventID
		return nil
	}

	callCtx, cancel := s.sideEffectContext(ctx)
	defer cancel()

	thread, err := s.threads.GetThread(callCtx, state.ThreadID)
	if err != nil {
		s.log.ExternalServiceError("mailbox", "get_thread", err)
		return apperr.External("fetch thread for calendar event failed", err)
	}

	body := thread.LastMessage().Body
	start, end := domain.ExtractEventWindow(body, s.now(), s.cfg.GetDefaultEventDuration())

	customer := displayName(firstSender(thread))
	summary := fmt.Sprintf("%s %s", domain.TaskTypeEmoji(state.TaskType), customer)

	eventID, err := s.calendar.CreateEvent(callCtx, ports.CreateEventParams{
		Summary:     summary,
		Description: thread.Subject,
		Start:       start,
		End:         end,
	})
	if err != nil {
		s.log.ExternalServiceError("calendar", "create_event", err)
		return apperr.External("create calendar event failed", err)
	}

	if _, err := s.repo.SetCalendarEventID(ctx, state.UserID, state.ThreadID, eventID); err != nil {
		return err
	}

	result.CalendarEventID = &eventID
	return nil
}

// ensureInvoice creates the invoice draft for a thread entering finance,
// unless the idempotency anchor shows it was already created. No invoice is
// created blind: an unresolvable customer aborts with a reported NotFound.
func (s *Service) ensureInvoice(ctx context.Context, state *repository.State, result *Result) error {
	if state.InvoiceID != nil {
		result.InvoiceID = state.InvoiceID
		return nil
	}

	callCtx, cancel := s.sideEffectContext(ctx)
	defer cancel()

	thread, err := s.threads.GetThread(callCtx, state.ThreadID)
	if err != nil {
		s.log.ExternalServiceError("mailbox", "get_thread", err)
		return apperr.External("fetch thread for invoice failed", err)
	}

	customerEmail := emailAddress(firstSender(thread))
	if customerEmail == "" {
		return apperr.NotFound("no sender address on thread")
	}

	contactID, err := s.invoices.FindCustomerByEmail(callCtx, customerEmail)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("invoice skipped, customer not found", "userId", state.UserID, "threadId", state.ThreadID, "email", customerEmail)
			return apperr.NotFound(fmt.Sprintf("no customer for %s", customerEmail))
		}
		s.log.ExternalServiceError("billing", "find_customer", err)
		return apperr.External("resolve customer failed", err)
	}

	hours, found := domain.ExtractHours(thread.LastMessage().Body)
	if !found {
		hours = 2
	}

	invoiceID, err := s.invoices.CreateInvoice(callCtx, ports.CreateInvoiceParams{
		ContactID:        contactID,
		EntryDate:        s.now(),
		PaymentTermsDays: s.cfg.GetPaymentTermsDays(),
		Lines: []ports.InvoiceLine{{
			Description:    fmt.Sprintf("%s, %.1f timer", thread.Subject, hours),
			Quantity:       hours,
			UnitPriceCents: s.cfg.GetHourlyRateCents(),
			ProductID:      domain.TaskTypeProductID(state.TaskType),
		}},
	})
	if err != nil {
		s.log.ExternalServiceError("billing", "create_invoice", err)
		return apperr.External("create invoice failed", err)
	}

	if _, err := s.repo.SetInvoiceID(ctx, state.UserID, state.ThreadID, invoiceID); err != nil {
		return err
	}

	result.InvoiceID = &invoiceID
	return nil
}

func (s *Service) sideEffectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.GetSideEffectTimeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) lockThread(userID uuid.UUID, threadID string) func() {
	key := userID.String() + "/" + threadID
	value, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// firstSender returns the From address of the thread's first message, which
// is the customer on inbound leads.
func firstSender(thread ports.Thread) string {
	if len(thread.Messages) == 0 {
		return ""
	}
	return thread.Messages[0].From
}

// displayName extracts the human name from an RFC 5322 style address
// ("Anna Jensen <anna@example.dk>"), falling back to the local part.
func displayName(address string) string {
	address = strings.TrimSpace(address)
	if idx := strings.Index(address, "<"); idx > 0 {
		name := strings.Trim(strings.TrimSpace(address[:idx]), `"`)
		if name != "" {
			return name
		}
	}
	email := emailAddress(address)
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// emailAddress extracts the bare address from an RFC 5322 style address.
func emailAddress(address string) string {
	address = strings.TrimSpace(address)
	start := strings.Index(address, "<")
	end := strings.LastIndex(address, ">")
	if start >= 0 && end > start {
		return strings.TrimSpace(address[start+1 : end])
	}
	return address
}
