package service

import (
	"context"
	"testing"
	"time"

	"mailpilot_backend/internal/pipeline/domain"
	"mailpilot_backend/internal/pipeline/ports"
	"mailpilot_backend/internal/pipeline/repository"
	"mailpilot_backend/platform/apperr"
	"mailpilot_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	states      map[string]*repository.State
	transitions []repository.Transition
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: make(map[string]*repository.State)}
}

func stateKey(userID uuid.UUID, threadID string) string {
	return userID.String() + "/" + threadID
}

func (f *fakeStore) GetState(_ context.Context, userID uuid.UUID, threadID string) (repository.State, error) {
	st, ok := f.states[stateKey(userID, threadID)]
	if !ok {
		return repository.State{}, apperr.NotFound("pipeline state not found")
	}
	return *st, nil
}

func (f *fakeStore) CreateState(_ context.Context, p repository.CreateStateParams) (repository.State, error) {
	key := stateKey(p.UserID, p.ThreadID)
	if existing, ok := f.states[key]; ok {
		return *existing, nil
	}
	st := &repository.State{
		UserID:           p.UserID,
		ThreadID:         p.ThreadID,
		Stage:            p.Stage,
		TaskType:         p.TaskType,
		Source:           p.Source,
		SourceConfidence: p.SourceConfidence,
	}
	f.states[key] = st
	return *st, nil
}

func (f *fakeStore) UpdateStage(_ context.Context, userID uuid.UUID, threadID, stage string) error {
	f.states[stateKey(userID, threadID)].Stage = stage
	return nil
}

func (f *fakeStore) SetCalendarEventID(_ context.Context, userID uuid.UUID, threadID, eventID string) (bool, error) {
	st := f.states[stateKey(userID, threadID)]
	if st.CalendarEventID != nil {
		return false, nil
	}
	st.CalendarEventID = &eventID
	return true, nil
}

func (f *fakeStore) SetInvoiceID(_ context.Context, userID uuid.UUID, threadID, invoiceID string) (bool, error) {
	st := f.states[stateKey(userID, threadID)]
	if st.InvoiceID != nil {
		return false, nil
	}
	st.InvoiceID = &invoiceID
	return true, nil
}

func (f *fakeStore) AppendTransition(_ context.Context, p repository.AppendTransitionParams) error {
	f.transitions = append(f.transitions, repository.Transition{
		UserID:         p.UserID,
		ThreadID:       p.ThreadID,
		FromStage:      p.FromStage,
		ToStage:        p.ToStage,
		TransitionedBy: p.TransitionedBy,
		Reason:         p.Reason,
	})
	return nil
}

func (f *fakeStore) ListTransitions(_ context.Context, userID uuid.UUID, threadID string) ([]repository.Transition, error) {
	var out []repository.Transition
	for _, tr := range f.transitions {
		if tr.UserID == userID && tr.ThreadID == threadID {
			out = append(out, tr)
		}
	}
	return out, nil
}

type fakeThreads struct {
	thread ports.Thread
	err    error
}

func (f *fakeThreads) GetThread(_ context.Context, _ string) (ports.Thread, error) {
	if f.err != nil {
		return ports.Thread{}, f.err
	}
	return f.thread, nil
}

type fakeCalendar struct {
	calls   int
	eventID string
	err     error
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _ ports.CreateEventParams) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.eventID, nil
}

type fakeBilling struct {
	findCalls   int
	createCalls int
	contactID   string
	findErr     error
	invoiceID   string
	lastParams  ports.CreateInvoiceParams
}

func (f *fakeBilling) FindCustomerByEmail(_ context.Context, _ string) (string, error) {
	f.findCalls++
	if f.findErr != nil {
		return "", f.findErr
	}
	return f.contactID, nil
}

func (f *fakeBilling) CreateInvoice(_ context.Context, p ports.CreateInvoiceParams) (string, error) {
	f.createCalls++
	f.lastParams = p
	return f.invoiceID, nil
}

type testConfig struct{}

func (testConfig) GetHourlyRateCents() int64              { return 45000 }
func (testConfig) GetPaymentTermsDays() int               { return 8 }
func (testConfig) GetDefaultEventDuration() time.Duration { return 2 * time.Hour }
func (testConfig) GetSideEffectTimeout() time.Duration    { return 5 * time.Second }

func testThread() ports.Thread {
	return ports.Thread{
		ID:      "thread-1",
		Subject: "Tilbud på vinduespudsning",
		Messages: []ports.Message{{
			From: "Anna Jensen <anna@example.dk>",
			Body: "Hej, kan I komme i morgen kl. 10? Det tager nok 3 timer.",
			Date: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		}},
	}
}

func newTestService(store *fakeStore, threads *fakeThreads, cal *fakeCalendar, bill *fakeBilling) *Service {
	svc := New(store, threads, cal, bill, nil, testConfig{}, logger.New("test"))
	svc.SetClock(func() time.Time {
		return time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	})
	return svc
}

func seedState(store *fakeStore, userID uuid.UUID) {
	store.states[stateKey(userID, "thread-1")] = &repository.State{
		UserID:   userID,
		ThreadID: "thread-1",
		Stage:    domain.StageNeedsAction,
		TaskType: domain.TaskTypeWindowCleaning,
	}
}

func TestTransitionUnknownStageRejected(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeThreads{}, &fakeCalendar{}, &fakeBilling{})

	_, err := svc.Transition(context.Background(), uuid.New(), "thread-1", "bogus_stage", "user")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransitionUntrackedThreadIsNoOp(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeThreads{}, &fakeCalendar{}, &fakeBilling{})

	res, err := svc.Transition(context.Background(), uuid.New(), "missing", domain.StageAwaitingReply, "user")
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if res.Applied {
		t.Error("expected Applied=false for untracked thread")
	}
	if len(store.transitions) != 0 {
		t.Errorf("expected no transition rows, got %d", len(store.transitions))
	}
}

func TestTransitionToCalendarCreatesEventOnce(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	seedState(store, userID)
	cal := &fakeCalendar{eventID: "evt-123"}
	svc := newTestService(store, &fakeThreads{thread: testThread()}, cal, &fakeBilling{})

	res, err := svc.Transition(context.Background(), userID, "thread-1", domain.StageInCalendar, "user")
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if res.CalendarEventID == nil || *res.CalendarEventID != "evt-123" {
		t.Fatalf("CalendarEventID = %v, want evt-123", res.CalendarEventID)
	}

	// Repeating the same transition must not create a second event.
	if _, err := svc.Transition(context.Background(), userID, "thread-1", domain.StageInCalendar, "user"); err != nil {
		t.Fatalf("second Transition() error = %v", err)
	}
	if cal.calls != 1 {
		t.Errorf("CreateEvent calls = %d, want 1", cal.calls)
	}
	if len(store.transitions) != 2 {
		t.Errorf("transition rows = %d, want 2", len(store.transitions))
	}
}

func TestTransitionCalendarFailureStillAdvancesStage(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	seedState(store, userID)
	cal := &fakeCalendar{err: apperr.External("calendar down", nil)}
	svc := newTestService(store, &fakeThreads{thread: testThread()}, cal, &fakeBilling{})

	res, err := svc.Transition(context.Background(), userID, "thread-1", domain.StageInCalendar, "user")
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if res.SideEffectError == "" {
		t.Error("expected SideEffectError to be reported")
	}

	st, _ := store.GetState(context.Background(), userID, "thread-1")
	if st.Stage != domain.StageInCalendar {
		t.Errorf("stage = %q, want %q", st.Stage, domain.StageInCalendar)
	}
	if st.CalendarEventID != nil {
		t.Error("anchor must stay unset after failed side effect")
	}

	// Retry with the calendar healthy creates exactly one event.
	cal.err = nil
	cal.eventID = "evt-retry"
	if _, err := svc.Transition(context.Background(), userID, "thread-1", domain.StageInCalendar, "user"); err != nil {
		t.Fatalf("retry Transition() error = %v", err)
	}
	st, _ = store.GetState(context.Background(), userID, "thread-1")
	if st.CalendarEventID == nil || *st.CalendarEventID != "evt-retry" {
		t.Errorf("CalendarEventID = %v, want evt-retry", st.CalendarEventID)
	}
}

func TestTransitionToFinanceCustomerNotFound(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	seedState(store, userID)
	bill := &fakeBilling{findErr: apperr.NotFound("no customer")}
	svc := newTestService(store, &fakeThreads{thread: testThread()}, &fakeCalendar{}, bill)

	res, err := svc.Transition(context.Background(), userID, "thread-1", domain.StageFinance, "user")
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if res.SideEffectError == "" {
		t.Error("expected SideEffectError for missing customer")
	}
	if bill.createCalls != 0 {
		t.Errorf("CreateInvoice calls = %d, want 0", bill.createCalls)
	}

	st, _ := store.GetState(context.Background(), userID, "thread-1")
	if st.Stage != domain.StageFinance {
		t.Errorf("stage = %q, want %q", st.Stage, domain.StageFinance)
	}

	// The customer is created in billing later; re-invoking the transition
	// now produces exactly one invoice.
	bill.findErr = nil
	bill.contactID = "contact-1"
	bill.invoiceID = "inv-1"
	res, err = svc.Transition(context.Background(), userID, "thread-1", domain.StageFinance, "user")
	if err != nil {
		t.Fatalf("retry Transition() error = %v", err)
	}
	if res.InvoiceID == nil || *res.InvoiceID != "inv-1" {
		t.Fatalf("InvoiceID = %v, want inv-1", res.InvoiceID)
	}
	if bill.createCalls != 1 {
		t.Errorf("CreateInvoice calls = %d, want 1", bill.createCalls)
	}

	// Third call skips the side effect entirely.
	if _, err := svc.Transition(context.Background(), userID, "thread-1", domain.StageFinance, "user"); err != nil {
		t.Fatalf("third Transition() error = %v", err)
	}
	if bill.createCalls != 1 {
		t.Errorf("CreateInvoice calls after third transition = %d, want 1", bill.createCalls)
	}
}

func TestTransitionFinanceInvoiceLine(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	seedState(store, userID)
	bill := &fakeBilling{contactID: "contact-1", invoiceID: "inv-1"}
	svc := newTestService(store, &fakeThreads{thread: testThread()}, &fakeCalendar{}, bill)

	if _, err := svc.Transition(context.Background(), userID, "thread-1", domain.StageFinance, "user"); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	if len(bill.lastParams.Lines) != 1 {
		t.Fatalf("invoice lines = %d, want 1", len(bill.lastParams.Lines))
	}
	line := bill.lastParams.Lines[0]
	if line.Quantity != 3 {
		t.Errorf("quantity = %v, want 3 (from \"3 timer\")", line.Quantity)
	}
	if line.UnitPriceCents != 45000 {
		t.Errorf("unit price = %d, want 45000", line.UnitPriceCents)
	}
	if bill.lastParams.PaymentTermsDays != 8 {
		t.Errorf("payment terms = %d, want 8", bill.lastParams.PaymentTermsDays)
	}
}

func TestIngestThreadClassifiesAndIsIdempotent(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	svc := newTestService(store, &fakeThreads{thread: testThread()}, &fakeCalendar{}, &fakeBilling{})

	st, err := svc.IngestThread(context.Background(), userID, "thread-1")
	if err != nil {
		t.Fatalf("IngestThread() error = %v", err)
	}
	if st.Stage != domain.StageNeedsAction {
		t.Errorf("stage = %q, want %q", st.Stage, domain.StageNeedsAction)
	}
	if st.TaskType != domain.TaskTypeWindowCleaning {
		t.Errorf("taskType = %q, want %q", st.TaskType, domain.TaskTypeWindowCleaning)
	}

	again, err := svc.IngestThread(context.Background(), userID, "thread-1")
	if err != nil {
		t.Fatalf("second IngestThread() error = %v", err)
	}
	if again.Stage != st.Stage || again.TaskType != st.TaskType {
		t.Error("re-ingestion must return the existing state unchanged")
	}
	if len(store.states) != 1 {
		t.Errorf("state rows = %d, want 1", len(store.states))
	}
}
