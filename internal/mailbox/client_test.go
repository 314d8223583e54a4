package mailbox

import (
	"context"
	"testing"
	"time"

	"mailpilot_backend/platform/apperr"
	"mailpilot_backend/platform/logger"

	imap "github.com/BrianLeishman/go-imap"
	"github.com/google/uuid"
)

type fakeDialer struct {
	emails map[int]*imap.Email
	// uidsBySearch maps an IMAP search string to the matching UIDs.
	uidsBySearch map[string][]int
	closed       bool
}

func (f *fakeDialer) SelectFolder(string) error { return nil }

func (f *fakeDialer) GetUIDs(search string) ([]int, error) {
	return f.uidsBySearch[search], nil
}

func (f *fakeDialer) GetEmails(uids ...int) (map[int]*imap.Email, error) {
	out := make(map[int]*imap.Email, len(uids))
	for _, uid := range uids {
		if email, ok := f.emails[uid]; ok {
			out[uid] = email
		}
	}
	return out, nil
}

func (f *fakeDialer) GetOverviews(uids ...int) (map[int]*imap.Email, error) {
	return f.GetEmails(uids...)
}

func (f *fakeDialer) Close() error {
	f.closed = true
	return nil
}

type testConfig struct{}

func (testConfig) GetIMAPHost() string     { return "imap.example.dk" }
func (testConfig) GetIMAPPort() int        { return 993 }
func (testConfig) GetIMAPUsername() string { return "test" }
func (testConfig) GetIMAPPassword() string { return "test" }
func (testConfig) IsMailboxEnabled() bool  { return true }

func newTestClient(fake *fakeDialer) *Client {
	c := NewClient(testConfig{}, logger.New("test"))
	c.dial = func() (dialer, error) { return fake, nil }
	return c
}

var baseTime = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func TestGetThreadGroupsRootAndReplies(t *testing.T) {
	fake := &fakeDialer{
		emails: map[int]*imap.Email{
			1: {
				MessageID: "<root@example.dk>",
				Subject:   "Tilbud på vinduespudsning",
				From:      imap.EmailAddresses{"kunde@example.dk": "Kirsten Kunde"},
				Text:      "Kan I komme forbi?",
				Sent:      baseTime,
			},
			2: {
				MessageID: "<reply@example.dk>",
				Subject:   "Re: Tilbud på vinduespudsning",
				From:      imap.EmailAddresses{"mig@firma.dk": ""},
				Text:      "Ja, i morgen kl. 10.",
				Sent:      baseTime.Add(2 * time.Hour),
			},
		},
		uidsBySearch: map[string][]int{
			`HEADER Message-ID "<root@example.dk>"`: {1},
			`HEADER References "<root@example.dk>"`: {1, 2},
		},
	}
	client := newTestClient(fake)

	thread, err := client.GetThread(context.Background(), "<root@example.dk>")
	if err != nil {
		t.Fatalf("GetThread() error = %v", err)
	}
	if thread.Subject != "Tilbud på vinduespudsning" {
		t.Errorf("subject = %q, want the root subject", thread.Subject)
	}
	if len(thread.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 despite the overlapping searches", len(thread.Messages))
	}
	if thread.Messages[0].From != "Kirsten Kunde <kunde@example.dk>" {
		t.Errorf("first sender = %q, want formatted name and address", thread.Messages[0].From)
	}
	if !thread.Messages[0].Date.Before(thread.Messages[1].Date) {
		t.Error("messages must be sorted oldest first")
	}
	if !fake.closed {
		t.Error("connection must be closed after the call")
	}
}

func TestGetThreadNotFound(t *testing.T) {
	client := newTestClient(&fakeDialer{uidsBySearch: map[string][]int{}})

	_, err := client.GetThread(context.Background(), "<missing@example.dk>")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("GetThread() error = %v, want not found", err)
	}
}

func TestListRecentThreadsGroupsBySubject(t *testing.T) {
	fake := &fakeDialer{
		emails: map[int]*imap.Email{
			1: {
				MessageID: "<a1@example.dk>",
				Subject:   "Faktura nr. 1110",
				Sent:      baseTime,
			},
			2: {
				MessageID: "<a2@example.dk>",
				Subject:   "Re: Faktura nr. 1110",
				Sent:      baseTime.Add(24 * time.Hour),
			},
			3: {
				MessageID: "<b1@example.dk>",
				Subject:   "Ny forespørgsel",
				Sent:      baseTime.Add(2 * time.Hour),
			},
		},
		uidsBySearch: map[string][]int{
			"SINCE 1-Feb-2026": {1, 2, 3},
		},
	}
	client := newTestClient(fake)

	summaries, err := client.ListRecentThreads(context.Background(), uuid.New(), baseTime, 10)
	if err != nil {
		t.Fatalf("ListRecentThreads() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2 (reply folded into its thread)", len(summaries))
	}

	// Newest activity first: the invoice thread got a reply a day later.
	if summaries[0].ID != "<a1@example.dk>" {
		t.Errorf("first thread id = %q, want the invoice root", summaries[0].ID)
	}
	if summaries[0].Subject != "Faktura nr. 1110" {
		t.Errorf("first thread subject = %q, want the root subject", summaries[0].Subject)
	}
	if !summaries[0].LastMessageAt.Equal(baseTime.Add(24 * time.Hour)) {
		t.Errorf("last activity = %v, want the reply time", summaries[0].LastMessageAt)
	}
	if summaries[1].ID != "<b1@example.dk>" {
		t.Errorf("second thread id = %q, want the standalone message", summaries[1].ID)
	}
}

func TestListRecentThreadsHonorsLimit(t *testing.T) {
	fake := &fakeDialer{
		emails: map[int]*imap.Email{
			1: {MessageID: "<a@example.dk>", Subject: "A", Sent: baseTime},
			2: {MessageID: "<b@example.dk>", Subject: "B", Sent: baseTime.Add(time.Hour)},
			3: {MessageID: "<c@example.dk>", Subject: "C", Sent: baseTime.Add(2 * time.Hour)},
		},
		uidsBySearch: map[string][]int{
			"SINCE 1-Feb-2026": {1, 2, 3},
		},
	}
	client := newTestClient(fake)

	summaries, err := client.ListRecentThreads(context.Background(), uuid.New(), baseTime, 2)
	if err != nil {
		t.Fatalf("ListRecentThreads() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want limit of 2", len(summaries))
	}
	if summaries[0].ID != "<c@example.dk>" {
		t.Errorf("first thread id = %q, want the newest", summaries[0].ID)
	}
}

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Re: Tilbud", "tilbud"},
		{"SV: Re: Tilbud", "tilbud"},
		{"Fwd: sv: faktura nr. 1110", "faktura nr. 1110"},
		{"Tilbud", "tilbud"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeSubject(tt.in); got != tt.want {
			t.Errorf("normalizeSubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
