package domain

import "testing"

func TestNeedsFollowup(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    bool
	}{
		{
			name:    "question mark",
			subject: "Re: Faktura nr. 1110",
			body:    "Hvornår kan jeg forvente betaling bekræftet?",
			want:    true,
		},
		{
			name:    "interrogative without question mark",
			subject: "Vinduespudsning",
			body:    "Kan du komme forbi på tirsdag og give et overslag.",
			want:    true,
		},
		{
			name:    "commercial keyword in subject",
			subject: "Tilbud på havearbejde",
			body:    "Med venlig hilsen",
			want:    true,
		},
		{
			name:    "payment keyword in body",
			subject: "Opfølgning",
			body:    "Vi mangler stadig betaling for sidste besøg.",
			want:    true,
		},
		{
			name:    "plain statement",
			subject: "Tak for sidst",
			body:    "Det var en fornøjelse. Vi ses.",
			want:    false,
		},
		{
			name:    "empty",
			subject: "",
			body:    "",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsFollowup(tt.subject, tt.body); got != tt.want {
				t.Errorf("NeedsFollowup(%q, %q) = %v, want %v", tt.subject, tt.body, got, tt.want)
			}
		})
	}
}

func TestNeedsFollowupIsDeterministic(t *testing.T) {
	subject := "Re: Forespørgsel"
	body := "Hvordan ser jeres kalender ud i næste uge?"
	first := NeedsFollowup(subject, body)
	for i := 0; i < 10; i++ {
		if NeedsFollowup(subject, body) != first {
			t.Fatal("NeedsFollowup must be deterministic for identical inputs")
		}
	}
}

func TestStatusRules(t *testing.T) {
	for _, s := range []string{StatusPending, StatusOverdue, StatusCompleted, StatusCancelled} {
		if !IsKnownStatus(s) {
			t.Errorf("IsKnownStatus(%q) = false", s)
		}
	}
	if IsKnownStatus("archived") {
		t.Error("IsKnownStatus must reject unknown statuses")
	}
	if !IsTerminalStatus(StatusCompleted) || !IsTerminalStatus(StatusCancelled) {
		t.Error("completed and cancelled must be terminal")
	}
	if IsTerminalStatus(StatusPending) || IsTerminalStatus(StatusOverdue) {
		t.Error("pending and overdue must not be terminal")
	}
	if !IsActiveStatus(StatusPending) || !IsActiveStatus(StatusOverdue) {
		t.Error("pending and overdue must count as active")
	}
	if IsActiveStatus(StatusCompleted) {
		t.Error("terminal statuses are not active")
	}
}
