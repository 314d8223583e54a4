package domain

import (
	"testing"
	"time"
)

// Wednesday 2026-01-07 10:00 UTC, a mid-week reference point.
var heuristicsNow = time.Date(2026, time.January, 7, 10, 0, 0, 0, time.UTC)

func TestExtractEventWindowExplicitDateAndTime(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantStart time.Time
	}{
		{
			name:      "numeric date with kl time",
			body:      "Vi kommer d. 15/1 kl. 14 og pudser vinduerne",
			wantStart: time.Date(2026, time.January, 15, 14, 0, 0, 0, time.UTC),
		},
		{
			name:      "numeric date with minutes",
			body:      "Aftalt til 20-01-2026 kl 9.30",
			wantStart: time.Date(2026, time.January, 20, 9, 30, 0, 0, time.UTC),
		},
		{
			name:      "date without time defaults to ten",
			body:      "Kan I komme den 12/2?",
			wantStart: time.Date(2026, time.February, 12, 10, 0, 0, 0, time.UTC),
		},
		{
			name:      "passed day month rolls to next year",
			body:      "Som aftalt den 3/1",
			wantStart: time.Date(2027, time.January, 3, 10, 0, 0, 0, time.UTC),
		},
		{
			name:      "tomorrow keyword",
			body:      "Vi ses i morgen kl. 8",
			wantStart: time.Date(2026, time.January, 8, 8, 0, 0, 0, time.UTC),
		},
		{
			name:      "weekday name picks next occurrence",
			body:      "Fredag passer fint",
			wantStart: time.Date(2026, time.January, 9, 10, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end := ExtractEventWindow(tc.body, heuristicsNow, 2*time.Hour)
			if !start.Equal(tc.wantStart) {
				t.Errorf("start = %v, want %v", start, tc.wantStart)
			}
			if got := end.Sub(start); got != 2*time.Hour {
				t.Errorf("duration = %v, want 2h", got)
			}
		})
	}
}

func TestExtractEventWindowDefaultsToNextBusinessDay(t *testing.T) {
	// Friday afternoon: next business day is Monday.
	friday := time.Date(2026, time.January, 9, 15, 0, 0, 0, time.UTC)

	start, end := ExtractEventWindow("Tak for snakken, vi vender tilbage", friday, 2*time.Hour)

	want := time.Date(2026, time.January, 12, 10, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("start = %v, want next business day %v", start, want)
	}
	if end.Sub(start) != 2*time.Hour {
		t.Errorf("duration = %v, want 2h", end.Sub(start))
	}
}

func TestExtractEventWindowIsDeterministic(t *testing.T) {
	body := "Vi kommer torsdag kl. 13"
	s1, e1 := ExtractEventWindow(body, heuristicsNow, time.Hour)
	s2, e2 := ExtractEventWindow(body, heuristicsNow, time.Hour)
	if !s1.Equal(s2) || !e1.Equal(e2) {
		t.Errorf("same input produced different windows: (%v,%v) vs (%v,%v)", s1, e1, s2, e2)
	}
}

func TestExtractEventWindowFirstWeekdayMentionWins(t *testing.T) {
	// Tuesday 2026-02-10. The body names two weekdays; the first mention
	// must win on every call so retries anchor the same calendar event.
	tuesday := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)
	body := "Kan du komme mandag eller fredag?"

	want := time.Date(2026, time.February, 16, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		start, _ := ExtractEventWindow(body, tuesday, 2*time.Hour)
		if !start.Equal(want) {
			t.Fatalf("call %d: start = %v, want %v", i, start, want)
		}
	}
}

func TestExtractHours(t *testing.T) {
	tests := []struct {
		body      string
		want      float64
		wantFound bool
	}{
		{"Arbejdet tog 3 timer i alt", 3, true},
		{"Det tog 2,5 timer", 2.5, true},
		{"1 time med stigen", 1, true},
		{"Faktura for vinduespudsning", 0, false},
		{"", 0, false},
		{"0 timer", 0, false},
	}

	for _, tc := range tests {
		got, found := ExtractHours(tc.body)
		if found != tc.wantFound || got != tc.want {
			t.Errorf("ExtractHours(%q) = (%v, %v), want (%v, %v)", tc.body, got, found, tc.want, tc.wantFound)
		}
	}
}

func TestNextBusinessDaySkipsWeekend(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Weekday
	}{
		{"friday to monday", time.Date(2026, time.January, 9, 12, 0, 0, 0, time.UTC), time.Monday},
		{"saturday to monday", time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC), time.Monday},
		{"wednesday to thursday", time.Date(2026, time.January, 7, 12, 0, 0, 0, time.UTC), time.Thursday},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextBusinessDay(tc.now); got.Weekday() != tc.want {
				t.Errorf("NextBusinessDay(%v).Weekday() = %v, want %v", tc.now, got.Weekday(), tc.want)
			}
		})
	}
}

func TestStageEnumeration(t *testing.T) {
	for _, stage := range []string{StageNeedsAction, StageAwaitingReply, StageInCalendar, StageFinance, StageClosed} {
		if !IsKnownStage(stage) {
			t.Errorf("IsKnownStage(%q) = false", stage)
		}
	}
	if IsKnownStage("archived") {
		t.Error("IsKnownStage accepted an unknown stage")
	}
	if !IsTerminalStage(StageClosed) {
		t.Error("afsluttet should be terminal")
	}
	if IsTerminalStage(StageFinance) {
		t.Error("finance should not be terminal")
	}
}
