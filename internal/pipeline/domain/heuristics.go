package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Free-text heuristics over Danish email bodies. These are deliberately
// simple, deterministic, and isolated from the transition logic so they can
// be swapped for a smarter classifier without touching state-machine code.

var (
	// "12/5", "12-05", "12.5.2026"
	datePattern = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})(?:[/.\-](\d{2,4}))?\b`)

	// "kl. 14", "kl 14:30", "kl. 9.15"
	timePattern = regexp.MustCompile(`(?i)\bkl\.?\s*(\d{1,2})(?:[.:](\d{2}))?\b`)

	// "3 timer", "2,5 timer", "1 time"
	hoursPattern = regexp.MustCompile(`(?i)\b(\d{1,2}(?:[.,]\d{1,2})?)\s*tim(?:er?)\b`)
)

var weekdayNames = []struct {
	name string
	day  time.Weekday
}{
	{"mandag", time.Monday},
	{"tirsdag", time.Tuesday},
	{"onsdag", time.Wednesday},
	{"torsdag", time.Thursday},
	{"fredag", time.Friday},
	{"lørdag", time.Saturday},
	{"lordag", time.Saturday},
	{"søndag", time.Sunday},
	{"sondag", time.Sunday},
}

const defaultEventHour = 10

// ExtractEventWindow derives a calendar event window from an email body.
// It looks for an explicit date (numeric, "i morgen" or a weekday name) and
// an explicit "kl." time. When no date is found the window defaults to the
// next business day at 10:00 with the given duration.
func ExtractEventWindow(body string, now time.Time, duration time.Duration) (time.Time, time.Time) {
	if duration <= 0 {
		duration = 2 * time.Hour
	}

	day, dayFound := extractDay(body, now)
	if !dayFound {
		day = NextBusinessDay(now)
	}

	hour, minute := defaultEventHour, 0
	if m := timePattern.FindStringSubmatch(body); m != nil {
		if h, err := strconv.Atoi(m[1]); err == nil && h < 24 {
			hour = h
			if m[2] != "" {
				if mm, err := strconv.Atoi(m[2]); err == nil && mm < 60 {
					minute = mm
				}
			}
		}
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
	return start, start.Add(duration)
}

func extractDay(body string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(body)

	if strings.Contains(lower, "i overmorgen") {
		return now.AddDate(0, 0, 2), true
	}
	if strings.Contains(lower, "i morgen") {
		return now.AddDate(0, 0, 1), true
	}

	if m := datePattern.FindStringSubmatch(body); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
			year := now.Year()
			if m[3] != "" {
				if y, err := strconv.Atoi(m[3]); err == nil {
					if y < 100 {
						y += 2000
					}
					year = y
				}
			}
			candidate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
			// A day/month without a year that already passed means next year.
			if m[3] == "" && candidate.Before(now.Truncate(24*time.Hour)) {
				candidate = candidate.AddDate(1, 0, 0)
			}
			return candidate, true
		}
	}

	// When several weekdays are named, the one mentioned first wins.
	first, firstIdx := time.Weekday(-1), len(lower)
	for _, w := range weekdayNames {
		if idx := strings.Index(lower, w.name); idx >= 0 && idx < firstIdx {
			first, firstIdx = w.day, idx
		}
	}
	if firstIdx < len(lower) {
		return nextWeekday(now, first), true
	}

	return time.Time{}, false
}

// nextWeekday returns the next occurrence of the given weekday strictly after now.
func nextWeekday(now time.Time, weekday time.Weekday) time.Time {
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return now.AddDate(0, 0, days)
}

// NextBusinessDay returns the next weekday strictly after now.
func NextBusinessDay(now time.Time) time.Time {
	day := now.AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// ExtractHours pulls an hours-worked figure ("3 timer", "2,5 timer") out of
// an email body. The second return value reports whether a figure was found;
// callers apply their own default when it is false.
func ExtractHours(body string) (float64, bool) {
	m := hoursPattern.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}

	raw := strings.ReplaceAll(m[1], ",", ".")
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil || hours <= 0 {
		return 0, false
	}

	return hours, true
}
