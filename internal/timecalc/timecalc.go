package timecalc

import (
	"fmt"
	"time"

	"github.com/Tiliavir/punch-clock/internal/model"
)

// DateLayout is the persisted calendar-date format.
const DateLayout = "2006-01-02"

// MonthLayout is the format accepted for month selections.
const MonthLayout = "2006-01"

// DateKey formats t as "YYYY-MM-DD".
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a "YYYY-MM-DD" date in the local time zone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// ParseMonth parses a "YYYY-MM" month and returns its first day.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q (want YYYY-MM): %w", s, err)
	}
	return t, nil
}

// MonthRange returns the first and last day of the month containing t.
func MonthRange(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1)
	return first, last
}

// DatesInRange returns every date key in [from, to] inclusive.
func DatesInRange(from, to time.Time) []string {
	var keys []string
	for d := StartOfDay(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		keys = append(keys, DateKey(d))
	}
	return keys
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ClockTime returns the wall-clock "HH:MM" of t.
func ClockTime(t time.Time) string {
	return t.Format("15:04")
}

// WorkedMinutes sums the closed morning and afternoon intervals of d.
// An interval counts only when both of its punches are valid.
func WorkedMinutes(d model.Day) int {
	total := 0
	if IsValidTime(d.MorningEntry) && IsValidTime(d.MorningExit) {
		if w := TimeToMinutes(d.MorningExit) - TimeToMinutes(d.MorningEntry); w > 0 {
			total += w
		}
	}
	if IsValidTime(d.AfternoonEntry) && IsValidTime(d.AfternoonExit) {
		if w := TimeToMinutes(d.AfternoonExit) - TimeToMinutes(d.AfternoonEntry); w > 0 {
			total += w
		}
	}
	return total
}

// FormatMinutes formats a duration in minutes as "7h 30m" or "45m".
func FormatMinutes(mins int) string {
	h := mins / 60
	m := mins % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// FormatMinutesHHMM formats a duration in minutes as HH:MM.
func FormatMinutesHHMM(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}
