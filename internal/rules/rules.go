// Package rules holds the scheduling thresholds of a workday together with the
// auto-fill predictor and the per-field correction handlers built on them.
// Everything here is pure: no I/O, no shared state.
package rules

import (
	"fmt"

	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

// Rules is the fixed set of business thresholds. Times of day and durations
// are both expressed in minutes.
type Rules struct {
	MinMorningEntry    int
	MaxMorningEntry    int
	MinMorningExit     int
	MinMorningWork     int
	MaxMorningWork     int
	MinLunchBreak      int
	MaxAfternoonEntry  int
	MinAfternoonExit   int
	MaxAfternoonExit   int
	MinAfternoonWork   int
	MaxAfternoonWork   int
	WorkdayMinutes     int
	ExitEarlyTolerance int
	ExitLateTolerance  int
}

// Default returns the built-in rule set.
func Default() Rules {
	return Rules{
		MinMorningEntry:    7 * 60,
		MaxMorningEntry:    10 * 60,
		MinMorningExit:     11*60 + 30,
		MinMorningWork:     3 * 60,
		MaxMorningWork:     5 * 60,
		MinLunchBreak:      30,
		MaxAfternoonEntry:  14 * 60,
		MinAfternoonExit:   16 * 60,
		MaxAfternoonExit:   19 * 60,
		MinAfternoonWork:   3 * 60,
		MaxAfternoonWork:   5 * 60,
		WorkdayMinutes:     8 * 60,
		ExitEarlyTolerance: 5,
		ExitLateTolerance:  10,
	}
}

// Validate checks that every threshold is in range and that each min/max
// pair is ordered.
func (r Rules) Validate() error {
	clock := []struct {
		name string
		v    int
	}{
		{"min_morning_entry", r.MinMorningEntry},
		{"max_morning_entry", r.MaxMorningEntry},
		{"min_morning_exit", r.MinMorningExit},
		{"max_afternoon_entry", r.MaxAfternoonEntry},
		{"min_afternoon_exit", r.MinAfternoonExit},
		{"max_afternoon_exit", r.MaxAfternoonExit},
	}
	for _, c := range clock {
		if c.v < 0 || c.v >= timecalc.MinutesPerDay {
			return fmt.Errorf("rule %s: %d minutes is not a time of day", c.name, c.v)
		}
	}
	durations := []struct {
		name string
		v    int
	}{
		{"min_morning_minutes", r.MinMorningWork},
		{"max_morning_minutes", r.MaxMorningWork},
		{"min_lunch_break_minutes", r.MinLunchBreak},
		{"min_afternoon_minutes", r.MinAfternoonWork},
		{"max_afternoon_minutes", r.MaxAfternoonWork},
		{"workday_minutes", r.WorkdayMinutes},
		{"exit_early_tolerance_minutes", r.ExitEarlyTolerance},
		{"exit_late_tolerance_minutes", r.ExitLateTolerance},
	}
	for _, d := range durations {
		if d.v < 0 || d.v > timecalc.MinutesPerDay {
			return fmt.Errorf("rule %s: %d minutes is out of range", d.name, d.v)
		}
	}
	switch {
	case r.MinMorningEntry > r.MaxMorningEntry:
		return fmt.Errorf("rule min_morning_entry is after max_morning_entry")
	case r.MinMorningWork > r.MaxMorningWork:
		return fmt.Errorf("rule min_morning_minutes exceeds max_morning_minutes")
	case r.MinAfternoonExit > r.MaxAfternoonExit:
		return fmt.Errorf("rule min_afternoon_exit is after max_afternoon_exit")
	case r.MinAfternoonWork > r.MaxAfternoonWork:
		return fmt.Errorf("rule min_afternoon_minutes exceeds max_afternoon_minutes")
	}
	return nil
}

// capDay keeps a computed bound inside a single day.
func capDay(m int) int {
	if m < 0 {
		return 0
	}
	if m >= timecalc.MinutesPerDay {
		return timecalc.MinutesPerDay - 1
	}
	return m
}
