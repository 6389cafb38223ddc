package rules

import (
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

// AutoMorningExit suggests the earliest morning exit for the given entry: at
// least MinMorningWork after entry and not before MinMorningExit. When that
// overshoots MaxMorningWork the maximum wins. Returns "" for an invalid entry.
func (r Rules) AutoMorningExit(morningEntry string) string {
	if !timecalc.IsValidTime(morningEntry) {
		return ""
	}
	entry := timecalc.TimeToMinutes(morningEntry)
	minExit := max(entry+r.MinMorningWork, r.MinMorningExit)
	maxExit := entry + r.MaxMorningWork
	return timecalc.MinutesToTime(capDay(min(minExit, maxExit)))
}

// AutoAfternoonEntry suggests the end of the minimum lunch break, bounded by
// MaxAfternoonEntry. Returns "" for an invalid exit.
func (r Rules) AutoAfternoonEntry(morningExit string) string {
	if !timecalc.IsValidTime(morningExit) {
		return ""
	}
	minEntry := timecalc.TimeToMinutes(morningExit) + r.MinLunchBreak
	return timecalc.MinutesToTime(capDay(min(minEntry, r.MaxAfternoonEntry)))
}

// AutoAfternoonExit suggests the exit that completes the workday target given
// the morning worked, clamped to [MinAfternoonExit, MaxAfternoonExit].
// Returns "" unless all three inputs are valid.
func (r Rules) AutoAfternoonExit(morningEntry, morningExit, afternoonEntry string) string {
	if !timecalc.IsValidTime(morningEntry) || !timecalc.IsValidTime(morningExit) || !timecalc.IsValidTime(afternoonEntry) {
		return ""
	}
	worked := timecalc.TimeToMinutes(morningExit) - timecalc.TimeToMinutes(morningEntry)
	remaining := r.WorkdayMinutes - worked
	exit := timecalc.TimeToMinutes(afternoonEntry) + remaining
	exit = max(exit, r.MinAfternoonExit)
	exit = min(exit, r.MaxAfternoonExit)
	return timecalc.MinutesToTime(exit)
}
