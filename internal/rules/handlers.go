package rules

import (
	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

// Result is the outcome of a field edit. Manual is true only when the input
// was a valid time and was accepted exactly as given.
type Result struct {
	Value  string
	Manual bool
}

// Apply runs the handler for field f on raw, reading the neighbouring
// punches from d.
func (r Rules) Apply(f model.Field, raw string, d model.Day) Result {
	switch f {
	case model.MorningEntry:
		return r.MorningEntry(raw, d.MorningExit)
	case model.MorningExit:
		return r.MorningExit(raw, d.MorningEntry, d.AfternoonEntry)
	case model.AfternoonEntry:
		return r.AfternoonEntry(raw, d.MorningExit, d.AfternoonExit)
	case model.AfternoonExit:
		return r.AfternoonExit(raw, d.MorningEntry, d.MorningExit, d.AfternoonEntry)
	}
	return Result{Value: raw}
}

// Consistent reports whether the current value of f already satisfies every
// rule given the rest of d. Empty and partial values are consistent.
func (r Rules) Consistent(f model.Field, d model.Day) bool {
	v := d.Get(f)
	if !timecalc.IsValidTime(v) {
		return true
	}
	return r.Apply(f, v, d).Value == v
}

// MorningEntry bounds the entry to [MinMorningEntry, MaxMorningEntry] and
// keeps it no later than morningExit.
func (r Rules) MorningEntry(raw, morningExit string) Result {
	v := prepare(raw)
	if !timecalc.IsValidTime(v) {
		return Result{Value: v}
	}
	in := timecalc.TimeToMinutes(v)
	out := clamp(in, r.MinMorningEntry, r.MaxMorningEntry)
	if x, ok := minutes(morningExit); ok && out > x {
		out = x
	}
	return result(in, out)
}

// MorningExit bounds the exit by the morning work window after morningEntry
// and by MinMorningExit, then keeps a full lunch break before an existing
// afternoonEntry and never passes it. Without a morning entry only the
// afternoon entry constrains it.
func (r Rules) MorningExit(raw, morningEntry, afternoonEntry string) Result {
	v := prepare(raw)
	if !timecalc.IsValidTime(v) {
		return Result{Value: v}
	}
	in := timecalc.TimeToMinutes(v)

	lo, hi := 0, timecalc.MinutesPerDay-1
	entry, hasEntry := minutes(morningEntry)
	if hasEntry {
		lo, hi = bounds(max(entry+r.MinMorningWork, r.MinMorningExit), entry+r.MaxMorningWork)
	}

	out := clamp(in, lo, hi)
	if hasEntry && out < entry {
		out = entry
	}
	if a, ok := minutes(afternoonEntry); ok {
		if a-out < r.MinLunchBreak {
			out = clamp(max(a-r.MinLunchBreak, 0), lo, hi)
		}
		if out > a {
			out = a
		}
	}
	return result(in, out)
}

// AfternoonEntry keeps a full lunch break after morningExit, bounds the entry
// by MaxAfternoonEntry and orders it between morningExit and afternoonExit.
// The lunch and maximum bounds need a morning exit.
func (r Rules) AfternoonEntry(raw, morningExit, afternoonExit string) Result {
	v := prepare(raw)
	if !timecalc.IsValidTime(v) {
		return Result{Value: v}
	}
	in := timecalc.TimeToMinutes(v)

	lo, hi := 0, timecalc.MinutesPerDay-1
	exit, hasExit := minutes(morningExit)
	if hasExit {
		lo, hi = bounds(exit+r.MinLunchBreak, r.MaxAfternoonEntry)
	}

	out := clamp(in, lo, hi)
	if hasExit && out < exit {
		out = exit
	}
	if x, ok := minutes(afternoonExit); ok && out > x {
		out = x
	}
	return result(in, out)
}

// AfternoonExit accepts an exit within the tolerance window around the
// estimate that completes the workday, within the afternoon work window
// after afternoonEntry, and within [MinAfternoonExit, MaxAfternoonExit]
// extended by the late tolerance. The window needs all three earlier punches;
// the exit never precedes afternoonEntry either way.
func (r Rules) AfternoonExit(raw, morningEntry, morningExit, afternoonEntry string) Result {
	v := prepare(raw)
	if !timecalc.IsValidTime(v) {
		return Result{Value: v}
	}
	in := timecalc.TimeToMinutes(v)

	lo, hi := 0, timecalc.MinutesPerDay-1
	entry, hasEntry := minutes(afternoonEntry)
	if est, ok := minutes(r.AutoAfternoonExit(morningEntry, morningExit, afternoonEntry)); ok {
		lo, hi = bounds(
			max(r.MinAfternoonExit, entry+r.MinAfternoonWork, est-r.ExitEarlyTolerance),
			min(r.MaxAfternoonExit+r.ExitLateTolerance, entry+r.MaxAfternoonWork+r.ExitLateTolerance, est+r.ExitLateTolerance),
		)
	}

	out := clamp(in, lo, hi)
	if hasEntry && out < entry {
		out = entry
	}
	return result(in, out)
}

// prepare repairs a fully typed "HH:MM"-shaped value before validation.
func prepare(raw string) string {
	if len(raw) == 5 {
		return timecalc.FixPartialTime(raw)
	}
	return raw
}

func minutes(t string) (int, bool) {
	if !timecalc.IsValidTime(t) {
		return 0, false
	}
	return timecalc.TimeToMinutes(t), true
}

// bounds keeps both ends inside the day; when the window is inverted the
// upper bound wins, as it does in the predictor.
func bounds(lo, hi int) (int, int) {
	lo, hi = capDay(lo), capDay(hi)
	return min(lo, hi), hi
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func result(in, out int) Result {
	return Result{Value: timecalc.MinutesToTime(out), Manual: in == out}
}
