// Package session keeps one day's punches consistent while a user edits them.
//
// A Session owns the punch values, the manual-override flags of the three
// derived punches and the morning-exit gate. Every edit runs the field's
// handler and then propagates to the downstream punches in a fixed order:
// morningEntry, morningExit, afternoonEntry, afternoonExit. When a later
// punch cannot move far enough, the earlier one is corrected and the chain
// runs again until every punch satisfies its rules.
package session

import (
	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/rules"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

// Flags records which derived punches hold a value the user entered and the
// handler accepted unchanged. Flagged punches are not auto-filled again
// unless they break a rule.
type Flags struct {
	MorningExit    bool `json:"morningExit"`
	AfternoonEntry bool `json:"afternoonEntry"`
	AfternoonExit  bool `json:"afternoonExit"`
}

// Get returns the flag of f. morningEntry has no flag and is always false.
func (fl Flags) Get(f model.Field) bool {
	switch f {
	case model.MorningExit:
		return fl.MorningExit
	case model.AfternoonEntry:
		return fl.AfternoonEntry
	case model.AfternoonExit:
		return fl.AfternoonExit
	}
	return false
}

func (fl *Flags) set(f model.Field, v bool) {
	switch f {
	case model.MorningExit:
		fl.MorningExit = v
	case model.AfternoonEntry:
		fl.AfternoonEntry = v
	case model.AfternoonExit:
		fl.AfternoonExit = v
	}
}

// Change lists the punches whose value differs after an edit, in propagation
// order.
type Change []model.Field

// Has reports whether f changed.
func (c Change) Has(f model.Field) bool {
	for _, x := range c {
		if x == f {
			return true
		}
	}
	return false
}

// upstream lists the punches each derived punch is predicted from.
var upstream = map[model.Field][]model.Field{
	model.MorningExit:    {model.MorningEntry},
	model.AfternoonEntry: {model.MorningExit},
	model.AfternoonExit:  {model.MorningEntry, model.MorningExit, model.AfternoonEntry},
}

// Session is the editing state of one day. It is not safe for concurrent use.
type Session struct {
	rules rules.Rules
	day   model.Day
	flags Flags
	gate  bool
}

// New starts a session on d.
func New(r rules.Rules, d model.Day) *Session {
	s := &Session{rules: r}
	s.Load(d)
	return s
}

// Load replaces the session state with a stored day. A stored derived punch
// counts as manual when it differs from what the predictor would fill in.
// The gate is open when the stored morning exit is valid.
func (s *Session) Load(d model.Day) {
	s.day = d
	s.flags = Flags{}
	for _, f := range []model.Field{model.MorningExit, model.AfternoonEntry, model.AfternoonExit} {
		v := d.Get(f)
		if timecalc.IsValidTime(v) && v != s.suggest(f) {
			s.flags.set(f, true)
		}
	}
	s.gate = timecalc.IsValidTime(d.MorningExit)
}

// Day returns the current punches.
func (s *Session) Day() model.Day { return s.day }

// Flags returns the current manual-override flags.
func (s *Session) Flags() Flags { return s.flags }

// Gate reports whether the user has set morningExit, which unlocks
// auto-fill of the afternoon punches.
func (s *Session) Gate() bool { return s.gate }

// Rules returns the thresholds the session applies.
func (s *Session) Rules() rules.Rules { return s.rules }

// Type applies a keystroke-level value: raw is reduced to digits and
// formatted as HH:MM before the handler runs.
func (s *Session) Type(f model.Field, raw string) Change {
	return s.edit(f, timecalc.FormatTimeInput(raw))
}

// Commit applies a whole value, repairing a partial time such as "9:5"
// first. Used when a field loses focus and by one-shot commands.
func (s *Session) Commit(f model.Field, value string) Change {
	return s.edit(f, timecalc.FixPartialTime(value))
}

func (s *Session) edit(f model.Field, v string) Change {
	before := s.day
	res := s.rules.Apply(f, v, s.day)
	s.day.Set(f, res.Value)
	if f != model.MorningEntry {
		s.flags.set(f, res.Manual)
	}

	opened := false
	if f == model.MorningExit && timecalc.IsValidTime(res.Value) && !s.gate {
		s.gate = true
		opened = true
	}

	changed := map[model.Field]bool{f: before.Get(f) != res.Value}
	s.propagate(changed, opened)
	s.settle()
	return diff(before, s.day)
}

// propagate walks the derived punches in order. A punch is revisited when one
// of its upstream punches changed in this cycle, or when the gate was just
// opened. Unflagged punches follow the prediction; any punch that now breaks
// a rule against its upstream punches is overwritten and loses its flag.
func (s *Session) propagate(changed map[model.Field]bool, opened bool) {
	for _, f := range []model.Field{model.MorningExit, model.AfternoonEntry, model.AfternoonExit} {
		if f == model.AfternoonEntry && !timecalc.IsValidTime(s.day.MorningExit) {
			s.gate = false
		}
		gated := f != model.MorningExit
		touched := opened && gated
		for _, u := range upstream[f] {
			touched = touched || changed[u]
		}
		if !touched {
			continue
		}

		cur := s.day.Get(f)
		next := cur
		switch {
		case timecalc.IsValidTime(cur) && !s.rules.Consistent(f, through(s.day, f)):
			next = s.suggest(f)
			if next == "" {
				next = s.rules.Apply(f, cur, through(s.day, f)).Value
			}
			s.flags.set(f, false)
		case gated && !s.gate:
		case !timecalc.IsValidTime(cur) || !s.flags.Get(f):
			if p := s.suggest(f); p != "" {
				next = p
				s.flags.set(f, false)
			}
		}
		if next != cur {
			s.day.Set(f, next)
			changed[f] = true
		}
	}
}

// settle re-checks every punch against the whole day, latest first. A punch
// that a later one now contradicts, such as a morning exit left without a
// full lunch break, is corrected by its handler and loses its flag; the
// corrected punches then propagate downstream again. The loop ends once a
// pass changes nothing.
func (s *Session) settle() {
	order := []model.Field{model.AfternoonExit, model.AfternoonEntry, model.MorningExit, model.MorningEntry}
	for i := 0; i < timecalc.MinutesPerDay; i++ {
		changed := map[model.Field]bool{}
		for _, f := range order {
			if s.rules.Consistent(f, s.day) {
				continue
			}
			s.day.Set(f, s.rules.Apply(f, s.day.Get(f), s.day).Value)
			s.flags.set(f, false)
			changed[f] = true
		}
		if len(changed) == 0 {
			return
		}
		s.propagate(changed, false)
	}
}

// suggest returns the prediction for f passed through f's handler against
// the punches before f only. Later punches are left to propagation.
// Returns "" when the prediction is not available yet.
func (s *Session) suggest(f model.Field) string {
	var p string
	switch f {
	case model.MorningExit:
		p = s.rules.AutoMorningExit(s.day.MorningEntry)
	case model.AfternoonEntry:
		p = s.rules.AutoAfternoonEntry(s.day.MorningExit)
	case model.AfternoonExit:
		p = s.rules.AutoAfternoonExit(s.day.MorningEntry, s.day.MorningExit, s.day.AfternoonEntry)
	}
	if p == "" {
		return ""
	}
	return s.rules.Apply(f, p, through(s.day, f)).Value
}

// through returns d with every punch after f cleared.
func through(d model.Day, f model.Field) model.Day {
	after := false
	for _, g := range model.Fields {
		if after {
			d.Set(g, "")
		}
		after = after || g == f
	}
	return d
}

func diff(a, b model.Day) Change {
	var c Change
	for _, f := range model.Fields {
		if a.Get(f) != b.Get(f) {
			c = append(c, f)
		}
	}
	return c
}

// Valid returns the punches of d that hold a valid time.
func Valid(d model.Day) model.FieldValues {
	vals := model.FieldValues{}
	for _, f := range model.Fields {
		if v := d.Get(f); timecalc.IsValidTime(v) {
			vals[f] = v
		}
	}
	return vals
}
