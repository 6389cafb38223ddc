package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/persist"
	"github.com/Tiliavir/punch-clock/internal/rules"
	"github.com/Tiliavir/punch-clock/internal/session"
	"github.com/Tiliavir/punch-clock/internal/storage"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	store := storage.NewFileStore(t.TempDir())
	w := persist.NewWriter(store, persist.Config{Delay: time.Hour}, zerolog.Nop())
	t.Cleanup(func() { _ = w.Close() })
	ed := session.NewEditor(rules.Default(), store, w, zerolog.Nop())

	m := NewModel(ed, "u1", time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local))
	m.Update(m.Init()())
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTypingFillsMorningExit(t *testing.T) {
	m := newTestModel(t)
	if m.view.IsLoading {
		t.Fatalf("still loading after Init")
	}
	m.Update(runes("08"))
	if got := m.view.Day.MorningEntry; got != "08" {
		t.Fatalf("MorningEntry = %q, want 08", got)
	}
	m.Update(runes("00"))
	if got := m.view.Day.MorningEntry; got != "08:00" {
		t.Fatalf("MorningEntry = %q, want 08:00", got)
	}
	if got := m.view.Day.MorningExit; got != "11:30" {
		t.Fatalf("MorningExit = %q, want 11:30", got)
	}
}

func TestBackspaceAndBlurRepair(t *testing.T) {
	m := newTestModel(t)
	m.Update(runes("0805"))
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	if got := m.view.Day.MorningEntry; got != "08:0" {
		t.Fatalf("after backspace MorningEntry = %q, want 08:0", got)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != 1 {
		t.Fatalf("focus = %d, want 1", m.focus)
	}
	if got := m.view.Day.MorningEntry; got != "08:00" {
		t.Fatalf("blur repair gave %q, want 08:00", got)
	}
}

func TestNudgeMarksManual(t *testing.T) {
	m := newTestModel(t)
	m.Update(runes("0800"))
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(runes("+"))
	if got := m.view.Day.MorningExit; got != "11:31" {
		t.Fatalf("MorningExit = %q, want 11:31", got)
	}
	if !m.view.Flags.MorningExit {
		t.Fatalf("nudged value should be manual")
	}
	if !m.view.Gate {
		t.Fatalf("editing morning exit should open the gate")
	}

	out := m.View()
	for _, want := range []string{"11:30 ‹ › 11:32", "manual", "Worked"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestFocusWraps(t *testing.T) {
	m := newTestModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.field() != model.AfternoonExit {
		t.Fatalf("focus = %s, want afternoonExit", m.field())
	}
}

func TestDayChangeReloads(t *testing.T) {
	m := newTestModel(t)
	m.Update(runes("0800"))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if cmd == nil {
		t.Fatalf("expected open command")
	}
	if !m.view.IsLoading {
		t.Fatalf("expected loading view while the next day opens")
	}
	m.Update(cmd())
	if got := m.view.Day.Date; got != "2026-03-03" {
		t.Fatalf("Date = %q, want 2026-03-03", got)
	}
	if got := m.view.Day.MorningEntry; got != "" {
		t.Fatalf("new day should be empty, got %q", got)
	}
}

func TestStaleLoadIgnored(t *testing.T) {
	m := newTestModel(t)
	m.Update(runes("0800"))
	m.Update(loadedMsg{date: "2026-01-01"})
	if got := m.view.Day.MorningEntry; got != "08:00" {
		t.Fatalf("stale load replaced view: %q", got)
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}
