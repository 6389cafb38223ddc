// Package tui provides the Bubble Tea punch editor.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/session"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

// Editor is the editing session the model drives.
type Editor interface {
	Open(ctx context.Context, userID, date string) error
	Type(f model.Field, raw string) (session.View, error)
	Commit(f model.Field, value string) (session.View, error)
	View() session.View
}

// Model implements the Bubble Tea punch editor for one user.
type Model struct {
	ed     Editor
	userID string
	date   time.Time
	today  func() time.Time

	focus  int
	view   session.View
	status string

	width  int
	height int
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	labelStyle   = lipgloss.NewStyle().Width(18).Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	focusStyle   = valueStyle.Copy().Underline(true).Bold(true)
	autoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	manualStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	loadingStyle = hintStyle.Copy().Italic(true)
)

// loadedMsg reports the end of an Open started by openCmd.
type loadedMsg struct {
	date string
	err  error
}

// NewModel returns a model editing date for userID.
func NewModel(ed Editor, userID string, date time.Time) *Model {
	return &Model{
		ed:     ed,
		userID: userID,
		date:   timecalc.StartOfDay(date),
		today:  time.Now,
		view:   session.View{IsLoading: true},
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.openCmd()
}

func (m *Model) openCmd() tea.Cmd {
	ed, userID, date := m.ed, m.userID, timecalc.DateKey(m.date)
	return func() tea.Msg {
		return loadedMsg{date: date, err: ed.Open(context.Background(), userID, date)}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case loadedMsg:
		if msg.date != timecalc.DateKey(m.date) {
			return m, nil
		}
		m.view = m.ed.View()
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.commitFocused()
		return m, tea.Quit
	case tea.KeyTab, tea.KeyDown:
		m.moveFocus(1)
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.moveFocus(-1)
		return m, nil
	case tea.KeyEnter:
		m.commitFocused()
		return m, nil
	case tea.KeyBackspace, tea.KeyDelete:
		v := m.focusedValue()
		if v != "" {
			m.typeFocused(v[:len(v)-1])
		}
		return m, nil
	case tea.KeyLeft:
		return m, m.shiftDay(-1)
	case tea.KeyRight:
		return m, m.shiftDay(1)
	case tea.KeyRunes:
		return m.handleRunes(msg.Runes)
	default:
		return m, nil
	}
}

func (m *Model) handleRunes(runes []rune) (tea.Model, tea.Cmd) {
	for _, r := range runes {
		switch {
		case r >= '0' && r <= '9':
			m.typeFocused(m.focusedValue() + string(r))
		case r == '+':
			m.nudge(1)
		case r == '-':
			m.nudge(-1)
		case r == 't':
			if !timecalc.SameDay(m.date, m.today()) {
				m.date = timecalc.StartOfDay(m.today())
				return m, m.reopen()
			}
		case r == 'q':
			m.commitFocused()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) field() model.Field { return model.Fields[m.focus] }

func (m *Model) focusedValue() string { return m.view.Day.Get(m.field()) }

// moveFocus leaves the focused field, repairing partial input, and focuses
// the next or previous field.
func (m *Model) moveFocus(delta int) {
	m.commitFocused()
	n := len(model.Fields)
	m.focus = ((m.focus+delta)%n + n) % n
}

func (m *Model) typeFocused(raw string) {
	m.apply(m.ed.Type(m.field(), raw))
}

func (m *Model) commitFocused() {
	v := m.focusedValue()
	if v == "" || timecalc.IsValidTime(v) {
		return
	}
	m.apply(m.ed.Commit(m.field(), v))
}

// nudge moves the focused value by delta minutes.
func (m *Model) nudge(delta int) {
	v := timecalc.ShiftTime(m.focusedValue(), delta)
	if v == "" {
		return
	}
	m.apply(m.ed.Commit(m.field(), v))
}

func (m *Model) apply(v session.View, err error) {
	switch {
	case errors.Is(err, session.ErrLoading):
		m.status = "still loading…"
	case errors.Is(err, session.ErrNotLoaded):
		m.status = "day failed to load; change day to retry"
	case err != nil:
		m.status = err.Error()
	default:
		m.status = ""
		m.view = v
	}
}

func (m *Model) shiftDay(days int) tea.Cmd {
	m.commitFocused()
	m.date = m.date.AddDate(0, 0, days)
	return m.reopen()
}

func (m *Model) reopen() tea.Cmd {
	m.view = session.View{IsLoading: true}
	m.status = ""
	return m.openCmd()
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("punch · " + m.date.Format("Mon 2 Jan 2006")))
	b.WriteString("\n\n")
	for i, f := range model.Fields {
		b.WriteString(m.renderField(i, f))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	content := b.String()
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderField(i int, f model.Field) string {
	cursor := "  "
	style := valueStyle
	if i == m.focus {
		cursor = "› "
		style = focusStyle
	}
	v := m.view.Day.Get(f)
	shown := v
	if shown == "" {
		shown = "--:--"
	}
	line := cursor + labelStyle.Render(f.Label()) + style.Render(fmt.Sprintf("%-5s", shown))

	if f != model.MorningEntry && timecalc.IsValidTime(v) {
		if m.view.Flags.Get(f) {
			line += "  " + manualStyle.Render("manual")
		} else {
			line += "  " + autoStyle.Render("auto")
		}
	}
	if i == m.focus && timecalc.IsValidTime(v) {
		line += "  " + hintStyle.Render(timecalc.ShiftTime(v, -1)+" ‹ › "+timecalc.ShiftTime(v, 1))
	}
	return line
}

func (m *Model) renderFooter() string {
	var lines []string
	switch {
	case m.view.IsLoading:
		lines = append(lines, loadingStyle.Render("loading…"))
	case m.status != "":
		lines = append(lines, errorStyle.Render(m.status))
	case m.view.Error != "":
		lines = append(lines, errorStyle.Render(m.view.Error))
	default:
		worked := timecalc.WorkedMinutes(m.view.Day)
		lines = append(lines, footerStyle.Render("Worked "+timecalc.FormatMinutes(worked)))
	}
	lines = append(lines, footerStyle.Render("tab/↑↓ move · enter confirm · +/- minute · ←/→ day · t today · q quit"))
	return strings.Join(lines, "\n")
}
