package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where today's punches stand",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

type dayState int

const (
	stateOff dayState = iota
	stateMorning
	stateLunch
	stateAfternoon
	stateDone
)

// punchState reports the phase of day d at clock minute now and the punch
// that phase started with.
func punchState(d model.Day, now int) (dayState, string) {
	reached := func(t string) bool {
		return timecalc.IsValidTime(t) && timecalc.TimeToMinutes(t) <= now
	}
	switch {
	case !reached(d.MorningEntry):
		return stateOff, ""
	case !reached(d.MorningExit):
		return stateMorning, d.MorningEntry
	case !reached(d.AfternoonEntry):
		return stateLunch, d.MorningExit
	case !reached(d.AfternoonExit):
		return stateAfternoon, d.AfternoonEntry
	default:
		return stateDone, d.AfternoonExit
	}
}

// workedUntil is the worked time of d with open intervals closed at now.
func workedUntil(d model.Day, now int) int {
	span := func(from, to string) int {
		if !timecalc.IsValidTime(from) {
			return 0
		}
		start := timecalc.TimeToMinutes(from)
		end := now
		if timecalc.IsValidTime(to) && timecalc.TimeToMinutes(to) < now {
			end = timecalc.TimeToMinutes(to)
		}
		if end <= start {
			return 0
		}
		return end - start
	}
	return span(d.MorningEntry, d.MorningExit) + span(d.AfternoonEntry, d.AfternoonExit)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	now := time.Now()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}

	date := timecalc.DateKey(now)
	day, err := a.store.Find(ctx, user.ID, date)
	if err != nil {
		return err
	}
	if day == nil {
		day = &model.Day{UserID: user.ID, Date: date}
	}
	printStatus(cmd.OutOrStdout(), *day, now, a.rules.WorkdayMinutes)
	return nil
}

func printStatus(out io.Writer, d model.Day, now time.Time, target int) {
	nowMin := timecalc.TimeToMinutes(timecalc.ClockTime(now))
	state, since := punchState(d, nowMin)

	switch state {
	case stateOff:
		fmt.Fprintln(out, "Not clocked in today.")
		return
	case stateMorning:
		fmt.Fprintf(out, "Working since %s (morning).\n", since)
	case stateLunch:
		fmt.Fprintf(out, "On lunch break since %s.\n", since)
	case stateAfternoon:
		fmt.Fprintf(out, "Working since %s (afternoon).\n", since)
	case stateDone:
		fmt.Fprintf(out, "Done for today since %s.\n", since)
	}
	if state != stateDone {
		elapsed := int64(nowMin-timecalc.TimeToMinutes(since)) * 60
		fmt.Fprintf(out, "  Elapsed: %s\n", formatElapsed(elapsed))
	}

	worked := workedUntil(d, nowMin)
	if left := target - worked; left > 0 {
		fmt.Fprintf(out, "Today: %s worked, %s to go.\n", timecalc.FormatMinutes(worked), timecalc.FormatMinutes(left))
	} else {
		fmt.Fprintf(out, "Today: %s worked.\n", timecalc.FormatMinutes(worked))
	}
}

func formatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
