package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/punch-clock/internal/history"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

var historyMonth string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the punches of a month",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyMonth, "month", "", "Month to list (YYYY-MM, default this month)")
}

// loadMonth resolves the month flag and loads the user's history.
func loadMonth(ctx context.Context, flag string) (history.Month, *app, error) {
	month, err := resolveMonth(flag, time.Now())
	if err != nil {
		return history.Month{}, nil, err
	}
	a, err := loadApp(ctx)
	if err != nil {
		return history.Month{}, nil, err
	}
	user, err := a.currentUser(ctx)
	if err != nil {
		a.Close()
		return history.Month{}, nil, err
	}
	m, err := history.Load(ctx, a.store, user.ID, month)
	if err != nil {
		a.Close()
		return history.Month{}, nil, err
	}
	return m, a, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	m, a, err := loadMonth(context.Background(), historyMonth)
	if err != nil {
		return err
	}
	defer a.Close()
	printHistory(cmd.OutOrStdout(), m)
	return nil
}

// printHistory prints one line per stored day.
func printHistory(out io.Writer, m history.Month) {
	if len(m.Days) == 0 {
		fmt.Fprintf(out, "No punches in %s.\n", m.Month)
		return
	}
	fmt.Fprintln(out, m.Month)
	for _, d := range m.Days {
		fmt.Fprintf(out, "%s  %s–%s  %s–%s  %s\n",
			d.Date,
			punchOrBlank(d.MorningEntry),
			punchOrBlank(d.MorningExit),
			punchOrBlank(d.AfternoonEntry),
			punchOrBlank(d.AfternoonExit),
			timecalc.FormatMinutes(d.WorkedMinutes),
		)
	}
	fmt.Fprintf(out, "Total: %s\n", timecalc.FormatMinutes(m.TotalMinutes))
}

func punchOrBlank(v string) string {
	if timecalc.IsValidTime(v) {
		return v
	}
	return "--:--"
}
