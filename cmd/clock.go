package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/session"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

var clockAt string

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Punch the clock now",
	Long: `Record the current time into the next punch of today that has not been set
by hand: the morning entry when it is empty, otherwise the first of morning
exit, afternoon entry and afternoon exit that is empty or auto-filled.`,
	Args: cobra.NoArgs,
	RunE: runClock,
}

func init() {
	clockCmd.Flags().StringVar(&clockAt, "at", "", "Record this time (HH:MM) instead of now")
}

var errDayComplete = errors.New("all punches of today are already recorded")

// nextPunch returns the field a clock punch goes into.
func nextPunch(v session.View) (model.Field, error) {
	if !timecalc.IsValidTime(v.Day.MorningEntry) {
		return model.MorningEntry, nil
	}
	for _, f := range model.Fields[1:] {
		if !timecalc.IsValidTime(v.Day.Get(f)) || !v.Flags.Get(f) {
			return f, nil
		}
	}
	return "", errDayComplete
}

func runClock(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	now := time.Now()

	value := timecalc.ClockTime(now)
	if clockAt != "" {
		value = timecalc.FixPartialTime(clockAt)
		if !timecalc.IsValidTime(value) {
			return fmt.Errorf("invalid --at value %q (want HH:MM)", clockAt)
		}
	}
	date := timecalc.DateKey(now)

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}

	field, view, err := commitAndSave(ctx, a, user, date, value, nextPunch)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s recorded at %s\n", field.Label(), view.Day.Get(field))
	printDay(cmd.OutOrStdout(), view)
	return nil
}
