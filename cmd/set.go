package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/session"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

var setDate string

var setCmd = &cobra.Command{
	Use:   "set <field> <HH:MM>",
	Short: "Set one punch and auto-fill the rest",
	Long: `Set one punch of a day. field is one of morningEntry (me), morningExit (mx),
afternoonEntry (ae) or afternoonExit (ax). Values out of the workday rules are
corrected, and dependent punches that were not set by hand follow.`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func init() {
	setCmd.Flags().StringVar(&setDate, "date", "", "Day to change (YYYY-MM-DD, default today)")
}

// fieldAliases maps short and dashed names to fields.
var fieldAliases = map[string]model.Field{
	"me":              model.MorningEntry,
	"mx":              model.MorningExit,
	"ae":              model.AfternoonEntry,
	"ax":              model.AfternoonExit,
	"morning-entry":   model.MorningEntry,
	"morning-exit":    model.MorningExit,
	"afternoon-entry": model.AfternoonEntry,
	"afternoon-exit":  model.AfternoonExit,
}

func parseFieldArg(s string) (model.Field, error) {
	if f, ok := model.ParseField(s); ok {
		return f, nil
	}
	if f, ok := fieldAliases[strings.ToLower(s)]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unknown field %q (want me, mx, ae or ax)", s)
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	field, err := parseFieldArg(args[0])
	if err != nil {
		return err
	}
	value := timecalc.FixPartialTime(args[1])
	if !timecalc.IsValidTime(value) {
		return fmt.Errorf("invalid time %q (want HH:MM)", args[1])
	}
	date, err := resolveDate(setDate, time.Now())
	if err != nil {
		return err
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}

	_, view, err := commitAndSave(ctx, a, user, date, value, func(session.View) (model.Field, error) {
		return field, nil
	})
	if err != nil {
		return err
	}
	if got := view.Day.Get(field); got != value {
		fmt.Fprintf(cmd.ErrOrStderr(), "Note: %s %s corrected to %s.\n", field.Label(), value, got)
	}
	printDay(cmd.OutOrStdout(), view)
	return nil
}

// commitAndSave applies value to the field chosen by pick on the stored day
// and waits for the write.
func commitAndSave(ctx context.Context, a *app, user model.User, date, value string, pick func(session.View) (model.Field, error)) (model.Field, session.View, error) {
	w := a.newWriter()
	defer w.Close()
	ed, err := a.openEditor(ctx, user, date, w)
	if err != nil {
		return "", session.View{}, err
	}
	field, err := pick(ed.View())
	if err != nil {
		return "", session.View{}, err
	}
	view, err := ed.Commit(field, value)
	if err != nil {
		return field, session.View{}, err
	}
	if err := w.Flush(ctx); err != nil {
		return field, view, err
	}
	if err := w.Err(ed.Key()); err != nil {
		return field, view, fmt.Errorf("saving punches: %w", err)
	}
	return field, view, nil
}

// printDay prints the punches of a day with their auto/manual markers.
func printDay(out io.Writer, v session.View) {
	fmt.Fprintln(out, v.Day.Date)
	for _, f := range model.Fields {
		val := v.Day.Get(f)
		if val == "" {
			val = "--:--"
		}
		marker := ""
		if f != model.MorningEntry && timecalc.IsValidTime(v.Day.Get(f)) {
			marker = "  (auto)"
			if v.Flags.Get(f) {
				marker = "  (manual)"
			}
		}
		fmt.Fprintf(out, "  %-17s%s%s\n", f.Label(), val, marker)
	}
	fmt.Fprintf(out, "  %-17s%s\n", "Worked", timecalc.FormatMinutes(timecalc.WorkedMinutes(v.Day)))
}
