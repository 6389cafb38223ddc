package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/punch-clock/internal/session"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
	"github.com/Tiliavir/punch-clock/internal/tui"
)

var editDate string

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit a day's punches in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editDate, "date", "", "Day to edit (YYYY-MM-DD, default today)")
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	date, err := resolveDate(editDate, time.Now())
	if err != nil {
		return err
	}
	t, err := timecalc.ParseDate(date)
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

	writer := a.newWriter()
	ed := session.NewEditor(a.rules, a.store, writer, a.log)
	_, runErr := tea.NewProgram(tui.NewModel(ed, user.ID, t), tea.WithAltScreen()).Run()

	// Punches typed just before quitting are still debounced.
	if err := writer.Close(); err != nil {
		return fmt.Errorf("saving punches: %w", err)
	}
	if err := writer.Err(ed.Key()); err != nil {
		return fmt.Errorf("saving punches: %w", err)
	}
	return runErr
}
