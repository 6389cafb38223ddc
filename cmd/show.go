package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/punch-clock/internal/persist"
)

var (
	showDate string
	showJSON bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a day's punches",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVar(&showDate, "date", "", "Day to show (YYYY-MM-DD, default today)")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the day as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	date, err := resolveDate(showDate, time.Now())
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

	// Nothing is edited; the writer only satisfies the editor.
	w := persist.NewWriter(a.store, persist.Config{}, a.log)
	defer w.Close()
	ed, err := a.openEditor(ctx, user, date, w)
	if err != nil {
		return err
	}
	view := ed.View()

	if showJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	printDay(cmd.OutOrStdout(), view)
	return nil
}
