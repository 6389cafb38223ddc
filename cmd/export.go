package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/punch-clock/internal/history"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

var (
	exportMonth  string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a month's punches to stdout",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportMonth, "month", "", "Month to export (YYYY-MM, default this month)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, md")
}

func runExport(cmd *cobra.Command, args []string) error {
	m, a, err := loadMonth(context.Background(), exportMonth)
	if err != nil {
		return err
	}
	defer a.Close()
	return writeExport(cmd.OutOrStdout(), m, exportFormat)
}

func writeExport(out io.Writer, m history.Month, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("error encoding JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "md":
		printMarkdown(out, m)
	case "csv", "":
		printCSV(out, m)
	default:
		return fmt.Errorf("unknown format %q (want csv, json or md)", format)
	}
	return nil
}

func printCSV(out io.Writer, m history.Month) {
	fmt.Fprintln(out, "date,morning_entry,morning_exit,afternoon_entry,afternoon_exit,worked_minutes")
	for _, d := range m.Days {
		fmt.Fprintf(out, "%s,%s,%s,%s,%s,%d\n",
			csvEscape(d.Date),
			csvEscape(d.MorningEntry),
			csvEscape(d.MorningExit),
			csvEscape(d.AfternoonEntry),
			csvEscape(d.AfternoonExit),
			d.WorkedMinutes,
		)
	}
}

func printMarkdown(out io.Writer, m history.Month) {
	fmt.Fprintf(out, "## %s\n\n", m.Month)
	fmt.Fprintln(out, "| Date | Morning | Afternoon | Worked |")
	fmt.Fprintln(out, "|------|---------|-----------|--------|")
	for _, d := range m.Days {
		fmt.Fprintf(out, "| %s | %s–%s | %s–%s | %s |\n",
			d.Date,
			punchOrBlank(d.MorningEntry), punchOrBlank(d.MorningExit),
			punchOrBlank(d.AfternoonEntry), punchOrBlank(d.AfternoonExit),
			timecalc.FormatMinutesHHMM(d.WorkedMinutes),
		)
	}
	fmt.Fprintf(out, "| **Total** | | | %s |\n", timecalc.FormatMinutesHHMM(m.TotalMinutes))
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	needsQuote := false
	for _, c := range s {
		if c == ',' || c == '"' || c == '\n' || c == '\r' {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return s
	}
	// Escape internal double quotes by doubling them.
	escaped := ""
	for _, c := range s {
		if c == '"' {
			escaped += "\""
		}
		escaped += string(c)
	}
	return `"` + escaped + `"`
}
