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
	reportMonth  string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the worked time of a month against the workday target",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportMonth, "month", "", "Month to report (YYYY-MM, default this month)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "md", "Output format: md, csv, json")
}

// monthReport aggregates a month's history.
type monthReport struct {
	Month          string `json:"month"`
	WorkedDays     int    `json:"worked_days"`
	TotalMinutes   int    `json:"total_minutes"`
	AverageMinutes int    `json:"average_minutes"`
	TargetMinutes  int    `json:"target_minutes"`
	BalanceMinutes int    `json:"balance_minutes"`
}

func newMonthReport(m history.Month, workday int) monthReport {
	r := monthReport{
		Month:          m.Month,
		WorkedDays:     m.WorkedDays(),
		TotalMinutes:   m.TotalMinutes,
		TargetMinutes:  workday * m.WorkedDays(),
		BalanceMinutes: m.Balance(workday),
	}
	if r.WorkedDays > 0 {
		r.AverageMinutes = r.TotalMinutes / r.WorkedDays
	}
	return r
}

func runReport(cmd *cobra.Command, args []string) error {
	m, a, err := loadMonth(context.Background(), reportMonth)
	if err != nil {
		return err
	}
	defer a.Close()
	return printReport(cmd.OutOrStdout(), newMonthReport(m, a.rules.WorkdayMinutes), reportFormat)
}

func printReport(out io.Writer, r monthReport, format string) error {
	switch format {
	case "csv":
		fmt.Fprintln(out, "month,worked_days,total_minutes,average_minutes,target_minutes,balance_minutes")
		fmt.Fprintf(out, "%s,%d,%d,%d,%d,%d\n",
			r.Month, r.WorkedDays, r.TotalMinutes, r.AverageMinutes, r.TargetMinutes, r.BalanceMinutes)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "md", "":
		fmt.Fprintf(out, "Month %s\n", r.Month)
		fmt.Fprintln(out, "--------------------------------")
		fmt.Fprintf(out, "%-20s%d\n", "Days worked", r.WorkedDays)
		fmt.Fprintf(out, "%-20s%s\n", "Worked", timecalc.FormatMinutes(r.TotalMinutes))
		fmt.Fprintf(out, "%-20s%s\n", "Average per day", timecalc.FormatMinutes(r.AverageMinutes))
		fmt.Fprintf(out, "%-20s%s\n", "Target", timecalc.FormatMinutes(r.TargetMinutes))
		fmt.Fprintln(out, "--------------------------------")
		fmt.Fprintf(out, "%-20s%s\n", "Balance", formatBalance(r.BalanceMinutes))
	default:
		return fmt.Errorf("unknown format %q (want md, csv or json)", format)
	}
	return nil
}

// formatBalance formats a signed duration as "+1h 5m" or "-30m".
func formatBalance(mins int) string {
	if mins < 0 {
		return "-" + timecalc.FormatMinutes(-mins)
	}
	return "+" + timecalc.FormatMinutes(mins)
}
