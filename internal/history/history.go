// Package history summarises the stored days of one month.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

// Ranger loads stored days in a date range.
type Ranger interface {
	FindRange(ctx context.Context, userID, from, to string) ([]model.Day, error)
}

// Day is a stored day with its worked time.
type Day struct {
	model.Day
	WorkedMinutes int `json:"workedMinutes"`
}

// Month is the history of one user for one calendar month.
type Month struct {
	Month        string `json:"month"`
	Days         []Day  `json:"days"`
	TotalMinutes int    `json:"totalMinutes"`
}

// Load returns the days stored for userID in the month containing t,
// ascending by date.
func Load(ctx context.Context, store Ranger, userID string, t time.Time) (Month, error) {
	from, to := timecalc.MonthRange(t)
	days, err := store.FindRange(ctx, userID, timecalc.DateKey(from), timecalc.DateKey(to))
	if err != nil {
		return Month{}, fmt.Errorf("loading %s: %w", t.Format(timecalc.MonthLayout), err)
	}

	m := Month{Month: t.Format(timecalc.MonthLayout), Days: make([]Day, 0, len(days))}
	for _, d := range days {
		worked := timecalc.WorkedMinutes(d)
		m.Days = append(m.Days, Day{Day: d, WorkedMinutes: worked})
		m.TotalMinutes += worked
	}
	return m, nil
}

// WorkedDays counts the days with any worked time.
func (m Month) WorkedDays() int {
	n := 0
	for _, d := range m.Days {
		if d.WorkedMinutes > 0 {
			n++
		}
	}
	return n
}

// Balance returns the worked time minus target minutes for every worked day.
func (m Month) Balance(target int) int {
	return m.TotalMinutes - target*m.WorkedDays()
}
