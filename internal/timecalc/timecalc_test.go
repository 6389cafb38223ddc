package timecalc_test

import (
	"testing"
	"time"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		mins int
		want string
	}{
		{0, "0m"},
		{45, "45m"},
		{60, "1h 0m"},
		{61, "1h 1m"},
		{480, "8h 0m"},
		{510, "8h 30m"},
	}
	for _, tt := range tests {
		got := timecalc.FormatMinutes(tt.mins)
		if got != tt.want {
			t.Errorf("FormatMinutes(%d) = %q, want %q", tt.mins, got, tt.want)
		}
	}
}

func TestFormatMinutesHHMM(t *testing.T) {
	tests := []struct {
		mins int
		want string
	}{
		{0, "00:00"},
		{61, "01:01"},
		{480, "08:00"},
	}
	for _, tt := range tests {
		got := timecalc.FormatMinutesHHMM(tt.mins)
		if got != tt.want {
			t.Errorf("FormatMinutesHHMM(%d) = %q, want %q", tt.mins, got, tt.want)
		}
	}
}

func TestMonthRange(t *testing.T) {
	// 2026 is not a leap year.
	mid := time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC)
	first, last := timecalc.MonthRange(mid)

	wantFirst := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	wantLast := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	if !first.Equal(wantFirst) {
		t.Errorf("MonthRange first = %v, want %v", first, wantFirst)
	}
	if !last.Equal(wantLast) {
		t.Errorf("MonthRange last = %v, want %v", last, wantLast)
	}
}

func TestDatesInRange(t *testing.T) {
	from := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	got := timecalc.DatesInRange(from, to)
	want := []string{"2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02"}
	if len(got) != len(want) {
		t.Fatalf("DatesInRange len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DatesInRange[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := timecalc.ParseDate("2026-02-27")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if timecalc.DateKey(d) != "2026-02-27" {
		t.Errorf("DateKey(ParseDate) = %q", timecalc.DateKey(d))
	}
	for _, bad := range []string{"", "2026-2-27", "27.02.2026", "2026-02-30"} {
		if _, err := timecalc.ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q): expected error", bad)
		}
	}
}

func TestParseMonth(t *testing.T) {
	m, err := timecalc.ParseMonth("2026-03")
	if err != nil {
		t.Fatalf("ParseMonth: %v", err)
	}
	if m.Month() != time.March || m.Day() != 1 {
		t.Errorf("ParseMonth = %v, want first of March", m)
	}
	if _, err := timecalc.ParseMonth("March"); err == nil {
		t.Error("ParseMonth(March): expected error")
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	b := time.Date(2026, 2, 27, 23, 59, 59, 0, time.UTC)
	c := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	if !timecalc.SameDay(a, b) {
		t.Error("SameDay: expected same day for a and b")
	}
	if timecalc.SameDay(a, c) {
		t.Error("SameDay: expected different day for a and c")
	}
}

func TestWorkedMinutes(t *testing.T) {
	tests := []struct {
		name string
		day  model.Day
		want int
	}{
		{"empty", model.Day{}, 0},
		{"morning only", model.Day{MorningEntry: "08:00", MorningExit: "12:00"}, 240},
		{"open afternoon", model.Day{MorningEntry: "08:00", MorningExit: "12:00", AfternoonEntry: "13:00"}, 240},
		{"full day", model.Day{MorningEntry: "08:00", MorningExit: "12:00", AfternoonEntry: "13:00", AfternoonExit: "17:30"}, 510},
		{"partial value ignored", model.Day{MorningEntry: "08:0", MorningExit: "12:00"}, 0},
	}
	for _, tt := range tests {
		got := timecalc.WorkedMinutes(tt.day)
		if got != tt.want {
			t.Errorf("WorkedMinutes(%s) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
