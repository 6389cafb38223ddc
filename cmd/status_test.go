package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{30, "30s"},
		{59, "59s"},
		{60, "1m 0s"},
		{90, "1m 30s"},
		{3600, "1h 0m 0s"},
		{3661, "1h 1m 1s"},
		{7322, "2h 2m 2s"},
	}
	for _, tt := range tests {
		got := formatElapsed(tt.seconds)
		if got != tt.want {
			t.Errorf("formatElapsed(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestPunchState(t *testing.T) {
	day := model.Day{MorningEntry: "08:00", MorningExit: "12:00", AfternoonEntry: "12:30", AfternoonExit: "16:30"}
	tests := []struct {
		now       string
		want      dayState
		wantSince string
	}{
		{"07:59", stateOff, ""},
		{"08:00", stateMorning, "08:00"},
		{"11:59", stateMorning, "08:00"},
		{"12:10", stateLunch, "12:00"},
		{"14:00", stateAfternoon, "12:30"},
		{"16:30", stateDone, "16:30"},
	}
	for _, tt := range tests {
		got, since := punchState(day, timecalc.TimeToMinutes(tt.now))
		if got != tt.want || since != tt.wantSince {
			t.Errorf("punchState(%s) = %d, %q, want %d, %q", tt.now, got, since, tt.want, tt.wantSince)
		}
	}

	if got, _ := punchState(model.Day{}, 600); got != stateOff {
		t.Errorf("empty day state = %d, want off", got)
	}
	partial := model.Day{MorningEntry: "08:00", MorningExit: "12:0"}
	if got, since := punchState(partial, 800); got != stateMorning || since != "08:00" {
		t.Errorf("partial exit state = %d, %q", got, since)
	}
}

func TestWorkedUntil(t *testing.T) {
	day := model.Day{MorningEntry: "08:00", MorningExit: "12:00", AfternoonEntry: "12:30", AfternoonExit: "16:30"}
	tests := []struct {
		now  string
		want int
	}{
		{"07:00", 0},
		{"10:00", 120},
		{"12:15", 240},
		{"13:30", 300},
		{"18:00", 480},
	}
	for _, tt := range tests {
		if got := workedUntil(day, timecalc.TimeToMinutes(tt.now)); got != tt.want {
			t.Errorf("workedUntil(%s) = %d, want %d", tt.now, got, tt.want)
		}
	}
}

func TestPrintStatus(t *testing.T) {
	day := model.Day{MorningEntry: "08:00", MorningExit: "12:00", AfternoonEntry: "12:30", AfternoonExit: "16:30"}
	now := time.Date(2026, 3, 2, 10, 15, 0, 0, time.Local)

	var buf bytes.Buffer
	printStatus(&buf, day, now, 480)
	out := buf.String()
	for _, want := range []string{"Working since 08:00 (morning).", "Elapsed: 2h 15m 0s", "2h 15m worked, 5h 45m to go"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printStatus(&buf, model.Day{}, now, 480)
	if got := buf.String(); got != "Not clocked in today.\n" {
		t.Errorf("empty day status = %q", got)
	}
}
