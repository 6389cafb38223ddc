package timecalc

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the number of distinct minute-of-day values.
const MinutesPerDay = 24 * 60

// IsValidTime reports whether t is a strict 24-hour "HH:MM" time.
func IsValidTime(t string) bool {
	if len(t) != 5 || t[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if t[i] < '0' || t[i] > '9' {
			return false
		}
	}
	h := int(t[0]-'0')*10 + int(t[1]-'0')
	m := int(t[3]-'0')*10 + int(t[4]-'0')
	return h <= 23 && m <= 59
}

// TimeToMinutes converts "HH:MM" to minutes since midnight. Malformed input
// yields -1; guard with IsValidTime when the input is untrusted.
func TimeToMinutes(t string) int {
	h, m, ok := strings.Cut(t, ":")
	if !ok {
		return -1
	}
	hh, err := strconv.Atoi(h)
	if err != nil {
		return -1
	}
	mm, err := strconv.Atoi(m)
	if err != nil {
		return -1
	}
	return hh*60 + mm
}

// MinutesToTime formats minutes since midnight as zero-padded "HH:MM".
// The input is expected to be within a single day.
func MinutesToTime(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// ClampTime bounds v to [lo, hi], comparing all three as minutes.
func ClampTime(v, lo, hi string) string {
	m := TimeToMinutes(v)
	if m < TimeToMinutes(lo) {
		return lo
	}
	if m > TimeToMinutes(hi) {
		return hi
	}
	return v
}

// FixPartialTime repairs a time with exactly one colon whose parts may be a
// single digit ("9:5" becomes "09:05") and caps the minutes at 59. Strings
// with no colon or several colons are returned unchanged.
func FixPartialTime(t string) string {
	if strings.Count(t, ":") != 1 {
		return t
	}
	h, m, _ := strings.Cut(t, ":")
	if len(h) == 1 {
		h = "0" + h
	}
	if len(m) == 1 {
		m = "0" + m
	}
	if n, err := strconv.Atoi(m); err == nil && n > 59 {
		m = "59"
	}
	return h + ":" + m
}

// FormatTimeInput formats raw keystrokes as they are typed: non-digits are
// dropped, at most four digits are kept and a colon follows the first two
// once a third digit is present.
func FormatTimeInput(raw string) string {
	digits := make([]byte, 0, 4)
	for i := 0; i < len(raw) && len(digits) < 4; i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) <= 2 {
		return string(digits)
	}
	return string(digits[:2]) + ":" + string(digits[2:])
}

// ShiftTime returns t moved by delta minutes, wrapping around midnight, or ""
// when t is not a valid time.
func ShiftTime(t string, delta int) string {
	if !IsValidTime(t) {
		return ""
	}
	m := (TimeToMinutes(t) + delta) % MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return MinutesToTime(m)
}
