package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseTime accepts RFC3339, RFC3339Nano, unix seconds and unix milliseconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e11 { // ms
			return time.UnixMilli(ts), true
		}
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns def if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseRange resolves a [from, to] query window. A missing "to" means now and
// a missing "from" means window before "to".
func ParseRange(fromStr, toStr string, now time.Time, window time.Duration) (time.Time, time.Time, error) {
	to := now
	if toStr != "" {
		t, ok := ParseTime(toStr)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %q", toStr)
		}
		to = t
	}
	from := to.Add(-window)
	if fromStr != "" {
		t, ok := ParseTime(fromStr)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %q", fromStr)
		}
		from = t
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from %s is after to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return from.UTC(), to.UTC(), nil
}

// ParseIntDefault parses s as int or returns def if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
