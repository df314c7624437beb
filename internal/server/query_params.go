package server

import (
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

type timeWindow struct {
	from *time.Time
	to   *time.Time
}

func parseWindow(from, to string) (timeWindow, error) {
	var (
		w   timeWindow
		err error
	)
	if w.from, err = parseTimeBound(from, false); err != nil {
		return w, newValidationError("from", "invalid_from", "expected RFC3339 or YYYY-MM-DD")
	}
	if w.to, err = parseTimeBound(to, true); err != nil {
		return w, newValidationError("to", "invalid_to", "expected RFC3339 or YYYY-MM-DD")
	}
	return w, nil
}

// parseTimeBound reads RFC3339 or a calendar date in UTC. Dates used as an
// upper bound extend to the last nanosecond of the day.
func parseTimeBound(value string, upper bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	day, err := time.ParseInLocation(dateOnlyLayout, value, time.UTC)
	if err != nil {
		return nil, err
	}
	if upper {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}
