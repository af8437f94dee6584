package shared

import (
	"strings"
	"time"
)

const monthLayout = "2006-01"

// ParseDate reads a calendar day. Full RFC3339 timestamps are accepted and
// truncated to their date.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if day, err := time.Parse(time.DateOnly, value); err == nil {
		return day, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseMonth reads YYYY-MM and returns the first day of that month.
func ParseMonth(value string) (time.Time, error) {
	return time.Parse(monthLayout, strings.TrimSpace(value))
}

// Month validates a YYYY-MM query value, defaulting to the current month
// when raw is empty.
func (v *Validator) Month(field, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return time.Now().Format(monthLayout)
	}
	month, err := ParseMonth(raw)
	if err != nil {
		v.Add(field, "must be a month in YYYY-MM format")
		return ""
	}
	return month.Format(monthLayout)
}
