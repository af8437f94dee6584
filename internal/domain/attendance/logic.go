package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const minutesPerDay = 24 * 60

var sixty = decimal.NewFromInt(60)

// ParseClock turns "HH:MM" into minutes since midnight.
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidInput, value)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidInput, value)
	}
	return h*60 + m, nil
}

// ParseWindows converts weekday keyed "HH:MM-HH:MM" ranges into windows.
// Keys are 0 (Sunday) to 6 or lower case English weekday names.
func ParseWindows(days map[string]string) (map[int]Window, error) {
	out := make(map[int]Window, len(days))
	for key, span := range days {
		day, err := parseWeekday(key)
		if err != nil {
			return nil, err
		}
		bounds := strings.Split(span, "-")
		if len(bounds) != 2 {
			return nil, fmt.Errorf("%w: window %q", ErrInvalidInput, span)
		}
		start, err := ParseClock(bounds[0])
		if err != nil {
			return nil, err
		}
		end, err := ParseClock(bounds[1])
		if err != nil {
			return nil, err
		}
		if start == end {
			return nil, fmt.Errorf("%w: empty window %q", ErrInvalidInput, span)
		}
		out[day] = Window{Start: start, End: end}
	}
	return out, nil
}

func parseWeekday(key string) (int, error) {
	if n, err := strconv.Atoi(key); err == nil && n >= 0 && n <= 6 {
		return n, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), key) {
			return int(d), nil
		}
	}
	return 0, fmt.Errorf("%w: weekday %q", ErrInvalidInput, key)
}

// EvaluateClockIn decides the status of a check-in at local time at. Days
// without a window are never late.
func EvaluateClockIn(at time.Time, schedule Schedule, policy Policy) (string, int) {
	window, ok := schedule.DayWindows[int(at.Weekday())]
	if !ok {
		return StatusPresent, 0
	}
	minute := at.Hour()*60 + at.Minute()
	late := minute - (window.Start + policy.GracePeriodMinutes)
	if late <= 0 {
		return StatusPresent, 0
	}
	return StatusLate, minute - window.Start
}

type HoursSplit struct {
	Total    decimal.Decimal
	Regular  decimal.Decimal
	Overtime decimal.Decimal
	HalfDay  bool
}

// SplitHours computes worked hours between two clock readings. A check-out
// earlier in the day than the check-in is taken as the next day.
func SplitHours(in, out time.Time, breakMinutes int, policy Policy) HoursSplit {
	elapsed := out.Sub(in)
	if elapsed < 0 {
		elapsed += 24 * time.Hour
	}
	minutes := int(elapsed / time.Minute)
	if minutes >= minutesPerDay {
		minutes = minutes % minutesPerDay
	}
	if minutes > breakMinutes {
		minutes -= breakMinutes
	} else {
		minutes = 0
	}

	total := decimal.NewFromInt(int64(minutes)).Div(sixty).Round(2)
	split := HoursSplit{Total: total, Regular: total, Overtime: decimal.Zero}
	if standard := policy.StandardHoursPerDay; standard.IsPositive() && total.GreaterThan(standard) {
		split.Regular = standard
		if policy.OvertimeEligible {
			split.Overtime = total.Sub(standard)
		}
	}
	split.HalfDay = policy.HalfDayThresholdHours.IsPositive() && total.LessThan(policy.HalfDayThresholdHours)
	return split
}

// ClockOutStatus keeps a late mark unless the day ends up a half day.
func ClockOutStatus(current string, split HoursSplit) string {
	if split.HalfDay {
		return StatusHalfDay
	}
	if current == "" {
		return StatusPresent
	}
	return current
}

// OvertimeHours is the span of an overtime request, wrapping past midnight.
func OvertimeHours(start, end string) (decimal.Decimal, error) {
	s, err := ParseClock(start)
	if err != nil {
		return decimal.Zero, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return decimal.Zero, err
	}
	span := e - s
	if span <= 0 {
		span += minutesPerDay
	}
	return decimal.NewFromInt(int64(span)).Div(sixty).Round(2), nil
}

// MonthRange returns the first day of month "YYYY-MM" and the first day of
// the following month.
func MonthRange(month string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: month %q", ErrInvalidInput, month)
	}
	return start, start.AddDate(0, 1, 0), nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validStatus(status string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
