package attendance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardPolicy() Policy {
	return Policy{
		StandardHoursPerDay:   decimal.NewFromInt(8),
		GracePeriodMinutes:    15,
		HalfDayThresholdHours: decimal.NewFromInt(4),
		OvertimeEligible:      true,
	}
}

func weekdaySchedule() Schedule {
	windows := map[int]Window{}
	for d := 1; d <= 5; d++ {
		windows[d] = Window{Start: 8 * 60, End: 17 * 60}
	}
	return Schedule{DayWindows: windows, BreakMinutes: 60}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 510, m)

	for _, bad := range []string{"8", "24:00", "07:60", "ab:cd", ""} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestParseWindows(t *testing.T) {
	windows, err := ParseWindows(map[string]string{"monday": "08:00-17:00", "6": "22:00-06:00"})
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 480, End: 1020}, windows[1])
	assert.Equal(t, Window{Start: 1320, End: 360}, windows[6])

	_, err = ParseWindows(map[string]string{"funday": "08:00-17:00"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseWindows(map[string]string{"1": "08:00"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEvaluateClockIn(t *testing.T) {
	monday := func(h, m int) time.Time { return time.Date(2025, 3, 3, h, m, 0, 0, time.UTC) }

	status, late := EvaluateClockIn(monday(8, 10), weekdaySchedule(), standardPolicy())
	assert.Equal(t, StatusPresent, status)
	assert.Zero(t, late)

	status, late = EvaluateClockIn(monday(8, 15), weekdaySchedule(), standardPolicy())
	assert.Equal(t, StatusPresent, status)
	assert.Zero(t, late)

	status, late = EvaluateClockIn(monday(8, 40), weekdaySchedule(), standardPolicy())
	assert.Equal(t, StatusLate, status)
	assert.Equal(t, 40, late)

	saturday := time.Date(2025, 3, 8, 11, 0, 0, 0, time.UTC)
	status, _ = EvaluateClockIn(saturday, weekdaySchedule(), standardPolicy())
	assert.Equal(t, StatusPresent, status)
}

func TestSplitHoursRegularAndOvertime(t *testing.T) {
	in := time.Date(2025, 3, 3, 7, 0, 0, 0, time.UTC)
	out := time.Date(2025, 3, 3, 18, 30, 0, 0, time.UTC)

	split := SplitHours(in, out, 60, standardPolicy())
	assert.True(t, split.Total.Equal(decimal.RequireFromString("10.5")), split.Total.String())
	assert.True(t, split.Regular.Equal(decimal.NewFromInt(8)))
	assert.True(t, split.Overtime.Equal(decimal.RequireFromString("2.5")))
	assert.False(t, split.HalfDay)
}

func TestSplitHoursOvertimeNotEligible(t *testing.T) {
	policy := standardPolicy()
	policy.OvertimeEligible = false
	in := time.Date(2025, 3, 3, 7, 0, 0, 0, time.UTC)
	out := time.Date(2025, 3, 3, 19, 0, 0, 0, time.UTC)

	split := SplitHours(in, out, 0, policy)
	assert.True(t, split.Regular.Equal(decimal.NewFromInt(8)))
	assert.True(t, split.Overtime.IsZero())
}

func TestSplitHoursOvernightWraps(t *testing.T) {
	in := time.Date(2025, 3, 3, 22, 0, 0, 0, time.UTC)
	out := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)

	split := SplitHours(in, out, 0, standardPolicy())
	assert.True(t, split.Total.Equal(decimal.NewFromInt(8)), split.Total.String())
	assert.True(t, split.Overtime.IsZero())
}

func TestSplitHoursHalfDay(t *testing.T) {
	in := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	out := time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC)

	split := SplitHours(in, out, 30, standardPolicy())
	assert.True(t, split.Total.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, split.HalfDay)
	assert.Equal(t, StatusHalfDay, ClockOutStatus(StatusLate, split))
}

func TestSplitHoursBreakLongerThanShift(t *testing.T) {
	in := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	out := in.Add(30 * time.Minute)

	split := SplitHours(in, out, 60, standardPolicy())
	assert.True(t, split.Total.IsZero())
}

func TestClockOutStatusKeepsLate(t *testing.T) {
	full := HoursSplit{Total: decimal.NewFromInt(8)}
	assert.Equal(t, StatusLate, ClockOutStatus(StatusLate, full))
	assert.Equal(t, StatusPresent, ClockOutStatus("", full))
}

func TestOvertimeHours(t *testing.T) {
	h, err := OvertimeHours("17:00", "19:30")
	require.NoError(t, err)
	assert.True(t, h.Equal(decimal.RequireFromString("2.5")))

	h, err = OvertimeHours("22:00", "02:00")
	require.NoError(t, err)
	assert.True(t, h.Equal(decimal.NewFromInt(4)))
}

func TestMonthRange(t *testing.T) {
	from, to, err := MonthRange("2024-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), to)

	_, _, err = MonthRange("2024/12")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
