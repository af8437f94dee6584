package leave

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCountDaysSkipsWeekendsAndHolidays(t *testing.T) {
	total, working, err := CountDays(day("2026-03-02"), day("2026-03-08"), false, false, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("7")))
	assert.True(t, working.Equal(dec("5")))

	holidays := map[string]bool{"2026-03-04": true}
	_, working, err = CountDays(day("2026-03-02"), day("2026-03-08"), false, false, holidays)
	require.NoError(t, err)
	assert.True(t, working.Equal(dec("4")))
}

func TestCountDaysHalfDays(t *testing.T) {
	total, working, err := CountDays(day("2026-03-02"), day("2026-03-06"), true, true, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("4")))
	assert.True(t, working.Equal(dec("4")))

	total, working, err = CountDays(day("2026-03-02"), day("2026-03-02"), true, false, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("0.5")))
	assert.True(t, working.Equal(dec("0.5")))

	_, _, err = CountDays(day("2026-03-02"), day("2026-03-02"), true, true, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCountDaysRejectsReversedRange(t *testing.T) {
	_, _, err := CountDays(day("2026-03-05"), day("2026-03-02"), false, false, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReturnDate(t *testing.T) {
	assert.Equal(t, day("2026-03-09"), ReturnDate(day("2026-03-06"), nil))
	assert.Equal(t, day("2026-03-10"), ReturnDate(day("2026-03-06"), map[string]bool{"2026-03-09": true}))
	assert.Equal(t, day("2026-03-04"), ReturnDate(day("2026-03-03"), nil))
}

func TestBalanceLifecycle(t *testing.T) {
	b := Balance{Opening: dec("10"), Accrued: dec("5")}
	b.Recompute()
	require.True(t, b.Closing.Equal(dec("15")))

	require.NoError(t, ApplySubmit(&b, dec("4")))
	assert.True(t, b.Pending.Equal(dec("4")))
	assert.True(t, b.Available().Equal(dec("11")))

	ApplyApprove(&b, dec("4"))
	assert.True(t, b.Taken.Equal(dec("4")))
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Closing.Equal(dec("11")))

	require.NoError(t, ApplySubmit(&b, dec("3")))
	ApplyReject(&b, dec("3"))
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Closing.Equal(dec("11")))

	ApplyCancel(&b, dec("4"), StatusApproved)
	assert.True(t, b.Taken.IsZero())
	assert.True(t, b.Closing.Equal(dec("15")))
}

func TestApplySubmitInsufficient(t *testing.T) {
	b := Balance{Opening: dec("2"), Pending: dec("1")}
	b.Recompute()
	err := ApplySubmit(&b, dec("1.5"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, b.Pending.Equal(dec("1")))
}

func TestApplyAdjustment(t *testing.T) {
	b := Balance{Opening: dec("5"), Pending: dec("3")}
	b.Recompute()
	assert.ErrorIs(t, ApplyAdjustment(&b, decimal.Zero), ErrInvalidInput)
	require.NoError(t, ApplyAdjustment(&b, dec("-2")))
	assert.True(t, b.Closing.Equal(dec("3")))
	assert.ErrorIs(t, ApplyAdjustment(&b, dec("-1")), ErrInsufficientBalance)
}

func TestCanCancel(t *testing.T) {
	today := day("2026-03-10")
	assert.True(t, canCancel(StatusDraft, today, today))
	assert.True(t, canCancel(StatusPendingApproval, today, today))
	assert.True(t, canCancel(StatusApproved, day("2026-03-11"), today))
	assert.False(t, canCancel(StatusApproved, today, today))
	assert.False(t, canCancel(StatusRejected, day("2026-04-01"), today))
}

func TestApplyAccrualMonthlyOncePerMonth(t *testing.T) {
	c := AccrualCandidate{Method: AccrualMonthly, Rate: dec("1.75"), Entitlement: dec("21"), HireDate: day("2020-01-01")}
	var b Balance

	require.True(t, ApplyAccrual(&b, c, day("2026-03-01")))
	assert.True(t, b.Accrued.Equal(dec("1.75")))
	assert.Equal(t, day("2026-04-01"), *b.NextAccrualDate)

	assert.False(t, ApplyAccrual(&b, c, day("2026-03-20")))
	assert.True(t, b.Accrued.Equal(dec("1.75")))

	require.True(t, ApplyAccrual(&b, c, day("2026-04-01")))
	assert.True(t, b.Closing.Equal(dec("3.5")))
}

func TestApplyAccrualCapsAtEntitlement(t *testing.T) {
	c := AccrualCandidate{Method: AccrualMonthly, Rate: dec("2"), Entitlement: dec("3"), HireDate: day("2020-01-01")}
	b := Balance{Accrued: dec("2")}
	require.True(t, ApplyAccrual(&b, c, day("2026-05-01")))
	assert.True(t, b.Accrued.Equal(dec("3")))
	assert.False(t, ApplyAccrual(&b, c, day("2026-06-01")))
}

func TestApplyAccrualWaitsForServiceMonths(t *testing.T) {
	c := AccrualCandidate{Method: AccrualMonthly, Rate: dec("1"), HireDate: day("2026-01-15"), StartAfterMonths: 3}
	var b Balance
	assert.False(t, ApplyAccrual(&b, c, day("2026-04-01")))
	assert.True(t, ApplyAccrual(&b, c, day("2026-05-01")))
}

func TestApplyAccrualYearly(t *testing.T) {
	c := AccrualCandidate{Method: AccrualYearly, Entitlement: dec("14"), HireDate: day("2020-01-01")}
	var b Balance
	require.True(t, ApplyAccrual(&b, c, day("2026-01-01")))
	assert.True(t, b.Accrued.Equal(dec("14")))
	assert.False(t, ApplyAccrual(&b, c, day("2026-02-01")))
}

func TestCarryForwardSplit(t *testing.T) {
	capped := LeaveType{CanCarryForward: true, MaxCarryForwardDays: dec("5")}
	carry, forfeit := CarryForward(dec("8"), capped)
	assert.True(t, carry.Equal(dec("5")))
	assert.True(t, forfeit.Equal(dec("3")))

	uncapped := LeaveType{CanCarryForward: true}
	carry, forfeit = CarryForward(dec("8"), uncapped)
	assert.True(t, carry.Equal(dec("8")))
	assert.True(t, forfeit.IsZero())

	carry, forfeit = CarryForward(dec("8"), LeaveType{})
	assert.True(t, carry.IsZero())
	assert.True(t, forfeit.Equal(dec("8")))

	carry, forfeit = CarryForward(dec("-1"), capped)
	assert.True(t, carry.IsZero())
	assert.True(t, forfeit.IsZero())
}

func TestEncashmentRate(t *testing.T) {
	assert.True(t, EncashmentRate(dec("2200")).Equal(dec("100")))
	assert.True(t, EncashmentRate(dec("1000")).Equal(dec("45.45")))
}
