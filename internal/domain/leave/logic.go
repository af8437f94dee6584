package leave

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var half = decimal.RequireFromString("0.5")

// Recompute derives Closing from the other counters.
func (b *Balance) Recompute() {
	b.Closing = b.Opening.Add(b.Accrued).Add(b.CarriedForward).Add(b.Adjustment).
		Sub(b.Taken).Sub(b.Encashed).Sub(b.Forfeited).Sub(b.CarriedOut)
}

// Available is what can still be requested or encashed.
func (b Balance) Available() decimal.Decimal {
	return b.Closing.Sub(b.Pending)
}

// ApplySubmit reserves days as pending.
func ApplySubmit(b *Balance, days decimal.Decimal) error {
	if available := b.Available(); available.LessThan(days) {
		return fmt.Errorf("%w: available %s, requested %s", ErrInsufficientBalance, available.StringFixed(2), days.StringFixed(2))
	}
	b.Pending = b.Pending.Add(days)
	b.Recompute()
	return nil
}

// ApplyApprove turns reserved days into taken days.
func ApplyApprove(b *Balance, days decimal.Decimal) {
	b.Taken = b.Taken.Add(days)
	b.Pending = releasePending(b.Pending, days)
	b.Recompute()
}

// ApplyReject releases reserved days.
func ApplyReject(b *Balance, days decimal.Decimal) {
	b.Pending = releasePending(b.Pending, days)
	b.Recompute()
}

// ApplyCancel undoes whatever the application held against the balance in
// its previous status.
func ApplyCancel(b *Balance, days decimal.Decimal, from string) {
	switch from {
	case StatusSubmitted, StatusPendingApproval:
		b.Pending = releasePending(b.Pending, days)
	case StatusApproved:
		b.Taken = b.Taken.Sub(days)
		if b.Taken.IsNegative() {
			b.Taken = decimal.Zero
		}
	}
	b.Recompute()
}

func releasePending(pending, days decimal.Decimal) decimal.Decimal {
	pending = pending.Sub(days)
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

// ApplyAdjustment adds a signed manual correction.
func ApplyAdjustment(b *Balance, days decimal.Decimal) error {
	if days.IsZero() {
		return fmt.Errorf("%w: adjustment days must not be zero", ErrInvalidInput)
	}
	b.Adjustment = b.Adjustment.Add(days)
	b.Recompute()
	if b.Closing.LessThan(b.Pending) {
		return fmt.Errorf("%w: adjustment would leave less than pending days", ErrInsufficientBalance)
	}
	return nil
}

// ApplyEncash moves days out of the balance for payment.
func ApplyEncash(b *Balance, days decimal.Decimal) error {
	if available := b.Available(); available.LessThan(days) {
		return fmt.Errorf("%w: available %s, requested %s", ErrInsufficientBalance, available.StringFixed(2), days.StringFixed(2))
	}
	b.Encashed = b.Encashed.Add(days)
	b.Recompute()
	return nil
}

// canDecide lists the statuses an application may be approved or rejected from.
func canDecide(status string) bool {
	return status == StatusSubmitted || status == StatusPendingApproval
}

func canCancel(status string, start, today time.Time) bool {
	switch status {
	case StatusDraft, StatusSubmitted, StatusPendingApproval:
		return true
	case StatusApproved:
		return start.After(today)
	default:
		return false
	}
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func dayKey(d time.Time) string {
	return d.Format(time.DateOnly)
}

// CountDays returns calendar and working days in [start, end]. Weekends and
// holidays are not working days. A half day at either end counts as 0.5 when
// that end is a working day.
func CountDays(start, end time.Time, startHalf, endHalf bool, holidays map[string]bool) (decimal.Decimal, decimal.Decimal, error) {
	start, end = truncate(start), truncate(end)
	if end.Before(start) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: end date before start date", ErrInvalidInput)
	}
	if start.Equal(end) && startHalf && endHalf {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: a single day cannot have two half days", ErrInvalidInput)
	}

	total := decimal.Zero
	working := decimal.Zero
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		portion := decimal.NewFromInt(1)
		if (d.Equal(start) && startHalf) || (d.Equal(end) && endHalf) {
			portion = half
		}
		total = total.Add(portion)
		if !isWeekend(d) && !holidays[dayKey(d)] {
			working = working.Add(portion)
		}
	}
	return total, working, nil
}

// ReturnDate is the first working day after end.
func ReturnDate(end time.Time, holidays map[string]bool) time.Time {
	d := truncate(end).AddDate(0, 0, 1)
	for i := 0; i < 60 && (isWeekend(d) || holidays[dayKey(d)]); i++ {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ApplyAccrual credits one accrual period to b if it has not been credited
// for the period containing asOf. It reports whether anything changed.
func ApplyAccrual(b *Balance, c AccrualCandidate, asOf time.Time) bool {
	asOf = truncate(asOf)
	if c.StartAfterMonths > 0 && truncate(c.HireDate).AddDate(0, c.StartAfterMonths, 0).After(asOf) {
		return false
	}
	var credit decimal.Decimal
	var next time.Time
	switch c.Method {
	case AccrualMonthly:
		if b.LastAccrualDate != nil && b.LastAccrualDate.Year() == asOf.Year() && b.LastAccrualDate.Month() == asOf.Month() {
			return false
		}
		credit = c.Rate
		next = time.Date(asOf.Year(), asOf.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	case AccrualYearly:
		if b.LastAccrualDate != nil && b.LastAccrualDate.Year() == asOf.Year() {
			return false
		}
		credit = c.Entitlement
		next = time.Date(asOf.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return false
	}
	if c.Entitlement.IsPositive() {
		room := c.Entitlement.Sub(b.Accrued)
		if room.LessThan(credit) {
			credit = room
		}
	}
	if !credit.IsPositive() {
		return false
	}
	b.Accrued = b.Accrued.Add(credit)
	b.LastAccrualDate = &asOf
	b.NextAccrualDate = &next
	b.Recompute()
	return true
}

// CarryForward splits a year-end closing balance into the part moved to the
// next year and the part forfeited. A zero limit means no cap.
func CarryForward(closing decimal.Decimal, t LeaveType) (decimal.Decimal, decimal.Decimal) {
	if !closing.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	if !t.CanCarryForward {
		return decimal.Zero, closing
	}
	if t.MaxCarryForwardDays.IsPositive() && closing.GreaterThan(t.MaxCarryForwardDays) {
		return t.MaxCarryForwardDays, closing.Sub(t.MaxCarryForwardDays)
	}
	return closing, decimal.Zero
}

// EncashmentRate is the day rate for encashing leave against a monthly basic.
func EncashmentRate(basic decimal.Decimal) decimal.Decimal {
	return basic.Div(decimal.NewFromInt(workingDaysPerMonth)).Round(2)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
