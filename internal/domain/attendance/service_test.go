package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolerp/internal/domain/auth"
)

type fakeStore struct {
	StoreAPI
	employees map[string]bool
	records   map[string]Record
	overtime  map[string]OvertimeRequest
	noSched   bool
	seq       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		employees: map[string]bool{"emp": true},
		records:   map[string]Record{},
		overtime:  map[string]OvertimeRequest{},
	}
}

func (f *fakeStore) EmployeeExists(_ context.Context, id string) (bool, error) {
	return f.employees[id], nil
}

func (f *fakeStore) ActiveSchedule(_ context.Context, _ string, _ time.Time) (Schedule, Policy, error) {
	if f.noSched {
		return Schedule{}, Policy{}, ErrNoSchedule
	}
	sched := weekdaySchedule()
	sched.ID = "sched"
	return sched, standardPolicy(), nil
}

func (f *fakeStore) ScheduleByID(ctx context.Context, _ string) (Schedule, Policy, error) {
	return f.ActiveSchedule(ctx, "", time.Time{})
}

func (f *fakeStore) RecordFor(_ context.Context, employeeID string, day time.Time) (Record, error) {
	for _, r := range f.records {
		if r.EmployeeID == employeeID && r.Date.Equal(day) {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

func (f *fakeStore) InsertClockIn(_ context.Context, rec Record) (string, error) {
	f.seq++
	rec.ID = string(rune('a' + f.seq))
	f.records[rec.ID] = rec
	return rec.ID, nil
}

func (f *fakeStore) CompleteClockOut(_ context.Context, id string, at time.Time, method, status string, split HoursSplit) error {
	rec := f.records[id]
	if rec.CheckOutAt != nil {
		return ErrAlreadyClockedOut
	}
	rec.CheckOutAt = &at
	rec.CheckOutMethod = method
	rec.Status = status
	rec.TotalHours, rec.RegularHours, rec.OvertimeHours = split.Total, split.Regular, split.Overtime
	f.records[id] = rec
	return nil
}

func (f *fakeStore) GetRecord(_ context.Context, id string) (Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) UpsertRecord(_ context.Context, rec Record) (string, error) {
	rec.ID = "manual"
	f.records[rec.ID] = rec
	return rec.ID, nil
}

func (f *fakeStore) GetOvertime(_ context.Context, id string) (OvertimeRequest, error) {
	req, ok := f.overtime[id]
	if !ok {
		return OvertimeRequest{}, ErrNotFound
	}
	return req, nil
}

func (f *fakeStore) DecideOvertime(_ context.Context, id, status, _, notes string, actual *decimal.Decimal) error {
	req, ok := f.overtime[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != OvertimePending {
		return ErrNotPending
	}
	req.Status = status
	req.Notes = notes
	if actual != nil {
		req.ActualHours = decimal.NewNullDecimal(*actual)
	}
	f.overtime[id] = req
	return nil
}

func (f *fakeStore) StatusCounts(_ context.Context, _, _ time.Time, _ string) (map[string]int, error) {
	return map[string]int{StatusPresent: 10, StatusLate: 2, StatusAbsent: 1}, nil
}

func serviceAt(store *fakeStore, at time.Time) *Service {
	svc := NewService(store, nil, time.UTC)
	svc.Now = func() time.Time { return at }
	return svc
}

func TestClockInMarksLate(t *testing.T) {
	store := newFakeStore()
	svc := serviceAt(store, time.Date(2025, 3, 3, 8, 45, 0, 0, time.UTC))

	rec, err := svc.ClockIn(context.Background(), ClockInput{EmployeeID: "emp"})
	require.NoError(t, err)
	assert.Equal(t, StatusLate, rec.Status)
	assert.Equal(t, 45, rec.LateByMinutes)
	assert.Equal(t, MethodMobile, rec.CheckInMethod)

	_, err = svc.ClockIn(context.Background(), ClockInput{EmployeeID: "emp"})
	assert.ErrorIs(t, err, ErrAlreadyClockedIn)
}

func TestClockInErrors(t *testing.T) {
	store := newFakeStore()
	svc := serviceAt(store, time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC))

	_, err := svc.ClockIn(context.Background(), ClockInput{EmployeeID: "ghost"})
	assert.ErrorIs(t, err, ErrEmployeeNotFound)

	store.noSched = true
	_, err = svc.ClockIn(context.Background(), ClockInput{EmployeeID: "emp"})
	assert.ErrorIs(t, err, ErrNoSchedule)
}

func TestClockOutSplitsHours(t *testing.T) {
	store := newFakeStore()
	svc := serviceAt(store, time.Date(2025, 3, 3, 7, 30, 0, 0, time.UTC))
	_, err := svc.ClockIn(context.Background(), ClockInput{EmployeeID: "emp"})
	require.NoError(t, err)

	svc.Now = func() time.Time { return time.Date(2025, 3, 3, 18, 30, 0, 0, time.UTC) }
	rec, err := svc.ClockOut(context.Background(), ClockInput{EmployeeID: "emp", Method: MethodWeb})
	require.NoError(t, err)
	assert.True(t, rec.TotalHours.Equal(decimal.NewFromInt(10)), rec.TotalHours.String())
	assert.True(t, rec.OvertimeHours.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, StatusPresent, rec.Status)

	_, err = svc.ClockOut(context.Background(), ClockInput{EmployeeID: "emp"})
	assert.ErrorIs(t, err, ErrAlreadyClockedOut)
}

func TestClockOutAcrossMidnight(t *testing.T) {
	store := newFakeStore()
	svc := serviceAt(store, time.Date(2025, 3, 3, 22, 0, 0, 0, time.UTC))
	_, err := svc.ClockIn(context.Background(), ClockInput{EmployeeID: "emp"})
	require.NoError(t, err)

	svc.Now = func() time.Time { return time.Date(2025, 3, 4, 7, 0, 0, 0, time.UTC) }
	rec, err := svc.ClockOut(context.Background(), ClockInput{EmployeeID: "emp"})
	require.NoError(t, err)
	assert.True(t, rec.TotalHours.Equal(decimal.NewFromInt(8)), rec.TotalHours.String())
}

func TestClockOutWithoutClockIn(t *testing.T) {
	svc := serviceAt(newFakeStore(), time.Date(2025, 3, 3, 17, 0, 0, 0, time.UTC))
	_, err := svc.ClockOut(context.Background(), ClockInput{EmployeeID: "emp"})
	assert.ErrorIs(t, err, ErrNotClockedIn)
}

func TestRecordManualDerivesStatus(t *testing.T) {
	store := newFakeStore()
	svc := serviceAt(store, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	hr := auth.UserContext{UserID: "hr", RoleName: auth.RoleHRManager}

	rec, err := svc.RecordManual(context.Background(), hr, ManualRecordInput{
		EmployeeID: "emp", Date: "2025-03-03", CheckIn: "08:05", CheckOut: "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusHalfDay, rec.Status)

	rec, err = svc.RecordManual(context.Background(), hr, ManualRecordInput{EmployeeID: "emp", Date: "2025-03-04"})
	require.NoError(t, err)
	assert.Equal(t, StatusAbsent, rec.Status)

	_, err = svc.RecordManual(context.Background(), hr, ManualRecordInput{EmployeeID: "emp", Date: "2025-03-04", CheckOut: "17:00"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOvertimeDecisionOnlyWhenPending(t *testing.T) {
	store := newFakeStore()
	store.overtime["ot"] = OvertimeRequest{ID: "ot", Status: OvertimePending, EstimatedHours: decimal.NewFromInt(3)}
	svc := serviceAt(store, time.Now())
	user := auth.UserContext{UserID: "sup", RoleName: auth.RoleSupervisor}

	actual := decimal.RequireFromString("2.5")
	req, err := svc.ApproveOvertime(context.Background(), user, "ot", OvertimeDecision{ActualHours: &actual})
	require.NoError(t, err)
	assert.Equal(t, OvertimeApproved, req.Status)
	assert.True(t, req.ActualHours.Decimal.Equal(actual))

	_, err = svc.RejectOvertime(context.Background(), user, "ot", OvertimeDecision{Notes: "late"})
	assert.ErrorIs(t, err, ErrNotPending)

	bad := decimal.NewFromInt(30)
	_, err = svc.ApproveOvertime(context.Background(), user, "ot", OvertimeDecision{ActualHours: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDailySummaryTotals(t *testing.T) {
	svc := serviceAt(newFakeStore(), time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC))
	summary, err := svc.DailySummary(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-03", summary.Date)
	assert.Equal(t, 13, summary.Total)
	assert.Equal(t, 2, summary.Late)

	_, err = svc.DailySummary(context.Background(), "03/03/2025")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
