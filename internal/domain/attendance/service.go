package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"schoolerp/internal/domain/audit"
	"schoolerp/internal/domain/auth"
)

type StoreAPI interface {
	EmployeeExists(ctx context.Context, employeeID string) (bool, error)
	ActiveSchedule(ctx context.Context, employeeID string, day time.Time) (Schedule, Policy, error)
	ScheduleByID(ctx context.Context, scheduleID string) (Schedule, Policy, error)
	ListPolicies(ctx context.Context) ([]Policy, error)
	CreatePolicy(ctx context.Context, in PolicyInput, effectiveFrom time.Time) (string, error)
	ListSchedules(ctx context.Context) ([]Schedule, error)
	CreateSchedule(ctx context.Context, in ScheduleInput, windows map[int]Window) (string, error)
	AssignSchedule(ctx context.Context, employeeID, scheduleID string, from time.Time) (string, error)
	RecordFor(ctx context.Context, employeeID string, day time.Time) (Record, error)
	InsertClockIn(ctx context.Context, rec Record) (string, error)
	CompleteClockOut(ctx context.Context, recordID string, at time.Time, method, status string, split HoursSplit) error
	UpsertRecord(ctx context.Context, rec Record) (string, error)
	GetRecord(ctx context.Context, id string) (Record, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	StatusCounts(ctx context.Context, from, to time.Time, employeeID string) (map[string]int, error)
	HourTotals(ctx context.Context, employeeID string, from, to time.Time) (decimal.Decimal, decimal.Decimal, int, error)
	CreateOvertime(ctx context.Context, req OvertimeRequest) (string, error)
	GetOvertime(ctx context.Context, id string) (OvertimeRequest, error)
	DecideOvertime(ctx context.Context, id, status, approverID, notes string, actual *decimal.Decimal) error
	ListOvertime(ctx context.Context, filter OvertimeFilter) ([]OvertimeRequest, error)
	CreateShiftType(ctx context.Context, in ShiftTypeInput, night bool) (string, error)
	ListShiftTypes(ctx context.Context) ([]ShiftType, error)
	AssignShift(ctx context.Context, employeeID, shiftTypeID string, day time.Time) (string, error)
	ListShiftAssignments(ctx context.Context, filter ShiftFilter) ([]ShiftAssignment, error)
}

type Service struct {
	Store    StoreAPI
	Audit    *audit.Service
	Location *time.Location
	Now      func() time.Time
}

func NewService(store StoreAPI, auditSvc *audit.Service, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{Store: store, Audit: auditSvc, Location: loc, Now: time.Now}
}

func (s *Service) now() time.Time {
	return s.Now().In(s.Location)
}

func (s *Service) ensureEmployee(ctx context.Context, employeeID string) error {
	ok, err := s.Store.EmployeeExists(ctx, employeeID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEmployeeNotFound
	}
	return nil
}

func (s *Service) ClockIn(ctx context.Context, in ClockInput) (Record, error) {
	if err := s.ensureEmployee(ctx, in.EmployeeID); err != nil {
		return Record{}, err
	}
	now := s.now()
	today := dateOf(now)

	existing, err := s.Store.RecordFor(ctx, in.EmployeeID, today)
	switch {
	case err == nil && existing.CheckInAt != nil:
		return Record{}, ErrAlreadyClockedIn
	case err != nil && !errors.Is(err, ErrNotFound):
		return Record{}, err
	}

	schedule, policy, err := s.Store.ActiveSchedule(ctx, in.EmployeeID, today)
	if err != nil {
		return Record{}, err
	}
	status, lateBy := EvaluateClockIn(now, schedule, policy)
	method := in.Method
	if method == "" {
		method = MethodMobile
	}
	id, err := s.Store.InsertClockIn(ctx, Record{
		EmployeeID:    in.EmployeeID,
		Date:          today,
		ScheduleID:    &schedule.ID,
		CheckInAt:     &now,
		CheckInMethod: method,
		Status:        status,
		LateByMinutes: lateBy,
	})
	if err != nil {
		return Record{}, err
	}
	return s.Store.GetRecord(ctx, id)
}

// ClockOut closes today's record, or yesterday's when it is still open so a
// shift can cross midnight.
func (s *Service) ClockOut(ctx context.Context, in ClockInput) (Record, error) {
	if err := s.ensureEmployee(ctx, in.EmployeeID); err != nil {
		return Record{}, err
	}
	now := s.now()
	today := dateOf(now)

	rec, err := s.Store.RecordFor(ctx, in.EmployeeID, today)
	if errors.Is(err, ErrNotFound) {
		prev, prevErr := s.Store.RecordFor(ctx, in.EmployeeID, today.AddDate(0, 0, -1))
		if prevErr != nil || prev.CheckInAt == nil || prev.CheckOutAt != nil {
			return Record{}, ErrNotClockedIn
		}
		rec, err = prev, nil
	}
	if err != nil {
		return Record{}, err
	}
	if rec.CheckInAt == nil {
		return Record{}, ErrNotClockedIn
	}
	if rec.CheckOutAt != nil {
		return Record{}, ErrAlreadyClockedOut
	}

	schedule, policy, err := s.scheduleFor(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	split := SplitHours(rec.CheckInAt.In(s.Location), now, schedule.BreakMinutes, policy)
	method := in.Method
	if method == "" {
		method = MethodMobile
	}
	if err := s.Store.CompleteClockOut(ctx, rec.ID, now, method, ClockOutStatus(rec.Status, split), split); err != nil {
		return Record{}, err
	}
	return s.Store.GetRecord(ctx, rec.ID)
}

func (s *Service) scheduleFor(ctx context.Context, rec Record) (Schedule, Policy, error) {
	if rec.ScheduleID != nil {
		return s.Store.ScheduleByID(ctx, *rec.ScheduleID)
	}
	return s.Store.ActiveSchedule(ctx, rec.EmployeeID, rec.Date)
}

// RecordManual writes an HR entered day, deriving hours and status from the
// employee's schedule when both times are given.
func (s *Service) RecordManual(ctx context.Context, user auth.UserContext, in ManualRecordInput) (Record, error) {
	if err := s.ensureEmployee(ctx, in.EmployeeID); err != nil {
		return Record{}, err
	}
	day, err := time.ParseInLocation(time.DateOnly, in.Date, s.Location)
	if err != nil {
		return Record{}, fmt.Errorf("%w: attendanceDate", ErrInvalidInput)
	}
	rec := Record{EmployeeID: in.EmployeeID, Date: dateOf(day), Status: in.Status, Notes: strings.TrimSpace(in.Notes)}
	rec.TotalHours, rec.RegularHours, rec.OvertimeHours = decimal.Zero, decimal.Zero, decimal.Zero

	if in.CheckIn != "" {
		schedule, policy, err := s.Store.ActiveSchedule(ctx, in.EmployeeID, rec.Date)
		if err != nil {
			return Record{}, err
		}
		rec.ScheduleID = &schedule.ID
		checkIn, err := atClock(day, in.CheckIn)
		if err != nil {
			return Record{}, err
		}
		rec.CheckInAt = &checkIn
		status, lateBy := EvaluateClockIn(checkIn, schedule, policy)
		rec.LateByMinutes = lateBy
		if in.CheckOut != "" {
			checkOut, err := atClock(day, in.CheckOut)
			if err != nil {
				return Record{}, err
			}
			if checkOut.Before(checkIn) {
				checkOut = checkOut.AddDate(0, 0, 1)
			}
			rec.CheckOutAt = &checkOut
			split := SplitHours(checkIn, checkOut, schedule.BreakMinutes, policy)
			rec.TotalHours, rec.RegularHours, rec.OvertimeHours = split.Total, split.Regular, split.Overtime
			status = ClockOutStatus(status, split)
		}
		if rec.Status == "" {
			rec.Status = status
		}
	} else if in.CheckOut != "" {
		return Record{}, fmt.Errorf("%w: checkOut requires checkIn", ErrInvalidInput)
	}
	if rec.Status == "" {
		rec.Status = StatusAbsent
	}
	if !validStatus(rec.Status) {
		return Record{}, fmt.Errorf("%w: status", ErrInvalidInput)
	}

	id, err := s.Store.UpsertRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.record(ctx, user, "attendance.record", "attendance_record", id, map[string]any{"date": in.Date, "status": rec.Status})
	return s.Store.GetRecord(ctx, id)
}

func atClock(day time.Time, clock string) (time.Time, error) {
	minutes, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, day.Location()), nil
}

func (s *Service) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.Store.ListRecords(ctx, filter)
}

func (s *Service) DailySummary(ctx context.Context, date string) (DailySummary, error) {
	day := dateOf(s.now())
	if date != "" {
		parsed, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return DailySummary{}, fmt.Errorf("%w: date", ErrInvalidInput)
		}
		day = parsed
	}
	counts, err := s.Store.StatusCounts(ctx, day, day.AddDate(0, 0, 1), "")
	if err != nil {
		return DailySummary{}, err
	}
	summary := DailySummary{
		Date:    day.Format(time.DateOnly),
		Present: counts[StatusPresent],
		Absent:  counts[StatusAbsent],
		Late:    counts[StatusLate],
		OnLeave: counts[StatusOnLeave],
		HalfDay: counts[StatusHalfDay],
	}
	for _, n := range counts {
		summary.Total += n
	}
	return summary, nil
}

func (s *Service) MonthlySummary(ctx context.Context, employeeID, month string) (MonthlySummary, error) {
	if month == "" {
		month = s.now().Format("2006-01")
	}
	from, to, err := MonthRange(month)
	if err != nil {
		return MonthlySummary{}, err
	}
	counts, err := s.Store.StatusCounts(ctx, from, to, employeeID)
	if err != nil {
		return MonthlySummary{}, err
	}
	total, overtime, late, err := s.Store.HourTotals(ctx, employeeID, from, to)
	if err != nil {
		return MonthlySummary{}, err
	}
	summary := MonthlySummary{
		EmployeeID:    employeeID,
		Month:         month,
		ByStatus:      counts,
		TotalHours:    total,
		OvertimeHours: overtime,
		LateMinutes:   late,
	}
	for _, n := range counts {
		summary.DaysRecorded += n
	}
	return summary, nil
}

func (s *Service) ListPolicies(ctx context.Context) ([]Policy, error) {
	return s.Store.ListPolicies(ctx)
}

func (s *Service) CreatePolicy(ctx context.Context, user auth.UserContext, in PolicyInput) (string, error) {
	from, err := time.Parse(time.DateOnly, in.EffectiveFrom)
	if err != nil {
		return "", fmt.Errorf("%w: effectiveFrom", ErrInvalidInput)
	}
	if in.HalfDayThresholdHours.GreaterThan(in.StandardHoursPerDay) {
		return "", fmt.Errorf("%w: halfDayThresholdHours exceeds standardHoursPerDay", ErrInvalidInput)
	}
	id, err := s.Store.CreatePolicy(ctx, in, from)
	if err == nil {
		s.record(ctx, user, "attendance.policy.create", "attendance_policy", id, in)
	}
	return id, err
}

func (s *Service) ListSchedules(ctx context.Context) ([]Schedule, error) {
	return s.Store.ListSchedules(ctx)
}

func (s *Service) CreateSchedule(ctx context.Context, user auth.UserContext, in ScheduleInput) (string, error) {
	windows, err := ParseWindows(in.Days)
	if err != nil {
		return "", err
	}
	id, err := s.Store.CreateSchedule(ctx, in, windows)
	if err == nil {
		s.record(ctx, user, "attendance.schedule.create", "work_schedule", id, in)
	}
	return id, err
}

func (s *Service) AssignSchedule(ctx context.Context, user auth.UserContext, in AssignScheduleInput) (string, error) {
	if err := s.ensureEmployee(ctx, in.EmployeeID); err != nil {
		return "", err
	}
	from, err := time.Parse(time.DateOnly, in.EffectiveFrom)
	if err != nil {
		return "", fmt.Errorf("%w: effectiveFrom", ErrInvalidInput)
	}
	if _, _, err := s.Store.ScheduleByID(ctx, in.ScheduleID); err != nil {
		return "", err
	}
	id, err := s.Store.AssignSchedule(ctx, in.EmployeeID, in.ScheduleID, from)
	if err == nil {
		s.record(ctx, user, "attendance.schedule.assign", "employee", in.EmployeeID, in)
	}
	return id, err
}

func (s *Service) RequestOvertime(ctx context.Context, user auth.UserContext, in OvertimeInput) (OvertimeRequest, error) {
	if err := s.ensureEmployee(ctx, in.EmployeeID); err != nil {
		return OvertimeRequest{}, err
	}
	day, err := time.Parse(time.DateOnly, in.Date)
	if err != nil {
		return OvertimeRequest{}, fmt.Errorf("%w: overtimeDate", ErrInvalidInput)
	}
	hours, err := OvertimeHours(in.StartTime, in.EndTime)
	if err != nil {
		return OvertimeRequest{}, err
	}
	req := OvertimeRequest{
		EmployeeID:     in.EmployeeID,
		Date:           day,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		EstimatedHours: hours,
		Reason:         strings.TrimSpace(in.Reason),
	}
	if user.UserID != "" {
		req.RequestedBy = &user.UserID
	}
	id, err := s.Store.CreateOvertime(ctx, req)
	if err != nil {
		return OvertimeRequest{}, err
	}
	return s.Store.GetOvertime(ctx, id)
}

func (s *Service) ApproveOvertime(ctx context.Context, user auth.UserContext, id string, in OvertimeDecision) (OvertimeRequest, error) {
	if in.ActualHours != nil && (in.ActualHours.IsNegative() || in.ActualHours.GreaterThan(decimal.NewFromInt(24))) {
		return OvertimeRequest{}, fmt.Errorf("%w: actualHours", ErrInvalidInput)
	}
	return s.decideOvertime(ctx, user, id, OvertimeApproved, in.Notes, in.ActualHours)
}

func (s *Service) RejectOvertime(ctx context.Context, user auth.UserContext, id string, in OvertimeDecision) (OvertimeRequest, error) {
	return s.decideOvertime(ctx, user, id, OvertimeRejected, in.Notes, nil)
}

func (s *Service) decideOvertime(ctx context.Context, user auth.UserContext, id, status, notes string, actual *decimal.Decimal) (OvertimeRequest, error) {
	if err := s.Store.DecideOvertime(ctx, id, status, user.UserID, strings.TrimSpace(notes), actual); err != nil {
		return OvertimeRequest{}, err
	}
	s.record(ctx, user, "overtime."+status, "overtime_request", id, map[string]any{"notes": notes})
	return s.Store.GetOvertime(ctx, id)
}

func (s *Service) ListOvertime(ctx context.Context, filter OvertimeFilter) ([]OvertimeRequest, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.Store.ListOvertime(ctx, filter)
}

func (s *Service) CreateShiftType(ctx context.Context, user auth.UserContext, in ShiftTypeInput) (string, error) {
	start, err := ParseClock(in.StartTime)
	if err != nil {
		return "", err
	}
	end, err := ParseClock(in.EndTime)
	if err != nil {
		return "", err
	}
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	id, err := s.Store.CreateShiftType(ctx, in, end <= start)
	if err == nil {
		s.record(ctx, user, "shift_type.create", "shift_type", id, in)
	}
	return id, err
}

func (s *Service) ListShiftTypes(ctx context.Context) ([]ShiftType, error) {
	return s.Store.ListShiftTypes(ctx)
}

func (s *Service) AssignShift(ctx context.Context, user auth.UserContext, in ShiftAssignmentInput) (string, error) {
	if err := s.ensureEmployee(ctx, in.EmployeeID); err != nil {
		return "", err
	}
	day, err := time.Parse(time.DateOnly, in.ShiftDate)
	if err != nil {
		return "", fmt.Errorf("%w: shiftDate", ErrInvalidInput)
	}
	id, err := s.Store.AssignShift(ctx, in.EmployeeID, in.ShiftTypeID, day)
	if err == nil {
		s.record(ctx, user, "shift.assign", "employee", in.EmployeeID, in)
	}
	return id, err
}

func (s *Service) ListShiftAssignments(ctx context.Context, filter ShiftFilter) ([]ShiftAssignment, error) {
	return s.Store.ListShiftAssignments(ctx, filter)
}

func (s *Service) record(ctx context.Context, user auth.UserContext, action, entityType, entityID string, after any) {
	if err := s.Audit.Record(ctx, audit.Entry{
		ActorID:    user.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		After:      after,
	}); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
