package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"schoolerp/internal/platform/querier"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) EmployeeExists(ctx context.Context, employeeID string) (bool, error) {
	var ok bool
	err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)", employeeID).Scan(&ok)
	return ok, err
}

const policyColumns = `p.id, p.name, p.employee_category, p.work_days_per_week, p.standard_hours_per_day,
	p.grace_period_minutes, p.half_day_threshold_hours, p.overtime_eligible, p.overtime_threshold_hours,
	p.weekend_multiplier, p.holiday_multiplier, p.effective_from, p.effective_to, p.is_active`

const scheduleColumns = `ws.id, ws.name, ws.schedule_type, ws.attendance_policy_id, ws.day_windows, ws.break_minutes, ws.is_active`

// ActiveSchedule returns the schedule in force for the employee on day.
func (s *Store) ActiveSchedule(ctx context.Context, employeeID string, day time.Time) (Schedule, Policy, error) {
	var sched Schedule
	var pol Policy
	err := s.DB.QueryRow(ctx, `
		SELECT `+scheduleColumns+`, `+policyColumns+`
		FROM employee_work_schedules ews
		JOIN work_schedules ws ON ws.id = ews.work_schedule_id
		JOIN attendance_policies p ON p.id = ws.attendance_policy_id
		WHERE ews.employee_id = $1 AND ews.is_active
		  AND ews.effective_from <= $2 AND (ews.effective_to IS NULL OR ews.effective_to >= $2)
		ORDER BY ews.effective_from DESC
		LIMIT 1
	`, employeeID, day).Scan(
		&sched.ID, &sched.Name, &sched.ScheduleType, &sched.PolicyID, &sched.DayWindows, &sched.BreakMinutes, &sched.IsActive,
		&pol.ID, &pol.Name, &pol.EmployeeCategory, &pol.WorkDaysPerWeek, &pol.StandardHoursPerDay,
		&pol.GracePeriodMinutes, &pol.HalfDayThresholdHours, &pol.OvertimeEligible, &pol.OvertimeThreshold,
		&pol.WeekendMultiplier, &pol.HolidayMultiplier, &pol.EffectiveFrom, &pol.EffectiveTo, &pol.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Schedule{}, Policy{}, ErrNoSchedule
	}
	return sched, pol, err
}

func (s *Store) ScheduleByID(ctx context.Context, scheduleID string) (Schedule, Policy, error) {
	var sched Schedule
	var pol Policy
	err := s.DB.QueryRow(ctx, `
		SELECT `+scheduleColumns+`, `+policyColumns+`
		FROM work_schedules ws
		JOIN attendance_policies p ON p.id = ws.attendance_policy_id
		WHERE ws.id = $1
	`, scheduleID).Scan(
		&sched.ID, &sched.Name, &sched.ScheduleType, &sched.PolicyID, &sched.DayWindows, &sched.BreakMinutes, &sched.IsActive,
		&pol.ID, &pol.Name, &pol.EmployeeCategory, &pol.WorkDaysPerWeek, &pol.StandardHoursPerDay,
		&pol.GracePeriodMinutes, &pol.HalfDayThresholdHours, &pol.OvertimeEligible, &pol.OvertimeThreshold,
		&pol.WeekendMultiplier, &pol.HolidayMultiplier, &pol.EffectiveFrom, &pol.EffectiveTo, &pol.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Schedule{}, Policy{}, ErrNotFound
	}
	return sched, pol, err
}

func (s *Store) ListPolicies(ctx context.Context) ([]Policy, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+policyColumns+" FROM attendance_policies p ORDER BY p.effective_from DESC, p.name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Policy])
}

func (s *Store) CreatePolicy(ctx context.Context, in PolicyInput, effectiveFrom time.Time) (string, error) {
	category := in.EmployeeCategory
	if category == "" {
		category = "all"
	}
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO attendance_policies (name, employee_category, work_days_per_week, standard_hours_per_day,
			grace_period_minutes, half_day_threshold_hours, overtime_eligible, overtime_threshold_hours,
			weekend_multiplier, holiday_multiplier, effective_from)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, in.Name, category, in.WorkDaysPerWeek, in.StandardHoursPerDay, in.GracePeriodMinutes,
		in.HalfDayThresholdHours, in.OvertimeEligible, in.OvertimeThreshold, in.WeekendMultiplier,
		in.HolidayMultiplier, effectiveFrom).Scan(&id)
	return id, err
}

func (s *Store) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+scheduleColumns+" FROM work_schedules ws ORDER BY ws.name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Schedule])
}

func (s *Store) CreateSchedule(ctx context.Context, in ScheduleInput, windows map[int]Window) (string, error) {
	kind := in.ScheduleType
	if kind == "" {
		kind = "fixed"
	}
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO work_schedules (name, schedule_type, attendance_policy_id, day_windows, break_minutes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, in.Name, kind, in.PolicyID, windows, in.BreakMinutes).Scan(&id)
	return id, err
}

// AssignSchedule closes the employee's open assignments the day before the
// new one starts.
func (s *Store) AssignSchedule(ctx context.Context, employeeID, scheduleID string, from time.Time) (string, error) {
	var id string
	err := querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE employee_work_schedules
			SET is_active = false, effective_to = $2::date - 1
			WHERE employee_id = $1 AND is_active
		`, employeeID, from); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO employee_work_schedules (employee_id, work_schedule_id, effective_from)
			VALUES ($1, $2, $3)
			RETURNING id
		`, employeeID, scheduleID, from).Scan(&id)
	})
	return id, err
}

const recordSelect = `
	SELECT r.id, r.employee_id, e.employee_no, e.first_name || ' ' || e.last_name, r.attendance_date,
	       r.work_schedule_id, r.check_in_at, r.check_in_method, r.check_out_at, r.check_out_method,
	       r.total_hours, r.regular_hours, r.overtime_hours, r.status, r.late_by_minutes, r.notes
	FROM attendance_records r
	JOIN employees e ON e.id = r.employee_id`

func (s *Store) RecordFor(ctx context.Context, employeeID string, day time.Time) (Record, error) {
	rows, err := s.DB.Query(ctx, recordSelect+" WHERE r.employee_id = $1 AND r.attendance_date = $2", employeeID, day)
	if err != nil {
		return Record{}, err
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Record])
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// InsertClockIn creates the day's record or fills an existing record that has
// no check-in yet. A record that already has one yields ErrAlreadyClockedIn.
func (s *Store) InsertClockIn(ctx context.Context, rec Record) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO attendance_records (employee_id, attendance_date, work_schedule_id, check_in_at,
			check_in_method, status, late_by_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (employee_id, attendance_date) DO UPDATE
		SET check_in_at = EXCLUDED.check_in_at, check_in_method = EXCLUDED.check_in_method,
		    work_schedule_id = EXCLUDED.work_schedule_id, status = EXCLUDED.status,
		    late_by_minutes = EXCLUDED.late_by_minutes, updated_at = now()
		WHERE attendance_records.check_in_at IS NULL
		RETURNING id
	`, rec.EmployeeID, rec.Date, rec.ScheduleID, rec.CheckInAt, rec.CheckInMethod, rec.Status, rec.LateByMinutes).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrAlreadyClockedIn
	}
	return id, err
}

func (s *Store) CompleteClockOut(ctx context.Context, recordID string, at time.Time, method, status string, split HoursSplit) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE attendance_records
		SET check_out_at = $2, check_out_method = $3, total_hours = $4, regular_hours = $5,
		    overtime_hours = $6, status = $7, updated_at = now()
		WHERE id = $1 AND check_out_at IS NULL
	`, recordID, at, method, split.Total, split.Regular, split.Overtime, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyClockedOut
	}
	return nil
}

func (s *Store) UpsertRecord(ctx context.Context, rec Record) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO attendance_records (employee_id, attendance_date, work_schedule_id, check_in_at, check_in_method,
			check_out_at, check_out_method, total_hours, regular_hours, overtime_hours, status, late_by_minutes, notes)
		VALUES ($1, $2, $3, $4, 'manual', $5, 'manual', $6, $7, $8, $9, $10, $11)
		ON CONFLICT (employee_id, attendance_date) DO UPDATE
		SET work_schedule_id = EXCLUDED.work_schedule_id, check_in_at = EXCLUDED.check_in_at,
		    check_in_method = 'manual', check_out_at = EXCLUDED.check_out_at, check_out_method = 'manual',
		    total_hours = EXCLUDED.total_hours, regular_hours = EXCLUDED.regular_hours,
		    overtime_hours = EXCLUDED.overtime_hours, status = EXCLUDED.status,
		    late_by_minutes = EXCLUDED.late_by_minutes, notes = EXCLUDED.notes, updated_at = now()
		RETURNING id
	`, rec.EmployeeID, rec.Date, rec.ScheduleID, rec.CheckInAt, rec.CheckOutAt, rec.TotalHours,
		rec.RegularHours, rec.OvertimeHours, rec.Status, rec.LateByMinutes, rec.Notes).Scan(&id)
	return id, err
}

func (s *Store) GetRecord(ctx context.Context, id string) (Record, error) {
	rows, err := s.DB.Query(ctx, recordSelect+" WHERE r.id = $1", id)
	if err != nil {
		return Record{}, err
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Record])
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *Store) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	clauses := []string{}
	args := []any{}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		clauses = append(clauses, fmt.Sprintf("r.employee_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("r.attendance_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("r.attendance_date <= $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("r.status = $%d", len(args)))
	}
	query := recordSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY r.attendance_date DESC, e.employee_no LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Record])
}

func (s *Store) StatusCounts(ctx context.Context, from, to time.Time, employeeID string) (map[string]int, error) {
	query := `
		SELECT status, COUNT(1)::int
		FROM attendance_records
		WHERE attendance_date >= $1 AND attendance_date < $2`
	args := []any{from, to}
	if employeeID != "" {
		query += " AND employee_id = $3"
		args = append(args, employeeID)
	}
	rows, err := s.DB.Query(ctx, query+" GROUP BY status", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *Store) HourTotals(ctx context.Context, employeeID string, from, to time.Time) (decimal.Decimal, decimal.Decimal, int, error) {
	var total, overtime decimal.Decimal
	var late int
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_hours), 0), COALESCE(SUM(overtime_hours), 0), COALESCE(SUM(late_by_minutes), 0)::int
		FROM attendance_records
		WHERE employee_id = $1 AND attendance_date >= $2 AND attendance_date < $3
	`, employeeID, from, to).Scan(&total, &overtime, &late)
	return total, overtime, late, err
}

const overtimeSelect = `
	SELECT id, employee_id, department_id, overtime_date, start_time, end_time, estimated_hours, actual_hours,
	       reason, requested_by, approved_by, approval_status, approval_notes, created_at
	FROM overtime_requests`

func (s *Store) CreateOvertime(ctx context.Context, req OvertimeRequest) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO overtime_requests (employee_id, department_id, overtime_date, start_time, end_time,
			estimated_hours, reason, requested_by)
		VALUES ($1, (SELECT department_id FROM employees WHERE id = $1), $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, req.EmployeeID, req.Date, req.StartTime, req.EndTime, req.EstimatedHours, req.Reason, req.RequestedBy).Scan(&id)
	return id, err
}

func (s *Store) GetOvertime(ctx context.Context, id string) (OvertimeRequest, error) {
	rows, err := s.DB.Query(ctx, overtimeSelect+" WHERE id = $1", id)
	if err != nil {
		return OvertimeRequest{}, err
	}
	req, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[OvertimeRequest])
	if errors.Is(err, pgx.ErrNoRows) {
		return OvertimeRequest{}, ErrNotFound
	}
	return req, err
}

// DecideOvertime moves a pending request to status. Requests that are no
// longer pending are left alone and reported with ErrNotPending.
func (s *Store) DecideOvertime(ctx context.Context, id, status, approverID, notes string, actual *decimal.Decimal) error {
	var approver *string
	if approverID != "" {
		approver = &approverID
	}
	var actualHours decimal.NullDecimal
	if actual != nil {
		actualHours = decimal.NewNullDecimal(*actual)
	}
	tag, err := s.DB.Exec(ctx, `
		UPDATE overtime_requests
		SET approval_status = $2, approved_by = $3, approval_notes = $4, actual_hours = COALESCE($5, actual_hours)
		WHERE id = $1 AND approval_status = 'pending'
	`, id, status, approver, notes, actualHours)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetOvertime(ctx, id); err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

func (s *Store) ListOvertime(ctx context.Context, filter OvertimeFilter) ([]OvertimeRequest, error) {
	clauses := []string{}
	args := []any{}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		clauses = append(clauses, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("approval_status = $%d", len(args)))
	}
	query := overtimeSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY overtime_date DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[OvertimeRequest])
}

func (s *Store) CreateShiftType(ctx context.Context, in ShiftTypeInput, night bool) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO shift_types (code, name, start_time, end_time, is_night_shift)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, in.Code, in.Name, in.StartTime, in.EndTime, night).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

func (s *Store) ListShiftTypes(ctx context.Context) ([]ShiftType, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, code, name, start_time, end_time, is_night_shift, created_at FROM shift_types ORDER BY start_time")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[ShiftType])
}

func (s *Store) AssignShift(ctx context.Context, employeeID, shiftTypeID string, day time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO shift_assignments (employee_id, shift_type_id, shift_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (employee_id, shift_date) DO UPDATE SET shift_type_id = EXCLUDED.shift_type_id
		RETURNING id
	`, employeeID, shiftTypeID, day).Scan(&id)
	return id, err
}

func (s *Store) ListShiftAssignments(ctx context.Context, filter ShiftFilter) ([]ShiftAssignment, error) {
	clauses := []string{}
	args := []any{}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		clauses = append(clauses, fmt.Sprintf("sa.employee_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("sa.shift_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("sa.shift_date <= $%d", len(args)))
	}
	query := `
		SELECT sa.id, sa.employee_id, sa.shift_type_id, st.code, sa.shift_date
		FROM shift_assignments sa
		JOIN shift_types st ON st.id = sa.shift_type_id`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY sa.shift_date, st.code LIMIT 500", args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[ShiftAssignment])
}
