package leave

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

func (s *Store) InTx(ctx context.Context, fn func(q querier.Querier) error) error {
	return querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

func (s *Store) Pool() querier.Querier {
	return s.DB
}

const typeColumns = `id, code, name, category, max_days_per_year, gender_specific, advance_notice_days,
	can_be_carried_forward, max_carryforward_days, can_be_encashed, accrual_rate, accrual_method, is_active`

func (s *Store) ListTypes(ctx context.Context, activeOnly bool) ([]LeaveType, error) {
	query := "SELECT " + typeColumns + " FROM leave_types"
	if activeOnly {
		query += " WHERE is_active"
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[LeaveType])
}

func (s *Store) GetType(ctx context.Context, q querier.Querier, id string) (LeaveType, error) {
	rows, err := q.Query(ctx, "SELECT "+typeColumns+" FROM leave_types WHERE id = $1", id)
	if err != nil {
		return LeaveType{}, err
	}
	t, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[LeaveType])
	if errors.Is(err, pgx.ErrNoRows) {
		return LeaveType{}, ErrNotFound
	}
	return t, err
}

func (s *Store) CreateType(ctx context.Context, in TypeInput) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO leave_types (code, name, category, max_days_per_year, gender_specific, advance_notice_days,
			can_be_carried_forward, max_carryforward_days, can_be_encashed, accrual_rate, accrual_method)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, in.Code, in.Name, in.Category, in.MaxDaysPerYear, in.GenderSpecific, in.AdvanceNoticeDays,
		in.CanCarryForward, in.MaxCarryForwardDays, in.CanBeEncashed, in.AccrualRate, in.AccrualMethod).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

const policyColumns = `id, leave_type_id, employee_category, annual_entitlement_days, accrual_starts_after_months,
	max_consecutive_days, min_days_per_application, blackout_applies, effective_from, effective_to`

func (s *Store) ListPolicies(ctx context.Context) ([]Policy, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+policyColumns+" FROM leave_policies ORDER BY employee_category")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Policy])
}

// PolicyFor returns the policy for a type and employee category, or
// ErrNotFound when the type has none.
func (s *Store) PolicyFor(ctx context.Context, q querier.Querier, leaveTypeID, category string) (Policy, error) {
	rows, err := q.Query(ctx, "SELECT "+policyColumns+" FROM leave_policies WHERE leave_type_id = $1 AND employee_category = $2", leaveTypeID, category)
	if err != nil {
		return Policy{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Policy])
	if errors.Is(err, pgx.ErrNoRows) {
		return Policy{}, ErrNotFound
	}
	return p, err
}

func (s *Store) UpsertPolicy(ctx context.Context, in PolicyInput, from time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO leave_policies (leave_type_id, employee_category, annual_entitlement_days, accrual_starts_after_months,
			max_consecutive_days, min_days_per_application, blackout_applies, effective_from)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (leave_type_id, employee_category) DO UPDATE
		SET annual_entitlement_days = EXCLUDED.annual_entitlement_days,
		    accrual_starts_after_months = EXCLUDED.accrual_starts_after_months,
		    max_consecutive_days = EXCLUDED.max_consecutive_days,
		    min_days_per_application = EXCLUDED.min_days_per_application,
		    blackout_applies = EXCLUDED.blackout_applies,
		    effective_from = EXCLUDED.effective_from
		RETURNING id
	`, in.LeaveTypeID, in.EmployeeCategory, in.AnnualEntitlementDays, in.AccrualStartsAfterMonths,
		in.MaxConsecutiveDays, in.MinDaysPerApplication, in.BlackoutApplies, from).Scan(&id)
	return id, err
}

func (s *Store) HolidaySet(ctx context.Context, q querier.Querier, from, to time.Time) (map[string]bool, error) {
	rows, err := q.Query(ctx, "SELECT holiday_date FROM public_holidays WHERE holiday_date BETWEEN $1 AND $2", from, to.AddDate(0, 0, 60))
	if err != nil {
		return nil, err
	}
	dates, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(dates))
	for _, d := range dates {
		set[dayKey(d)] = true
	}
	return set, nil
}

func (s *Store) ListHolidays(ctx context.Context, year int) ([]Holiday, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT holiday_date, name FROM public_holidays
		WHERE EXTRACT(YEAR FROM holiday_date) = $1
		ORDER BY holiday_date
	`, year)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Holiday])
}

func (s *Store) UpsertHoliday(ctx context.Context, day time.Time, name string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO public_holidays (holiday_date, name) VALUES ($1, $2)
		ON CONFLICT (holiday_date) DO UPDATE SET name = EXCLUDED.name
	`, day, name)
	return err
}

func (s *Store) DeleteHoliday(ctx context.Context, day time.Time) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM public_holidays WHERE holiday_date = $1", day)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListBlackouts(ctx context.Context) ([]Blackout, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, name, start_date, end_date, applies_to_category, is_active FROM leave_blackout_periods ORDER BY start_date")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Blackout])
}

func (s *Store) ActiveBlackouts(ctx context.Context, q querier.Querier, category string, from, to time.Time) ([]Blackout, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, start_date, end_date, applies_to_category, is_active
		FROM leave_blackout_periods
		WHERE is_active AND applies_to_category IN ('all', $1) AND start_date <= $3 AND end_date >= $2
	`, category, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Blackout])
}

func (s *Store) CreateBlackout(ctx context.Context, in BlackoutInput, from, to time.Time) (string, error) {
	category := in.AppliesToCategory
	if category == "" {
		category = "all"
	}
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO leave_blackout_periods (name, start_date, end_date, applies_to_category)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, in.Name, from, to, category).Scan(&id)
	return id, err
}

func (s *Store) Employee(ctx context.Context, q querier.Querier, employeeID string) (EmployeeInfo, error) {
	var info EmployeeInfo
	err := q.QueryRow(ctx, `
		SELECT e.id, e.gender, e.employee_category, e.employment_status, e.hire_date,
		       (SELECT u.id FROM users u WHERE u.employee_id = e.id AND u.status = 'active' LIMIT 1),
		       (SELECT u.id FROM users u WHERE u.employee_id = e.supervisor_id AND u.status = 'active' LIMIT 1),
		       e.first_name || ' ' || e.last_name
		FROM employees e
		WHERE e.id = $1
	`, employeeID).Scan(&info.ID, &info.Gender, &info.Category, &info.Status, &info.HireDate,
		&info.UserID, &info.SupervisorUserID, &info.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return EmployeeInfo{}, ErrNotFound
	}
	return info, err
}

func (s *Store) DirectReports(ctx context.Context, supervisorEmployeeID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM employees WHERE supervisor_id = $1", supervisorEmployeeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

const balanceSelect = `
	SELECT b.id, b.employee_id, b.leave_type_id, lt.name, b.year, b.opening_balance, b.accrued_days,
	       b.carried_forward_days, b.adjustment_days, b.taken_days, b.pending_days, b.encashed_days,
	       b.forfeited_days, b.carried_out_days, b.closing_balance, b.last_accrual_date, b.next_accrual_date
	FROM leave_balances b
	JOIN leave_types lt ON lt.id = b.leave_type_id`

func (s *Store) ListBalances(ctx context.Context, employeeID string, year int) ([]Balance, error) {
	rows, err := s.DB.Query(ctx, balanceSelect+" WHERE b.employee_id = $1 AND b.year = $2 ORDER BY lt.name", employeeID, year)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Balance])
}

func (s *Store) BalancesForYear(ctx context.Context, q querier.Querier, year int) ([]Balance, error) {
	rows, err := q.Query(ctx, balanceSelect+" WHERE b.year = $1 ORDER BY b.employee_id, lt.name", year)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Balance])
}

func (s *Store) GetBalance(ctx context.Context, id string) (Balance, error) {
	rows, err := s.DB.Query(ctx, balanceSelect+" WHERE b.id = $1", id)
	if err != nil {
		return Balance{}, err
	}
	b, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Balance])
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, ErrNotFound
	}
	return b, err
}

// LockBalance returns the balance row locked FOR UPDATE, creating an empty
// one first when none exists.
func (s *Store) LockBalance(ctx context.Context, q querier.Querier, employeeID, leaveTypeID string, year int) (Balance, error) {
	if _, err := q.Exec(ctx, `
		INSERT INTO leave_balances (employee_id, leave_type_id, year)
		VALUES ($1, $2, $3)
		ON CONFLICT (employee_id, leave_type_id, year) DO NOTHING
	`, employeeID, leaveTypeID, year); err != nil {
		return Balance{}, err
	}
	rows, err := q.Query(ctx, balanceSelect+` WHERE b.employee_id = $1 AND b.leave_type_id = $2 AND b.year = $3 FOR UPDATE OF b`, employeeID, leaveTypeID, year)
	if err != nil {
		return Balance{}, err
	}
	return pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Balance])
}

func (s *Store) LockBalanceByID(ctx context.Context, q querier.Querier, id string) (Balance, error) {
	rows, err := q.Query(ctx, balanceSelect+" WHERE b.id = $1 FOR UPDATE OF b", id)
	if err != nil {
		return Balance{}, err
	}
	b, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Balance])
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, ErrNotFound
	}
	return b, err
}

func (s *Store) SaveBalance(ctx context.Context, q querier.Querier, b Balance) error {
	_, err := q.Exec(ctx, `
		UPDATE leave_balances
		SET opening_balance = $2, accrued_days = $3, carried_forward_days = $4, adjustment_days = $5,
		    taken_days = $6, pending_days = $7, encashed_days = $8, forfeited_days = $9,
		    carried_out_days = $10, closing_balance = $11, last_accrual_date = $12, next_accrual_date = $13,
		    updated_at = now()
		WHERE id = $1
	`, b.ID, b.Opening, b.Accrued, b.CarriedForward, b.Adjustment, b.Taken, b.Pending, b.Encashed,
		b.Forfeited, b.CarriedOut, b.Closing, b.LastAccrualDate, b.NextAccrualDate)
	return err
}

const applicationSelect = `
	SELECT a.id, a.employee_id, e.first_name || ' ' || e.last_name, a.leave_type_id, lt.name,
	       a.application_date, a.start_date, a.end_date, a.start_half_day, a.end_half_day, a.total_days,
	       a.working_days, a.reason, a.return_date, a.acting_employee_id, a.emergency_phone, a.status,
	       a.current_approver_id, a.submitted_at, a.approved_at, a.rejected_at, a.rejection_reason,
	       a.cancelled_at, a.cancellation_reason, a.created_by, a.created_at
	FROM leave_applications a
	JOIN employees e ON e.id = a.employee_id
	JOIN leave_types lt ON lt.id = a.leave_type_id`

func (s *Store) GetApplication(ctx context.Context, id string) (Application, error) {
	rows, err := s.DB.Query(ctx, applicationSelect+" WHERE a.id = $1", id)
	if err != nil {
		return Application{}, err
	}
	app, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Application])
	if errors.Is(err, pgx.ErrNoRows) {
		return Application{}, ErrNotFound
	}
	return app, err
}

// LockApplication reads the application FOR UPDATE so concurrent decisions
// on it serialize.
func (s *Store) LockApplication(ctx context.Context, q querier.Querier, id string) (Application, error) {
	rows, err := q.Query(ctx, applicationSelect+" WHERE a.id = $1 FOR UPDATE OF a", id)
	if err != nil {
		return Application{}, err
	}
	app, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Application])
	if errors.Is(err, pgx.ErrNoRows) {
		return Application{}, ErrNotFound
	}
	return app, err
}

func (s *Store) CreateApplication(ctx context.Context, app Application) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO leave_applications (employee_id, leave_type_id, start_date, end_date, start_half_day,
			end_half_day, total_days, working_days, reason, return_date, acting_employee_id, emergency_phone,
			status, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'draft',$13)
		RETURNING id
	`, app.EmployeeID, app.LeaveTypeID, app.StartDate, app.EndDate, app.StartHalfDay, app.EndHalfDay,
		app.TotalDays, app.WorkingDays, app.Reason, app.ReturnDate, app.ActingEmployeeID, app.EmergencyPhone,
		app.CreatedBy).Scan(&id)
	return id, err
}

func (s *Store) SaveApplicationStatus(ctx context.Context, q querier.Querier, app Application) error {
	_, err := q.Exec(ctx, `
		UPDATE leave_applications
		SET status = $2, current_approver_id = $3, submitted_at = $4, approved_at = $5, rejected_at = $6,
		    rejection_reason = $7, cancelled_at = $8, cancellation_reason = $9, updated_at = now()
		WHERE id = $1
	`, app.ID, app.Status, app.CurrentApproverID, app.SubmittedAt, app.ApprovedAt, app.RejectedAt,
		app.RejectionReason, app.CancelledAt, app.CancellationReason)
	return err
}

func (s *Store) ListApplications(ctx context.Context, filter ApplicationFilter) ([]Application, error) {
	clauses := []string{}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.EmployeeID != "" {
		add("a.employee_id = $%d", filter.EmployeeID)
	}
	if filter.EmployeeIDs != nil {
		add("a.employee_id = ANY($%d)", filter.EmployeeIDs)
	}
	if filter.LeaveTypeID != "" {
		add("a.leave_type_id = $%d", filter.LeaveTypeID)
	}
	if filter.Status != "" {
		add("a.status = $%d", filter.Status)
	}
	switch {
	case filter.AwaitingHR && filter.ApproverID != "":
		args = append(args, filter.ApproverID)
		clauses = append(clauses, fmt.Sprintf("a.status IN ('submitted', 'pending_approval') AND (a.current_approver_id = $%d OR a.current_approver_id IS NULL)", len(args)))
	case filter.AwaitingHR:
		clauses = append(clauses, "a.status IN ('submitted', 'pending_approval')")
	case filter.ApproverID != "":
		add("a.status IN ('submitted', 'pending_approval') AND a.current_approver_id = $%d", filter.ApproverID)
	}
	query := applicationSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY a.start_date DESC, a.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Application])
}

// OverlappingApplications counts live applications of the employee that
// intersect the range.
func (s *Store) OverlappingApplications(ctx context.Context, employeeID string, from, to time.Time) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(1)::int FROM leave_applications
		WHERE employee_id = $1 AND status IN ('submitted', 'pending_approval', 'approved', 'on_leave')
		  AND start_date <= $3 AND end_date >= $2
	`, employeeID, from, to).Scan(&n)
	return n, err
}

const stepSelect = `
	SELECT id, leave_application_id, approval_level, approver_role, approver_id, status, decided_by, decided_at, comments
	FROM leave_approval_steps`

func (s *Store) Steps(ctx context.Context, q querier.Querier, applicationID string) ([]ApprovalStep, error) {
	rows, err := q.Query(ctx, stepSelect+" WHERE leave_application_id = $1 ORDER BY approval_level", applicationID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[ApprovalStep])
}

func (s *Store) ReplaceSteps(ctx context.Context, q querier.Querier, applicationID string, steps []ApprovalStep) error {
	if _, err := q.Exec(ctx, "DELETE FROM leave_approval_steps WHERE leave_application_id = $1", applicationID); err != nil {
		return err
	}
	for _, st := range steps {
		if _, err := q.Exec(ctx, `
			INSERT INTO leave_approval_steps (leave_application_id, approval_level, approver_role, approver_id, status)
			VALUES ($1, $2, $3, $4, $5)
		`, applicationID, st.Level, st.ApproverRole, st.ApproverID, st.Status); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DecideStep(ctx context.Context, q querier.Querier, stepID, status, userID, comments string) error {
	_, err := q.Exec(ctx, `
		UPDATE leave_approval_steps
		SET status = $2, decided_by = $3, decided_at = now(), comments = $4
		WHERE id = $1
	`, stepID, status, userID, comments)
	return err
}

func (s *Store) AccrualCandidates(ctx context.Context, asOf time.Time) ([]AccrualCandidate, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT e.id, lt.id, lt.accrual_method, lt.accrual_rate,
		       COALESCE(p.annual_entitlement_days, lt.max_days_per_year), e.hire_date,
		       COALESCE(p.accrual_starts_after_months, 0)
		FROM employees e
		CROSS JOIN leave_types lt
		LEFT JOIN leave_policies p ON p.leave_type_id = lt.id AND p.employee_category = e.employee_category
		WHERE e.employment_status IN ('active', 'on_leave') AND e.hire_date <= $1 AND lt.is_active
		  AND lt.category <> 'unpaid'
		  AND (lt.gender_specific = 'all' OR lt.gender_specific = e.gender)
		  AND ((lt.accrual_method = 'monthly' AND lt.accrual_rate > 0) OR lt.accrual_method = 'yearly')
		ORDER BY e.id, lt.id
	`, asOf)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[AccrualCandidate])
}

func (s *Store) ActiveBasicSalary(ctx context.Context, q querier.Querier, employeeID string, on time.Time) (decimal.Decimal, error) {
	var basic decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT epp.basic_salary
		FROM employee_pay_profiles epp
		WHERE epp.employee_id = $1 AND epp.is_active AND epp.effective_from <= $2
		ORDER BY epp.effective_from DESC
		LIMIT 1
	`, employeeID, on).Scan(&basic)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNoPayProfile
	}
	return basic, err
}

const encashmentSelect = `
	SELECT id, employee_id, leave_type_id, year, days_encashed, rate_per_day, total_amount, status,
	       approved_by, approved_at, payroll_period_id, processed_at, created_at
	FROM leave_encashments`

func (s *Store) CreateEncashment(ctx context.Context, q querier.Querier, e Encashment) (string, error) {
	var id string
	err := q.QueryRow(ctx, `
		INSERT INTO leave_encashments (employee_id, leave_type_id, year, days_encashed, rate_per_day, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, e.EmployeeID, e.LeaveTypeID, e.Year, e.Days, e.RatePerDay, e.TotalAmount).Scan(&id)
	return id, err
}

func (s *Store) GetEncashment(ctx context.Context, id string) (Encashment, error) {
	return s.encashment(ctx, s.DB, id, false)
}

func (s *Store) LockEncashment(ctx context.Context, q querier.Querier, id string) (Encashment, error) {
	return s.encashment(ctx, q, id, true)
}

func (s *Store) encashment(ctx context.Context, q querier.Querier, id string, lock bool) (Encashment, error) {
	query := encashmentSelect + " WHERE id = $1"
	if lock {
		query += " FOR UPDATE"
	}
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return Encashment{}, err
	}
	e, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Encashment])
	if errors.Is(err, pgx.ErrNoRows) {
		return Encashment{}, ErrNotFound
	}
	return e, err
}

func (s *Store) SetEncashmentStatus(ctx context.Context, q querier.Querier, id, status, userID string) error {
	_, err := q.Exec(ctx, `
		UPDATE leave_encashments
		SET status = $2, approved_by = $3, approved_at = now()
		WHERE id = $1
	`, id, status, userID)
	return err
}

func (s *Store) ListEncashments(ctx context.Context, employeeID, status string) ([]Encashment, error) {
	clauses := []string{}
	args := []any{}
	if employeeID != "" {
		args = append(args, employeeID)
		clauses = append(clauses, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	query := encashmentSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY created_at DESC LIMIT 200", args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Encashment])
}
