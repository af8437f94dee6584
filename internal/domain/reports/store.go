package reports

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"schoolerp/internal/platform/jobs"
	"schoolerp/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) Employees(ctx context.Context, filter EmployeeFilter) ([]EmployeeRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT e.employee_no, e.first_name || ' ' || e.last_name, COALESCE(d.name, ''), e.employee_category,
		       COALESCE(t.name, ''), e.employment_status, e.hire_date, e.official_email, e.phone
		FROM employees e
		LEFT JOIN departments d ON d.id = e.department_id
		LEFT JOIN job_titles t ON t.id = e.job_title_id
		WHERE ($1 = '' OR e.department_id::text = $1)
		  AND ($2 = '' OR e.employment_status = $2)
		ORDER BY e.employee_no
	`, filter.DepartmentID, filter.Status)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[EmployeeRow])
}

const periodSelect = `
	SELECT id, period_name, start_date, end_date, status, employee_count, total_gross_pay, total_net_pay
	FROM payroll_periods`

func (s *Store) Period(ctx context.Context, id string) (PeriodRow, error) {
	rows, err := s.DB.Query(ctx, periodSelect+" WHERE id = $1", id)
	if err != nil {
		return PeriodRow{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[PeriodRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return PeriodRow{}, ErrNotFound
	}
	return p, err
}

// Periods returns the named periods, or the most recent calculated ones when
// ids is empty, oldest first.
func (s *Store) Periods(ctx context.Context, ids []string, limit int) ([]PeriodRow, error) {
	var rows pgx.Rows
	var err error
	if len(ids) > 0 {
		rows, err = s.DB.Query(ctx, periodSelect+" WHERE id = ANY($1::uuid[]) ORDER BY start_date", ids)
	} else {
		rows, err = s.DB.Query(ctx, periodSelect+`
			WHERE status IN ('calculated', 'approved', 'paid', 'closed')
			ORDER BY start_date DESC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	periods, err := pgx.CollectRows(rows, pgx.RowToStructByPos[PeriodRow])
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		slices.Reverse(periods)
	}
	return periods, nil
}

func (s *Store) Register(ctx context.Context, periodID string) ([]RegisterRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT e.employee_no, e.first_name || ' ' || e.last_name, COALESCE(d.name, ''), c.basic_salary,
		       c.total_allowances, c.gross_pay, c.total_deductions, c.tax_amount, c.net_pay, c.bank_account_number
		FROM payroll_calculations c
		JOIN employees e ON e.id = c.employee_id
		LEFT JOIN departments d ON d.id = e.department_id
		WHERE c.payroll_period_id = $1
		ORDER BY e.employee_no
	`, periodID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[RegisterRow])
}

func (s *Store) Attendance(ctx context.Context, from, to time.Time, departmentID string) ([]AttendanceRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT e.employee_no, e.first_name || ' ' || e.last_name, COALESCE(d.name, ''),
		       COUNT(*) FILTER (WHERE a.status = 'present'),
		       COUNT(*) FILTER (WHERE a.status = 'late'),
		       COUNT(*) FILTER (WHERE a.status = 'absent'),
		       COUNT(*) FILTER (WHERE a.status = 'half_day'),
		       COUNT(*) FILTER (WHERE a.status = 'on_leave'),
		       COALESCE(SUM(a.total_hours), 0), COALESCE(SUM(a.overtime_hours), 0)
		FROM attendance_records a
		JOIN employees e ON e.id = a.employee_id
		LEFT JOIN departments d ON d.id = e.department_id
		WHERE a.attendance_date BETWEEN $1 AND $2
		  AND ($3 = '' OR e.department_id::text = $3)
		GROUP BY e.id, e.employee_no, e.first_name, e.last_name, d.name
		ORDER BY e.employee_no
	`, from, to, departmentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[AttendanceRow])
}

func (s *Store) Leave(ctx context.Context, from, to time.Time, status string) ([]LeaveRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT e.employee_no, e.first_name || ' ' || e.last_name, lt.name, la.start_date, la.end_date,
		       la.working_days, la.status
		FROM leave_applications la
		JOIN employees e ON e.id = la.employee_id
		JOIN leave_types lt ON lt.id = la.leave_type_id
		WHERE la.start_date <= $2 AND la.end_date >= $1
		  AND la.status <> 'draft'
		  AND ($3 = '' OR la.status = $3)
		ORDER BY la.start_date, e.employee_no
	`, from, to, status)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[LeaveRow])
}

func (s *Store) Balances(ctx context.Context, year int) ([]BalanceRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT e.employee_no, e.first_name || ' ' || e.last_name, lt.name, b.opening_balance, b.accrued_days,
		       b.carried_forward_days, b.taken_days, b.pending_days, b.closing_balance
		FROM leave_balances b
		JOIN employees e ON e.id = b.employee_id
		JOIN leave_types lt ON lt.id = b.leave_type_id
		WHERE b.year = $1
		ORDER BY e.employee_no, lt.name
	`, year)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[BalanceRow])
}

func (s *Store) People(ctx context.Context, userType string) ([]PersonRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT u.username, TRIM(u.first_name || ' ' || u.last_name), u.email, u.phone, u.status,
		       COALESCE(e.employee_no, '')
		FROM users u
		LEFT JOIN employees e ON e.id = u.employee_id
		WHERE u.user_type = $1
		ORDER BY u.last_name, u.first_name
	`, userType)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[PersonRow])
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) LeaveBalance(ctx context.Context, employeeID string, year int) (float64, error) {
	var balance float64
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(closing_balance), 0)::float8 FROM leave_balances WHERE employee_id = $1 AND year = $2
	`, employeeID, year).Scan(&balance)
	return balance, err
}

func (s *Store) PayslipCount(ctx context.Context, employeeID string) (int, error) {
	return s.count(ctx, "SELECT COUNT(1) FROM payslips WHERE employee_id = $1", employeeID)
}

func (s *Store) OpenAppraisals(ctx context.Context, employeeID string) (int, error) {
	return s.count(ctx, `
		SELECT COUNT(1) FROM appraisals WHERE employee_id = $1 AND status IN ('draft', 'in_progress')
	`, employeeID)
}

func (s *Store) PendingApprovals(ctx context.Context, approverUserID string) (int, error) {
	return s.count(ctx, `
		SELECT COUNT(1) FROM leave_applications
		WHERE status IN ('submitted', 'pending_approval') AND ($1 = '' OR current_approver_id::text = $1)
	`, approverUserID)
}

func (s *Store) AppraisalsToReview(ctx context.Context, appraiserEmployeeID string) (int, error) {
	return s.count(ctx, `
		SELECT COUNT(1) FROM appraisals
		WHERE appraiser_id = $1 AND supervisor_assessment_status = 'pending' AND status IN ('draft', 'in_progress')
	`, appraiserEmployeeID)
}

func (s *Store) OpenPayrollPeriods(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(1) FROM payroll_periods WHERE status NOT IN ('paid', 'closed')")
}

func (s *Store) ActiveCycles(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(1) FROM appraisal_cycles WHERE status IN ('active', 'in_review')")
}

func (s *Store) ActiveEmployees(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(1) FROM employees WHERE employment_status IN ('active', 'on_leave')")
}

// ListReportRuns pages through the background report jobs.
func (s *Store) ListReportRuns(ctx context.Context, filter JobRunFilter, limit, offset int) ([]jobs.Run, error) {
	query, args := buildReportRunsQuery(filter)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []jobs.Run{}
	for rows.Next() {
		var run jobs.Run
		var result []byte
		var errText *string
		var requestedBy *string
		if err := rows.Scan(&run.ID, &run.Type, &run.Status, &requestedBy, &result, &errText, &run.CreatedAt, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		if requestedBy != nil {
			run.RequestedBy = *requestedBy
		}
		if errText != nil {
			run.Error = *errText
		}
		run.Result = decodeResult(result)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) CountReportRuns(ctx context.Context, filter JobRunFilter) (int, error) {
	query, args := buildReportRunsQuery(filter)
	return s.count(ctx, "SELECT COUNT(1) FROM ("+query+") runs", args...)
}

func buildReportRunsQuery(filter JobRunFilter) (string, []any) {
	query := `
		SELECT id, job_type, status, requested_by, result_json, error, created_at, started_at, completed_at
		FROM job_runs
		WHERE job_type LIKE 'report.%'`
	var args []any

	if value := strings.TrimSpace(filter.Status); value != "" {
		args = append(args, value)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if value := strings.TrimSpace(filter.RequestedBy); value != "" {
		args = append(args, value)
		query += " AND requested_by = $" + strconv.Itoa(len(args))
	}
	if filter.StartedFrom != nil && !filter.StartedFrom.IsZero() {
		args = append(args, *filter.StartedFrom)
		query += " AND created_at >= $" + strconv.Itoa(len(args))
	}
	if filter.StartedTo != nil && !filter.StartedTo.IsZero() {
		args = append(args, *filter.StartedTo)
		query += " AND created_at <= $" + strconv.Itoa(len(args))
	}
	return query, args
}

// decodeResult passes valid JSON through and wraps anything else as a
// string so one bad row cannot break the listing.
func decodeResult(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(raw)})
	return wrapped
}
