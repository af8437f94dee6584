package payroll

import (
	"context"
	"errors"
	"fmt"
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

func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}

func (s *Store) ListEarningTypes(ctx context.Context) ([]EarningType, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, code, name, category, is_taxable, is_pensionable, gl_account_code, is_active, sort_order
		FROM earning_types
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[EarningType])
}

func (s *Store) CreateEarningType(ctx context.Context, in EarningTypeInput) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO earning_types (code, name, category, is_taxable, is_pensionable, gl_account_code, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, in.Code, in.Name, in.Category, in.IsTaxable, in.IsPensionable, in.GLAccountCode, in.SortOrder).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

func (s *Store) ListDeductionTypes(ctx context.Context) ([]DeductionType, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, code, name, category, is_mandatory, gl_account_code, is_active, sort_order
		FROM deduction_types
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[DeductionType])
}

func (s *Store) CreateDeductionType(ctx context.Context, in DeductionTypeInput) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO deduction_types (code, name, category, is_mandatory, gl_account_code, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, in.Code, in.Name, in.Category, in.IsMandatory, in.GLAccountCode, in.SortOrder).Scan(&id)
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

const profileSelect = `
	SELECT id, code, name, job_grade_id, employee_category, basic_salary, currency, pay_frequency, is_active, created_at
	FROM pay_profiles`

func (s *Store) ListPayProfiles(ctx context.Context) ([]PayProfile, error) {
	rows, err := s.DB.Query(ctx, profileSelect+" ORDER BY code")
	if err != nil {
		return nil, err
	}
	profiles, err := pgx.CollectRows(rows, pgx.RowToStructByPos[PayProfile])
	if err != nil {
		return nil, err
	}
	components, err := s.components(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		profiles[i].Components = components[profiles[i].ID]
	}
	return profiles, nil
}

func (s *Store) GetPayProfile(ctx context.Context, id string) (PayProfile, error) {
	rows, err := s.DB.Query(ctx, profileSelect+" WHERE id = $1", id)
	if err != nil {
		return PayProfile{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[PayProfile])
	if err != nil {
		return PayProfile{}, notFound(err, ErrNotFound)
	}
	components, err := s.components(ctx, id)
	if err != nil {
		return PayProfile{}, err
	}
	p.Components = components[id]
	return p, nil
}

func (s *Store) components(ctx context.Context, profileID string) (map[string][]Component, error) {
	query := `
		SELECT c.id, c.pay_profile_id, c.earning_type_id, et.code, c.calculation_method, c.amount, c.percentage, c.is_active
		FROM pay_profile_components c
		JOIN earning_types et ON et.id = c.earning_type_id`
	args := []any{}
	if profileID != "" {
		query += " WHERE c.pay_profile_id = $1"
		args = append(args, profileID)
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY et.sort_order", args...)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Component])
	if err != nil {
		return nil, err
	}
	out := map[string][]Component{}
	for _, c := range list {
		out[c.PayProfileID] = append(out[c.PayProfileID], c)
	}
	return out, nil
}

func (s *Store) CreatePayProfile(ctx context.Context, in PayProfileInput) (string, error) {
	var id string
	err := s.InTx(ctx, func(q querier.Querier) error {
		err := q.QueryRow(ctx, `
			INSERT INTO pay_profiles (code, name, job_grade_id, employee_category, basic_salary, currency, pay_frequency)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, in.Code, in.Name, in.JobGradeID, in.EmployeeCategory, in.BasicSalary, in.Currency, in.PayFrequency).Scan(&id)
		if err != nil {
			return err
		}
		for _, c := range in.Components {
			if _, err := q.Exec(ctx, `
				INSERT INTO pay_profile_components (pay_profile_id, earning_type_id, calculation_method, amount, percentage)
				VALUES ($1, $2, $3, $4, $5)
			`, id, c.EarningTypeID, c.Method, c.Amount, c.Percentage); err != nil {
				return err
			}
		}
		return nil
	})
	if querier.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

// AssignPayProfile ends the employee's current assignment the day before
// from and activates the new one.
func (s *Store) AssignPayProfile(ctx context.Context, in AssignProfileInput, basic decimal.Decimal, currency string, from time.Time) (string, error) {
	var id string
	err := s.InTx(ctx, func(q querier.Querier) error {
		if _, err := q.Exec(ctx, `
			UPDATE employee_pay_profiles
			SET is_active = false, effective_to = $2
			WHERE employee_id = $1 AND is_active
		`, in.EmployeeID, from.AddDate(0, 0, -1)); err != nil {
			return err
		}
		return q.QueryRow(ctx, `
			INSERT INTO employee_pay_profiles (employee_id, pay_profile_id, basic_salary, currency, effective_from, reason_for_change)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, in.EmployeeID, in.PayProfileID, basic, currency, from, in.Reason).Scan(&id)
	})
	return id, err
}

func (s *Store) EmployeePayProfiles(ctx context.Context, employeeID string) ([]EmployeePayProfile, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT epp.id, epp.employee_id, epp.pay_profile_id, pp.name, epp.basic_salary, epp.currency,
		       epp.effective_from, epp.effective_to, epp.reason_for_change, epp.is_active
		FROM employee_pay_profiles epp
		JOIN pay_profiles pp ON pp.id = epp.pay_profile_id
		WHERE epp.employee_id = $1
		ORDER BY epp.effective_from DESC
	`, employeeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[EmployeePayProfile])
}

func (s *Store) EmployeeExists(ctx context.Context, employeeID string) (bool, error) {
	var ok bool
	err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)", employeeID).Scan(&ok)
	return ok, err
}

func (s *Store) CreateEmployeeEarning(ctx context.Context, in EmployeeEarningInput, from time.Time, to *time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO employee_earnings (employee_id, earning_type_id, payroll_period_id, calculation_basis, amount,
			units, rate, is_recurring, effective_from, effective_to, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, in.EmployeeID, in.EarningTypeID, in.PayrollPeriodID, in.Basis, in.Amount, in.Units, in.Rate,
		in.IsRecurring, from, to, in.Reason).Scan(&id)
	return id, err
}

func (s *Store) ListEmployeeEarnings(ctx context.Context, employeeID string) ([]EmployeeEarning, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, employee_id, earning_type_id, payroll_period_id, calculation_basis, amount, units, rate,
		       is_recurring, effective_from, effective_to, reason, status
		FROM employee_earnings
		WHERE employee_id = $1
		ORDER BY effective_from DESC
	`, employeeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[EmployeeEarning])
}

func (s *Store) CreateEmployeeDeduction(ctx context.Context, in EmployeeDeductionInput, from time.Time, to *time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO employee_deductions (employee_id, deduction_type_id, payroll_period_id, calculation_method, amount,
			percentage, is_recurring, effective_from, effective_to, max_deduction_amount, balance_remaining, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, in.EmployeeID, in.DeductionTypeID, in.PayrollPeriodID, in.Method, in.Amount, in.Percentage, in.IsRecurring,
		from, to, in.MaxDeductionAmount, in.BalanceRemaining, in.Reason).Scan(&id)
	return id, err
}

func (s *Store) ListEmployeeDeductions(ctx context.Context, employeeID string) ([]EmployeeDeduction, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, employee_id, deduction_type_id, payroll_period_id, calculation_method, amount, percentage,
		       is_recurring, effective_from, effective_to, max_deduction_amount, balance_remaining, reason, status
		FROM employee_deductions
		WHERE employee_id = $1
		ORDER BY effective_from DESC
	`, employeeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[EmployeeDeduction])
}

func (s *Store) ListTaxBands(ctx context.Context) ([]TaxBand, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, lower_bound, upper_bound, rate, effective_from FROM tax_bands ORDER BY effective_from DESC, lower_bound")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[TaxBand])
}

// BandsFor returns the newest band set in effect on the given day.
func (s *Store) BandsFor(ctx context.Context, on time.Time) ([]TaxBand, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, lower_bound, upper_bound, rate, effective_from
		FROM tax_bands
		WHERE effective_from = (SELECT MAX(effective_from) FROM tax_bands WHERE effective_from <= $1)
		ORDER BY lower_bound
	`, on)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[TaxBand])
}

func (s *Store) CreateTaxBand(ctx context.Context, in TaxBandInput, from time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO tax_bands (lower_bound, upper_bound, rate, effective_from)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, in.Lower, in.Upper, in.Rate, from).Scan(&id)
	return id, err
}

func (s *Store) Settings(ctx context.Context) (Settings, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT pension_employee_rate, pension_employer_rate, personal_relief, overtime_multiplier,
		       working_days_per_month, hours_per_day
		FROM payroll_settings
		WHERE id
	`)
	if err != nil {
		return Settings{}, err
	}
	settings, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Settings])
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(), nil
	}
	return settings, err
}

func (s *Store) SaveSettings(ctx context.Context, in Settings) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO payroll_settings (id, pension_employee_rate, pension_employer_rate, personal_relief,
			overtime_multiplier, working_days_per_month, hours_per_day)
		VALUES (true, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET pension_employee_rate = EXCLUDED.pension_employee_rate,
		    pension_employer_rate = EXCLUDED.pension_employer_rate,
		    personal_relief = EXCLUDED.personal_relief,
		    overtime_multiplier = EXCLUDED.overtime_multiplier,
		    working_days_per_month = EXCLUDED.working_days_per_month,
		    hours_per_day = EXCLUDED.hours_per_day
	`, in.PensionEmployeeRate, in.PensionEmployerRate, in.PersonalRelief, in.OvertimeMultiplier,
		in.WorkingDaysPerMonth, in.HoursPerDay)
	return err
}

const periodSelect = `
	SELECT id, period_name, period_type, start_date, end_date, payment_date, status, total_gross_pay,
	       total_deductions, total_net_pay, employee_count, processing_started_at, processing_completed_at,
	       approved_by, approved_date, locked, notes, created_at
	FROM payroll_periods`

func (s *Store) OverlappingPeriod(ctx context.Context, periodType string, start, end time.Time) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payroll_periods
			WHERE period_type = $1 AND start_date <= $3 AND end_date >= $2
		)
	`, periodType, start, end).Scan(&exists)
	return exists, err
}

func (s *Store) CreatePeriod(ctx context.Context, in PeriodInput, start, end, payment time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO payroll_periods (period_name, period_type, start_date, end_date, payment_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, in.Name, in.Type, start, end, payment, in.Notes).Scan(&id)
	return id, err
}

func (s *Store) ListPeriods(ctx context.Context, status string, limit, offset int) ([]Period, error) {
	query := periodSelect
	args := []any{}
	if status != "" {
		args = append(args, status)
		query += " WHERE status = $1"
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY start_date DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Period])
}

func (s *Store) GetPeriod(ctx context.Context, q querier.Querier, id string) (Period, error) {
	rows, err := q.Query(ctx, periodSelect+" WHERE id = $1", id)
	if err != nil {
		return Period{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Period])
	return p, notFound(err, ErrPeriodNotFound)
}

// LockPeriod reads the period FOR UPDATE so transitions on it serialize.
func (s *Store) LockPeriod(ctx context.Context, q querier.Querier, id string) (Period, error) {
	rows, err := q.Query(ctx, periodSelect+" WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return Period{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Period])
	return p, notFound(err, ErrPeriodNotFound)
}

func (s *Store) SavePeriod(ctx context.Context, q querier.Querier, p Period) error {
	_, err := q.Exec(ctx, `
		UPDATE payroll_periods
		SET status = $2, total_gross_pay = $3, total_deductions = $4, total_net_pay = $5, employee_count = $6,
		    processing_started_at = $7, processing_completed_at = $8, approved_by = $9, approved_date = $10,
		    locked = $11, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Status, p.TotalGross, p.TotalDeductions, p.TotalNet, p.EmployeeCount, p.ProcessingStartedAt,
		p.ProcessingCompletedAt, p.ApprovedBy, p.ApprovedDate, p.Locked)
	return err
}

// LogAction appends to payroll_audit_log inside q.
func (s *Store) LogAction(ctx context.Context, q querier.Querier, entry AuditEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO payroll_audit_log (payroll_period_id, employee_id, action, old_values, new_values, reason,
			performed_by, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.PeriodID, entry.EmployeeID, entry.Action, nullJSON(entry.OldValues), nullJSON(entry.NewValues),
		entry.Reason, entry.PerformedBy, entry.IPAddress)
	return err
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func (s *Store) AuditLog(ctx context.Context, periodID string) ([]AuditEntry, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, payroll_period_id, employee_id, action, old_values, new_values, reason, performed_by,
		       performed_at, ip_address
		FROM payroll_audit_log
		WHERE payroll_period_id = $1
		ORDER BY performed_at
	`, periodID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[AuditEntry])
}
