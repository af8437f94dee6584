package payroll

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"schoolerp/internal/platform/querier"
)

// PayrollEmployees lists active employees holding a pay profile assignment
// that covers the period end.
func (s *Store) PayrollEmployees(ctx context.Context, period Period) ([]PayrollEmployee, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT e.id, e.employee_no, e.first_name || ' ' || e.last_name, e.official_email, e.employee_category,
		       epp.pay_profile_id, epp.basic_salary, epp.currency, e.bank_account
		FROM employees e
		JOIN employee_pay_profiles epp ON epp.employee_id = e.id
		WHERE e.employment_status IN ('active', 'on_leave')
		  AND e.hire_date <= $2
		  AND epp.effective_from <= $2
		  AND (epp.effective_to IS NULL OR epp.effective_to >= $1)
		  AND epp.is_active
		ORDER BY e.employee_no
	`, period.StartDate, period.EndDate)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[PayrollEmployee])
}

// EarningLines merges the profile's components with the employee's own
// earnings that fall inside the period. One-time earnings count once: either
// pinned to the period or dated inside it.
func (s *Store) EarningLines(ctx context.Context, emp PayrollEmployee, period Period) ([]EarningLine, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT et.code, et.name, et.category, et.gl_account_code, et.is_taxable, et.is_pensionable,
		       c.calculation_method, c.amount, c.percentage, 0::numeric, 0::numeric, et.sort_order
		FROM pay_profile_components c
		JOIN earning_types et ON et.id = c.earning_type_id
		WHERE c.pay_profile_id = $1 AND c.is_active AND et.is_active AND et.category <> 'basic'
		UNION ALL
		SELECT et.code, CASE WHEN ee.reason <> '' THEN et.name || ' (' || ee.reason || ')' ELSE et.name END,
		       et.category, et.gl_account_code, et.is_taxable, et.is_pensionable,
		       ee.calculation_basis, ee.amount, ee.rate, ee.units, ee.rate, et.sort_order
		FROM employee_earnings ee
		JOIN earning_types et ON et.id = ee.earning_type_id
		WHERE ee.employee_id = $2 AND ee.status = 'approved' AND et.category <> 'basic'
		  AND (ee.payroll_period_id = $3
		    OR (ee.payroll_period_id IS NULL AND ee.effective_from <= $5
		        AND (ee.effective_to IS NULL OR ee.effective_to >= $4)
		        AND (ee.is_recurring OR ee.effective_from >= $4)))
	`, emp.PayProfileID, emp.EmployeeID, period.ID, period.StartDate, period.EndDate)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[EarningLine])
}

func (s *Store) DeductionLines(ctx context.Context, emp PayrollEmployee, period Period) ([]DeductionLine, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT dt.code, CASE WHEN ed.reason <> '' THEN dt.name || ' (' || ed.reason || ')' ELSE dt.name END,
		       dt.category, dt.gl_account_code, ed.calculation_method, ed.amount, ed.percentage,
		       ed.max_deduction_amount, ed.balance_remaining, dt.sort_order
		FROM employee_deductions ed
		JOIN deduction_types dt ON dt.id = ed.deduction_type_id
		WHERE ed.employee_id = $1 AND ed.status = 'approved' AND dt.is_active
		  AND (ed.balance_remaining IS NULL OR ed.balance_remaining > 0)
		  AND (ed.payroll_period_id = $2
		    OR (ed.payroll_period_id IS NULL AND ed.effective_from <= $4
		        AND (ed.effective_to IS NULL OR ed.effective_to >= $3)
		        AND (ed.is_recurring OR ed.effective_from >= $3)))
	`, emp.EmployeeID, period.ID, period.StartDate, period.EndDate)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[DeductionLine])
}

// OvertimeHours sums approved overtime in the period, preferring the hours
// actually worked over the estimate.
func (s *Store) OvertimeHours(ctx context.Context, employeeID string, from, to time.Time) (decimal.Decimal, error) {
	var hours decimal.Decimal
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(COALESCE(actual_hours, estimated_hours)), 0)
		FROM overtime_requests
		WHERE employee_id = $1 AND approval_status = 'approved' AND overtime_date BETWEEN $2 AND $3
	`, employeeID, from, to).Scan(&hours)
	return hours, err
}

// EncashmentTotal sums approved encashments not yet claimed by another period.
func (s *Store) EncashmentTotal(ctx context.Context, employeeID, periodID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM leave_encashments
		WHERE employee_id = $1 AND status = 'approved'
		  AND (payroll_period_id IS NULL OR payroll_period_id = $2)
	`, employeeID, periodID).Scan(&total)
	return total, err
}

// SaveCalculation upserts the period row for the employee and replaces its
// detail lines.
func (s *Store) SaveCalculation(ctx context.Context, q querier.Querier, c Calculation, details []Detail) (string, error) {
	var id string
	err := q.QueryRow(ctx, `
		INSERT INTO payroll_calculations (employee_id, payroll_period_id, basic_salary, total_earnings, total_allowances,
			total_overtime, total_bonuses, gross_pay, total_statutory_deductions, total_voluntary_deductions,
			total_loan_deductions, total_deductions, taxable_income, tax_amount, pension_employee, pension_employer,
			net_pay, employer_cost, payment_method, bank_account_number, payment_status, calculated_at, calculated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, 'pending', $21, $22)
		ON CONFLICT (employee_id, payroll_period_id) DO UPDATE
		SET basic_salary = EXCLUDED.basic_salary, total_earnings = EXCLUDED.total_earnings,
		    total_allowances = EXCLUDED.total_allowances, total_overtime = EXCLUDED.total_overtime,
		    total_bonuses = EXCLUDED.total_bonuses, gross_pay = EXCLUDED.gross_pay,
		    total_statutory_deductions = EXCLUDED.total_statutory_deductions,
		    total_voluntary_deductions = EXCLUDED.total_voluntary_deductions,
		    total_loan_deductions = EXCLUDED.total_loan_deductions, total_deductions = EXCLUDED.total_deductions,
		    taxable_income = EXCLUDED.taxable_income, tax_amount = EXCLUDED.tax_amount,
		    pension_employee = EXCLUDED.pension_employee, pension_employer = EXCLUDED.pension_employer,
		    net_pay = EXCLUDED.net_pay, employer_cost = EXCLUDED.employer_cost,
		    bank_account_number = EXCLUDED.bank_account_number, payment_status = 'pending',
		    payment_date = NULL, payment_reference = '',
		    calculated_at = EXCLUDED.calculated_at, calculated_by = EXCLUDED.calculated_by
		RETURNING id
	`, c.EmployeeID, c.PeriodID, c.BasicSalary, c.TotalEarnings, c.TotalAllowances, c.TotalOvertime, c.TotalBonuses,
		c.GrossPay, c.TotalStatutory, c.TotalVoluntary, c.TotalLoan, c.TotalDeductions, c.TaxableIncome, c.TaxAmount,
		c.PensionEmployee, c.PensionEmployer, c.NetPay, c.EmployerCost, c.PaymentMethod, c.BankAccountNumber,
		c.CalculatedAt, c.CalculatedBy).Scan(&id)
	if err != nil {
		return "", err
	}
	if _, err := q.Exec(ctx, "DELETE FROM payroll_calculation_details WHERE payroll_calculation_id = $1", id); err != nil {
		return "", err
	}
	for _, d := range details {
		if _, err := q.Exec(ctx, `
			INSERT INTO payroll_calculation_details (payroll_calculation_id, item_type, code, category, description,
				amount, is_taxable, is_pensionable, units, rate, gl_account_code, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, id, d.ItemType, d.Code, d.Category, d.Description, d.Amount, d.IsTaxable, d.IsPensionable, d.Units,
			d.Rate, d.GLAccountCode, d.SortOrder); err != nil {
			return "", err
		}
	}
	return id, nil
}

// PruneCalculations drops rows for employees no longer in the run.
func (s *Store) PruneCalculations(ctx context.Context, q querier.Querier, periodID string, keep []string) error {
	_, err := q.Exec(ctx, `
		DELETE FROM payroll_calculations
		WHERE payroll_period_id = $1 AND NOT (employee_id = ANY($2::uuid[]))
	`, periodID, keep)
	return err
}

// ClaimEncashments pins approved encashments to the period so a later
// period does not pay them again.
func (s *Store) ClaimEncashments(ctx context.Context, q querier.Querier, periodID string, employeeIDs []string) error {
	_, err := q.Exec(ctx, `
		UPDATE leave_encashments
		SET payroll_period_id = $1
		WHERE status = 'approved' AND payroll_period_id IS NULL AND employee_id = ANY($2::uuid[])
	`, periodID, employeeIDs)
	return err
}

func (s *Store) ReleaseEncashments(ctx context.Context, q querier.Querier, periodID string) error {
	_, err := q.Exec(ctx, `
		UPDATE leave_encashments SET payroll_period_id = NULL
		WHERE payroll_period_id = $1 AND status = 'approved'
	`, periodID)
	return err
}

func (s *Store) Summary(ctx context.Context, q querier.Querier, periodID string) (PeriodSummary, error) {
	sum := PeriodSummary{PeriodID: periodID}
	err := q.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(gross_pay), 0), COALESCE(SUM(total_deductions), 0), COALESCE(SUM(net_pay), 0),
		       COALESCE(SUM(tax_amount), 0), COALESCE(SUM(pension_employee), 0), COALESCE(SUM(pension_employer), 0),
		       COALESCE(SUM(employer_cost), 0)
		FROM payroll_calculations
		WHERE payroll_period_id = $1
	`, periodID).Scan(&sum.EmployeeCount, &sum.GrossPay, &sum.Deductions, &sum.NetPay, &sum.Tax,
		&sum.PensionEmployee, &sum.PensionEmployer, &sum.EmployerCost)
	return sum, err
}

func (s *Store) DepartmentSummary(ctx context.Context, periodID, departmentID string) (PeriodSummary, error) {
	sum := PeriodSummary{PeriodID: periodID, DepartmentID: departmentID}
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(c.gross_pay), 0), COALESCE(SUM(c.total_deductions), 0), COALESCE(SUM(c.net_pay), 0),
		       COALESCE(SUM(c.tax_amount), 0), COALESCE(SUM(c.pension_employee), 0), COALESCE(SUM(c.pension_employer), 0),
		       COALESCE(SUM(c.employer_cost), 0)
		FROM payroll_calculations c
		JOIN employees e ON e.id = c.employee_id
		WHERE c.payroll_period_id = $1 AND e.department_id = $2
	`, periodID, departmentID).Scan(&sum.EmployeeCount, &sum.GrossPay, &sum.Deductions, &sum.NetPay, &sum.Tax,
		&sum.PensionEmployee, &sum.PensionEmployer, &sum.EmployerCost)
	return sum, err
}

// SettlePeriod records the payout: pending calculations become paid,
// claimed encashments and one-time items are processed, and loan balances
// shrink by what was deducted.
func (s *Store) SettlePeriod(ctx context.Context, q querier.Querier, period Period, paidOn time.Time, reference string) error {
	statements := []struct {
		sql  string
		args []any
	}{
		{`UPDATE payroll_calculations
		  SET payment_status = 'paid', payment_date = $2, payment_reference = $3
		  WHERE payroll_period_id = $1 AND payment_status = 'pending'`,
			[]any{period.ID, paidOn, reference}},
		{`UPDATE leave_encashments SET status = 'processed', processed_at = now()
		  WHERE payroll_period_id = $1 AND status = 'approved'`,
			[]any{period.ID}},
		{`UPDATE employee_earnings SET status = 'processed'
		  WHERE status = 'approved' AND NOT is_recurring
		    AND (payroll_period_id = $1 OR (payroll_period_id IS NULL AND effective_from BETWEEN $2 AND $3))
		    AND employee_id IN (SELECT employee_id FROM payroll_calculations WHERE payroll_period_id = $1)`,
			[]any{period.ID, period.StartDate, period.EndDate}},
		{`UPDATE employee_deductions d
		  SET balance_remaining = GREATEST(d.balance_remaining - x.amount, 0)
		  FROM (
		    SELECT c.employee_id, pd.code, SUM(pd.amount) AS amount
		    FROM payroll_calculation_details pd
		    JOIN payroll_calculations c ON c.id = pd.payroll_calculation_id
		    WHERE c.payroll_period_id = $1 AND pd.item_type = 'deduction'
		    GROUP BY c.employee_id, pd.code
		  ) x, deduction_types dt
		  WHERE dt.id = d.deduction_type_id AND dt.code = x.code AND d.employee_id = x.employee_id
		    AND d.balance_remaining IS NOT NULL AND d.status = 'approved'`,
			[]any{period.ID}},
		{`UPDATE employee_deductions SET status = 'processed'
		  WHERE status = 'approved'
		    AND (balance_remaining = 0
		      OR (NOT is_recurring AND (payroll_period_id = $1 OR (payroll_period_id IS NULL AND effective_from BETWEEN $2 AND $3))))
		    AND employee_id IN (SELECT employee_id FROM payroll_calculations WHERE payroll_period_id = $1)`,
			[]any{period.ID, period.StartDate, period.EndDate}},
	}
	for _, st := range statements {
		if _, err := q.Exec(ctx, st.sql, st.args...); err != nil {
			return err
		}
	}
	return nil
}

const calculationSelect = `
	SELECT c.id, c.employee_id, e.employee_no, e.first_name || ' ' || e.last_name, c.payroll_period_id,
	       c.basic_salary, c.total_earnings, c.total_allowances, c.total_overtime, c.total_bonuses, c.gross_pay,
	       c.total_statutory_deductions, c.total_voluntary_deductions, c.total_loan_deductions, c.total_deductions,
	       c.taxable_income, c.tax_amount, c.pension_employee, c.pension_employer, c.net_pay, c.employer_cost,
	       c.payment_method, c.bank_account_number, c.payment_status, c.payment_date, c.payment_reference,
	       c.calculated_at, c.calculated_by
	FROM payroll_calculations c
	JOIN employees e ON e.id = c.employee_id`

func (s *Store) ListCalculations(ctx context.Context, periodID string) ([]Calculation, error) {
	rows, err := s.DB.Query(ctx, calculationSelect+" WHERE c.payroll_period_id = $1 ORDER BY e.employee_no", periodID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Calculation])
}

func (s *Store) GetCalculation(ctx context.Context, q querier.Querier, id string) (Calculation, error) {
	rows, err := q.Query(ctx, calculationSelect+" WHERE c.id = $1", id)
	if err != nil {
		return Calculation{}, err
	}
	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Calculation])
	return c, notFound(err, ErrNotFound)
}

func (s *Store) EmployeeCalculations(ctx context.Context, employeeID string, limit int) ([]Calculation, error) {
	rows, err := s.DB.Query(ctx, calculationSelect+`
		JOIN payroll_periods p ON p.id = c.payroll_period_id
		WHERE c.employee_id = $1 AND p.status IN ('approved', 'paid', 'closed')
		ORDER BY p.start_date DESC
		LIMIT $2
	`, employeeID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Calculation])
}

func (s *Store) Details(ctx context.Context, calculationID string) ([]Detail, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT item_type, code, category, description, amount, is_taxable, is_pensionable, units, rate,
		       gl_account_code, sort_order
		FROM payroll_calculation_details
		WHERE payroll_calculation_id = $1
		ORDER BY sort_order
	`, calculationID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Detail])
}

func (s *Store) SetPaymentStatus(ctx context.Context, q querier.Querier, id, status, reference string, paidOn *time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE payroll_calculations
		SET payment_status = $2, payment_reference = $3, payment_date = $4
		WHERE id = $1
	`, id, status, reference, paidOn)
	return err
}

const payslipSelect = `
	SELECT ps.id, ps.payroll_calculation_id, ps.employee_id, ps.payroll_period_id, p.period_name, ps.payslip_number,
	       ps.generation_date, ps.storage_key, ps.email_sent, ps.email_sent_date, ps.downloaded, ps.download_date
	FROM payslips ps
	JOIN payroll_periods p ON p.id = ps.payroll_period_id`

func (s *Store) GetPayslip(ctx context.Context, id string) (Payslip, error) {
	rows, err := s.DB.Query(ctx, payslipSelect+" WHERE ps.id = $1", id)
	if err != nil {
		return Payslip{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Payslip])
	return p, notFound(err, ErrNotFound)
}

func (s *Store) ListPayslips(ctx context.Context, employeeID string) ([]Payslip, error) {
	rows, err := s.DB.Query(ctx, payslipSelect+" WHERE ps.employee_id = $1 ORDER BY p.start_date DESC", employeeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Payslip])
}

// UpsertPayslip keeps one payslip per calculation; regenerating replaces
// the stored file key and resets delivery flags.
func (s *Store) UpsertPayslip(ctx context.Context, p Payslip) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO payslips (payroll_calculation_id, employee_id, payroll_period_id, payslip_number, generation_date, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payroll_calculation_id) DO UPDATE
		SET storage_key = EXCLUDED.storage_key, generation_date = EXCLUDED.generation_date,
		    email_sent = false, email_sent_date = NULL
		RETURNING id
	`, p.CalculationID, p.EmployeeID, p.PeriodID, p.Number, p.GenerationDate, p.StorageKey).Scan(&id)
	return id, err
}

func (s *Store) MarkDownloaded(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.Exec(ctx, "UPDATE payslips SET downloaded = true, download_date = $2 WHERE id = $1", id, at)
	return err
}

func (s *Store) MarkEmailed(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.Exec(ctx, "UPDATE payslips SET email_sent = true, email_sent_date = $2 WHERE id = $1", id, at)
	return err
}

// Contact returns the fields a payslip needs about its employee.
func (s *Store) Contact(ctx context.Context, employeeID string) (PayrollEmployee, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT e.id, e.employee_no, e.first_name || ' ' || e.last_name, e.official_email, e.employee_category,
		       COALESCE(epp.pay_profile_id::text, ''), COALESCE(epp.basic_salary, 0), COALESCE(epp.currency, 'USD'),
		       e.bank_account
		FROM employees e
		LEFT JOIN employee_pay_profiles epp ON epp.employee_id = e.id AND epp.is_active
		WHERE e.id = $1
	`, employeeID)
	if err != nil {
		return PayrollEmployee{}, err
	}
	emp, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[PayrollEmployee])
	return emp, notFound(err, ErrNotFound)
}
