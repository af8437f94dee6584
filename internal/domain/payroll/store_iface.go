package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"schoolerp/internal/platform/querier"
)

type StoreAPI interface {
	InTx(ctx context.Context, fn func(q querier.Querier) error) error
	Pool() querier.Querier

	ListEarningTypes(ctx context.Context) ([]EarningType, error)
	CreateEarningType(ctx context.Context, in EarningTypeInput) (string, error)
	ListDeductionTypes(ctx context.Context) ([]DeductionType, error)
	CreateDeductionType(ctx context.Context, in DeductionTypeInput) (string, error)
	ListPayProfiles(ctx context.Context) ([]PayProfile, error)
	GetPayProfile(ctx context.Context, id string) (PayProfile, error)
	CreatePayProfile(ctx context.Context, in PayProfileInput) (string, error)
	AssignPayProfile(ctx context.Context, in AssignProfileInput, basic decimal.Decimal, currency string, from time.Time) (string, error)
	EmployeePayProfiles(ctx context.Context, employeeID string) ([]EmployeePayProfile, error)
	EmployeeExists(ctx context.Context, employeeID string) (bool, error)
	CreateEmployeeEarning(ctx context.Context, in EmployeeEarningInput, from time.Time, to *time.Time) (string, error)
	ListEmployeeEarnings(ctx context.Context, employeeID string) ([]EmployeeEarning, error)
	CreateEmployeeDeduction(ctx context.Context, in EmployeeDeductionInput, from time.Time, to *time.Time) (string, error)
	ListEmployeeDeductions(ctx context.Context, employeeID string) ([]EmployeeDeduction, error)
	ListTaxBands(ctx context.Context) ([]TaxBand, error)
	BandsFor(ctx context.Context, on time.Time) ([]TaxBand, error)
	CreateTaxBand(ctx context.Context, in TaxBandInput, from time.Time) (string, error)
	Settings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, in Settings) error

	OverlappingPeriod(ctx context.Context, periodType string, start, end time.Time) (bool, error)
	CreatePeriod(ctx context.Context, in PeriodInput, start, end, payment time.Time) (string, error)
	ListPeriods(ctx context.Context, status string, limit, offset int) ([]Period, error)
	GetPeriod(ctx context.Context, q querier.Querier, id string) (Period, error)
	LockPeriod(ctx context.Context, q querier.Querier, id string) (Period, error)
	SavePeriod(ctx context.Context, q querier.Querier, p Period) error
	LogAction(ctx context.Context, q querier.Querier, entry AuditEntry) error
	AuditLog(ctx context.Context, periodID string) ([]AuditEntry, error)

	PayrollEmployees(ctx context.Context, period Period) ([]PayrollEmployee, error)
	EarningLines(ctx context.Context, emp PayrollEmployee, period Period) ([]EarningLine, error)
	DeductionLines(ctx context.Context, emp PayrollEmployee, period Period) ([]DeductionLine, error)
	OvertimeHours(ctx context.Context, employeeID string, from, to time.Time) (decimal.Decimal, error)
	EncashmentTotal(ctx context.Context, employeeID, periodID string) (decimal.Decimal, error)
	SaveCalculation(ctx context.Context, q querier.Querier, c Calculation, details []Detail) (string, error)
	PruneCalculations(ctx context.Context, q querier.Querier, periodID string, keep []string) error
	ClaimEncashments(ctx context.Context, q querier.Querier, periodID string, employeeIDs []string) error
	ReleaseEncashments(ctx context.Context, q querier.Querier, periodID string) error
	Summary(ctx context.Context, q querier.Querier, periodID string) (PeriodSummary, error)
	DepartmentSummary(ctx context.Context, periodID, departmentID string) (PeriodSummary, error)
	SettlePeriod(ctx context.Context, q querier.Querier, period Period, paidOn time.Time, reference string) error
	ListCalculations(ctx context.Context, periodID string) ([]Calculation, error)
	GetCalculation(ctx context.Context, q querier.Querier, id string) (Calculation, error)
	EmployeeCalculations(ctx context.Context, employeeID string, limit int) ([]Calculation, error)
	Details(ctx context.Context, calculationID string) ([]Detail, error)
	SetPaymentStatus(ctx context.Context, q querier.Querier, id, status, reference string, paidOn *time.Time) error

	GetPayslip(ctx context.Context, id string) (Payslip, error)
	ListPayslips(ctx context.Context, employeeID string) ([]Payslip, error)
	UpsertPayslip(ctx context.Context, p Payslip) (string, error)
	MarkDownloaded(ctx context.Context, id string, at time.Time) error
	MarkEmailed(ctx context.Context, id string, at time.Time) error
	Contact(ctx context.Context, employeeID string) (PayrollEmployee, error)
}
