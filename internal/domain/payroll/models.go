package payroll

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type EarningType struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	IsTaxable     bool   `json:"isTaxable"`
	IsPensionable bool   `json:"isPensionable"`
	GLAccountCode string `json:"glAccountCode"`
	IsActive      bool   `json:"isActive"`
	SortOrder     int    `json:"sortOrder"`
}

type EarningTypeInput struct {
	Code          string `json:"code" validate:"required,max=32"`
	Name          string `json:"name" validate:"notblank,max=100"`
	Category      string `json:"category" validate:"required,oneof=basic allowance bonus overtime commission arrears"`
	IsTaxable     bool   `json:"isTaxable"`
	IsPensionable bool   `json:"isPensionable"`
	GLAccountCode string `json:"glAccountCode" validate:"max=32"`
	SortOrder     int    `json:"sortOrder"`
}

type DeductionType struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	IsMandatory   bool   `json:"isMandatory"`
	GLAccountCode string `json:"glAccountCode"`
	IsActive      bool   `json:"isActive"`
	SortOrder     int    `json:"sortOrder"`
}

type DeductionTypeInput struct {
	Code          string `json:"code" validate:"required,max=32"`
	Name          string `json:"name" validate:"notblank,max=100"`
	Category      string `json:"category" validate:"required,oneof=statutory voluntary loan advance penalty"`
	IsMandatory   bool   `json:"isMandatory"`
	GLAccountCode string `json:"glAccountCode" validate:"max=32"`
	SortOrder     int    `json:"sortOrder"`
}

type PayProfile struct {
	ID               string          `json:"id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	JobGradeID       *string         `json:"jobGradeId,omitempty"`
	EmployeeCategory string          `json:"employeeCategory"`
	BasicSalary      decimal.Decimal `json:"basicSalary"`
	Currency         string          `json:"currency"`
	PayFrequency     string          `json:"payFrequency"`
	IsActive         bool            `json:"isActive"`
	CreatedAt        time.Time       `json:"createdAt"`
	Components       []Component     `json:"components,omitempty" db:"-"`
}

type Component struct {
	ID              string          `json:"id"`
	PayProfileID    string          `json:"payProfileId"`
	EarningTypeID   string          `json:"earningTypeId"`
	EarningTypeCode string          `json:"earningTypeCode"`
	Method          string          `json:"calculationMethod"`
	Amount          decimal.Decimal `json:"amount"`
	Percentage      decimal.Decimal `json:"percentage"`
	IsActive        bool            `json:"isActive"`
}

type ComponentInput struct {
	EarningTypeID string          `json:"earningTypeId" validate:"required,uuid"`
	Method        string          `json:"calculationMethod" validate:"required,oneof=fixed percentage_of_basic"`
	Amount        decimal.Decimal `json:"amount" validate:"nonneg"`
	Percentage    decimal.Decimal `json:"percentage" validate:"percent"`
}

type PayProfileInput struct {
	Code             string           `json:"code" validate:"required,max=32"`
	Name             string           `json:"name" validate:"notblank,max=100"`
	JobGradeID       *string          `json:"jobGradeId" validate:"omitempty,uuid"`
	EmployeeCategory string           `json:"employeeCategory" validate:"required,oneof=teaching non_teaching contract casual"`
	BasicSalary      decimal.Decimal  `json:"basicSalary" validate:"positive"`
	Currency         string           `json:"currency" validate:"omitempty,len=3"`
	PayFrequency     string           `json:"payFrequency" validate:"omitempty,oneof=monthly bi_weekly hourly"`
	Components       []ComponentInput `json:"components" validate:"dive"`
}

type EmployeePayProfile struct {
	ID            string          `json:"id"`
	EmployeeID    string          `json:"employeeId"`
	PayProfileID  string          `json:"payProfileId"`
	ProfileName   string          `json:"payProfileName"`
	BasicSalary   decimal.Decimal `json:"basicSalary"`
	Currency      string          `json:"currency"`
	EffectiveFrom time.Time       `json:"effectiveFrom"`
	EffectiveTo   *time.Time      `json:"effectiveTo,omitempty"`
	Reason        string          `json:"reasonForChange"`
	IsActive      bool            `json:"isActive"`
}

type AssignProfileInput struct {
	EmployeeID    string              `json:"employeeId" validate:"required,uuid"`
	PayProfileID  string              `json:"payProfileId" validate:"required,uuid"`
	BasicSalary   decimal.NullDecimal `json:"basicSalary"`
	EffectiveFrom string              `json:"effectiveFrom" validate:"required,datetime=2006-01-02"`
	Reason        string              `json:"reasonForChange" validate:"max=500"`
}

type EmployeeEarning struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employeeId"`
	EarningTypeID   string          `json:"earningTypeId"`
	PayrollPeriodID *string         `json:"payrollPeriodId,omitempty"`
	Basis           string          `json:"calculationBasis"`
	Amount          decimal.Decimal `json:"amount"`
	Units           decimal.Decimal `json:"units"`
	Rate            decimal.Decimal `json:"rate"`
	IsRecurring     bool            `json:"isRecurring"`
	EffectiveFrom   time.Time       `json:"effectiveFrom"`
	EffectiveTo     *time.Time      `json:"effectiveTo,omitempty"`
	Reason          string          `json:"reason"`
	Status          string          `json:"status"`
}

type EmployeeEarningInput struct {
	EmployeeID      string          `json:"employeeId" validate:"required,uuid"`
	EarningTypeID   string          `json:"earningTypeId" validate:"required,uuid"`
	PayrollPeriodID *string         `json:"payrollPeriodId" validate:"omitempty,uuid"`
	Basis           string          `json:"calculationBasis" validate:"omitempty,oneof=fixed hours rate percentage"`
	Amount          decimal.Decimal `json:"amount" validate:"nonneg"`
	Units           decimal.Decimal `json:"units" validate:"nonneg"`
	Rate            decimal.Decimal `json:"rate" validate:"nonneg"`
	IsRecurring     bool            `json:"isRecurring"`
	EffectiveFrom   string          `json:"effectiveFrom" validate:"required,datetime=2006-01-02"`
	EffectiveTo     string          `json:"effectiveTo" validate:"omitempty,datetime=2006-01-02"`
	Reason          string          `json:"reason" validate:"max=500"`
}

type EmployeeDeduction struct {
	ID                 string              `json:"id"`
	EmployeeID         string              `json:"employeeId"`
	DeductionTypeID    string              `json:"deductionTypeId"`
	PayrollPeriodID    *string             `json:"payrollPeriodId,omitempty"`
	Method             string              `json:"calculationMethod"`
	Amount             decimal.Decimal     `json:"amount"`
	Percentage         decimal.Decimal     `json:"percentage"`
	IsRecurring        bool                `json:"isRecurring"`
	EffectiveFrom      time.Time           `json:"effectiveFrom"`
	EffectiveTo        *time.Time          `json:"effectiveTo,omitempty"`
	MaxDeductionAmount decimal.NullDecimal `json:"maxDeductionAmount"`
	BalanceRemaining   decimal.NullDecimal `json:"balanceRemaining"`
	Reason             string              `json:"reason"`
	Status             string              `json:"status"`
}

type EmployeeDeductionInput struct {
	EmployeeID         string              `json:"employeeId" validate:"required,uuid"`
	DeductionTypeID    string              `json:"deductionTypeId" validate:"required,uuid"`
	PayrollPeriodID    *string             `json:"payrollPeriodId" validate:"omitempty,uuid"`
	Method             string              `json:"calculationMethod" validate:"omitempty,oneof=fixed percentage_of_gross percentage_of_basic"`
	Amount             decimal.Decimal     `json:"amount" validate:"nonneg"`
	Percentage         decimal.Decimal     `json:"percentage" validate:"percent"`
	IsRecurring        bool                `json:"isRecurring"`
	EffectiveFrom      string              `json:"effectiveFrom" validate:"required,datetime=2006-01-02"`
	EffectiveTo        string              `json:"effectiveTo" validate:"omitempty,datetime=2006-01-02"`
	MaxDeductionAmount decimal.NullDecimal `json:"maxDeductionAmount"`
	BalanceRemaining   decimal.NullDecimal `json:"balanceRemaining"`
	Reason             string              `json:"reason" validate:"max=500"`
}

type TaxBand struct {
	ID            string              `json:"id"`
	Lower         decimal.Decimal     `json:"lowerBound"`
	Upper         decimal.NullDecimal `json:"upperBound"`
	Rate          decimal.Decimal     `json:"rate"`
	EffectiveFrom time.Time           `json:"effectiveFrom"`
}

type TaxBandInput struct {
	Lower         decimal.Decimal     `json:"lowerBound" validate:"nonneg"`
	Upper         decimal.NullDecimal `json:"upperBound"`
	Rate          decimal.Decimal     `json:"rate" validate:"fraction"`
	EffectiveFrom string              `json:"effectiveFrom" validate:"required,datetime=2006-01-02"`
}

// Settings holds the institution-wide payroll constants. Pension and tax
// rates are fractions (0.06); component and deduction percentages are 0 to 100.
type Settings struct {
	PensionEmployeeRate decimal.Decimal `json:"pensionEmployeeRate" validate:"fraction"`
	PensionEmployerRate decimal.Decimal `json:"pensionEmployerRate" validate:"fraction"`
	PersonalRelief      decimal.Decimal `json:"personalRelief" validate:"nonneg"`
	OvertimeMultiplier  decimal.Decimal `json:"overtimeMultiplier" validate:"positive"`
	WorkingDaysPerMonth int             `json:"workingDaysPerMonth" validate:"gte=1,lte=31"`
	HoursPerDay         int             `json:"hoursPerDay" validate:"gte=1,lte=24"`
}

type Period struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"periodName"`
	Type                  string          `json:"periodType"`
	StartDate             time.Time       `json:"startDate"`
	EndDate               time.Time       `json:"endDate"`
	PaymentDate           time.Time       `json:"paymentDate"`
	Status                string          `json:"status"`
	TotalGross            decimal.Decimal `json:"totalGrossPay"`
	TotalDeductions       decimal.Decimal `json:"totalDeductions"`
	TotalNet              decimal.Decimal `json:"totalNetPay"`
	EmployeeCount         int             `json:"employeeCount"`
	ProcessingStartedAt   *time.Time      `json:"processingStartedAt,omitempty"`
	ProcessingCompletedAt *time.Time      `json:"processingCompletedAt,omitempty"`
	ApprovedBy            *string         `json:"approvedBy,omitempty"`
	ApprovedDate          *time.Time      `json:"approvedDate,omitempty"`
	Locked                bool            `json:"locked"`
	Notes                 string          `json:"notes"`
	CreatedAt             time.Time       `json:"createdAt"`
}

type PeriodInput struct {
	Name        string `json:"periodName" validate:"notblank,max=100"`
	Type        string `json:"periodType" validate:"required,oneof=monthly bi_weekly weekly"`
	StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"required,datetime=2006-01-02"`
	PaymentDate string `json:"paymentDate" validate:"required,datetime=2006-01-02"`
	Notes       string `json:"notes" validate:"max=1000"`
}

type Calculation struct {
	ID                string          `json:"id"`
	EmployeeID        string          `json:"employeeId"`
	EmployeeNo        string          `json:"employeeNo"`
	EmployeeName      string          `json:"employeeName"`
	PeriodID          string          `json:"payrollPeriodId"`
	BasicSalary       decimal.Decimal `json:"basicSalary"`
	TotalEarnings     decimal.Decimal `json:"totalEarnings"`
	TotalAllowances   decimal.Decimal `json:"totalAllowances"`
	TotalOvertime     decimal.Decimal `json:"totalOvertime"`
	TotalBonuses      decimal.Decimal `json:"totalBonuses"`
	GrossPay          decimal.Decimal `json:"grossPay"`
	TotalStatutory    decimal.Decimal `json:"totalStatutoryDeductions"`
	TotalVoluntary    decimal.Decimal `json:"totalVoluntaryDeductions"`
	TotalLoan         decimal.Decimal `json:"totalLoanDeductions"`
	TotalDeductions   decimal.Decimal `json:"totalDeductions"`
	TaxableIncome     decimal.Decimal `json:"taxableIncome"`
	TaxAmount         decimal.Decimal `json:"taxAmount"`
	PensionEmployee   decimal.Decimal `json:"pensionEmployee"`
	PensionEmployer   decimal.Decimal `json:"pensionEmployer"`
	NetPay            decimal.Decimal `json:"netPay"`
	EmployerCost      decimal.Decimal `json:"employerCost"`
	PaymentMethod     string          `json:"paymentMethod"`
	BankAccountNumber string          `json:"-"`
	PaymentStatus     string          `json:"paymentStatus"`
	PaymentDate       *time.Time      `json:"paymentDate,omitempty"`
	PaymentReference  string          `json:"paymentReference"`
	CalculatedAt      time.Time       `json:"calculatedAt"`
	CalculatedBy      string          `json:"calculatedBy"`
}

type Detail struct {
	ItemType      string              `json:"itemType"`
	Code          string              `json:"code"`
	Category      string              `json:"category"`
	Description   string              `json:"description"`
	Amount        decimal.Decimal     `json:"amount"`
	IsTaxable     bool                `json:"isTaxable"`
	IsPensionable bool                `json:"isPensionable"`
	Units         decimal.NullDecimal `json:"units"`
	Rate          decimal.NullDecimal `json:"rate"`
	GLAccountCode string              `json:"glAccountCode"`
	SortOrder     int                 `json:"sortOrder"`
}

type Breakdown struct {
	Calculation Calculation `json:"calculation"`
	Period      Period      `json:"period"`
	Earnings    []Detail    `json:"earnings"`
	Deductions  []Detail    `json:"deductions"`
}

type PeriodSummary struct {
	PeriodID        string          `json:"periodId"`
	DepartmentID    string          `json:"departmentId,omitempty"`
	Status          string          `json:"status"`
	EmployeeCount   int             `json:"employeeCount"`
	GrossPay        decimal.Decimal `json:"totalGrossPay"`
	Deductions      decimal.Decimal `json:"totalDeductions"`
	NetPay          decimal.Decimal `json:"totalNetPay"`
	Tax             decimal.Decimal `json:"totalTax"`
	PensionEmployee decimal.Decimal `json:"totalPensionEmployee"`
	PensionEmployer decimal.Decimal `json:"totalPensionEmployer"`
	EmployerCost    decimal.Decimal `json:"totalEmployerCost"`
}

type PaymentStatusInput struct {
	Status    string `json:"status" validate:"required,oneof=pending paid failed cancelled"`
	Reference string `json:"reference" validate:"max=100"`
}

type PayInput struct {
	PaymentDate string `json:"paymentDate" validate:"omitempty,datetime=2006-01-02"`
	Reference   string `json:"reference" validate:"max=100"`
}

type Payslip struct {
	ID             string     `json:"id"`
	CalculationID  string     `json:"payrollCalculationId"`
	EmployeeID     string     `json:"employeeId"`
	PeriodID       string     `json:"payrollPeriodId"`
	PeriodName     string     `json:"periodName"`
	Number         string     `json:"payslipNumber"`
	GenerationDate time.Time  `json:"generationDate"`
	StorageKey     string     `json:"-"`
	EmailSent      bool       `json:"emailSent"`
	EmailSentDate  *time.Time `json:"emailSentDate,omitempty"`
	Downloaded     bool       `json:"downloaded"`
	DownloadDate   *time.Time `json:"downloadDate,omitempty"`
}

type GenerateResult struct {
	Generated int      `json:"generated"`
	Errors    []string `json:"errors"`
}

type AuditEntry struct {
	ID          string          `json:"id"`
	PeriodID    string          `json:"payrollPeriodId"`
	EmployeeID  *string         `json:"employeeId,omitempty"`
	Action      string          `json:"action"`
	OldValues   json.RawMessage `json:"oldValues,omitempty"`
	NewValues   json.RawMessage `json:"newValues,omitempty"`
	Reason      string          `json:"reason"`
	PerformedBy *string         `json:"performedBy,omitempty"`
	PerformedAt time.Time       `json:"performedAt"`
	IPAddress   string          `json:"ipAddress"`
}

// PayrollEmployee is an employee due to be paid in a period, with the pay
// profile active at the period end.
type PayrollEmployee struct {
	EmployeeID    string
	EmployeeNo    string
	FullName      string
	OfficialEmail string
	Category      string
	PayProfileID  string
	BasicSalary   decimal.Decimal
	Currency      string
	BankAccount   string
}

type RunSummary struct {
	PeriodID  string          `json:"periodId"`
	Employees int             `json:"employees"`
	GrossPay  decimal.Decimal `json:"totalGrossPay"`
	NetPay    decimal.Decimal `json:"totalNetPay"`
}
