package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaveType struct {
	ID                  string          `json:"id"`
	Code                string          `json:"code"`
	Name                string          `json:"name"`
	Category            string          `json:"category"`
	MaxDaysPerYear      decimal.Decimal `json:"maxDaysPerYear"`
	GenderSpecific      string          `json:"genderSpecific"`
	AdvanceNoticeDays   int             `json:"advanceNoticeDays"`
	CanCarryForward     bool            `json:"canBeCarriedForward"`
	MaxCarryForwardDays decimal.Decimal `json:"maxCarryforwardDays"`
	CanBeEncashed       bool            `json:"canBeEncashed"`
	AccrualRate         decimal.Decimal `json:"accrualRate"`
	AccrualMethod       string          `json:"accrualMethod"`
	IsActive            bool            `json:"isActive"`
}

type TypeInput struct {
	Code                string          `json:"code" validate:"required,max=32"`
	Name                string          `json:"name" validate:"notblank,max=100"`
	Category            string          `json:"category" validate:"required,oneof=paid unpaid half_paid"`
	MaxDaysPerYear      decimal.Decimal `json:"maxDaysPerYear" validate:"nonneg"`
	GenderSpecific      string          `json:"genderSpecific" validate:"omitempty,oneof=all male female"`
	AdvanceNoticeDays   int             `json:"advanceNoticeDays" validate:"gte=0"`
	CanCarryForward     bool            `json:"canBeCarriedForward"`
	MaxCarryForwardDays decimal.Decimal `json:"maxCarryforwardDays" validate:"nonneg"`
	CanBeEncashed       bool            `json:"canBeEncashed"`
	AccrualRate         decimal.Decimal `json:"accrualRate" validate:"nonneg"`
	AccrualMethod       string          `json:"accrualMethod" validate:"omitempty,oneof=monthly yearly"`
}

type Policy struct {
	ID                       string          `json:"id"`
	LeaveTypeID              string          `json:"leaveTypeId"`
	EmployeeCategory         string          `json:"employeeCategory"`
	AnnualEntitlementDays    decimal.Decimal `json:"annualEntitlementDays"`
	AccrualStartsAfterMonths int             `json:"accrualStartsAfterMonths"`
	MaxConsecutiveDays       decimal.Decimal `json:"maxConsecutiveDays"`
	MinDaysPerApplication    decimal.Decimal `json:"minDaysPerApplication"`
	BlackoutApplies          bool            `json:"blackoutApplies"`
	EffectiveFrom            time.Time       `json:"effectiveFrom"`
	EffectiveTo              *time.Time      `json:"effectiveTo,omitempty"`
}

type PolicyInput struct {
	LeaveTypeID              string          `json:"leaveTypeId" validate:"required,uuid"`
	EmployeeCategory         string          `json:"employeeCategory" validate:"required,oneof=teaching non_teaching contract casual"`
	AnnualEntitlementDays    decimal.Decimal `json:"annualEntitlementDays" validate:"nonneg"`
	AccrualStartsAfterMonths int             `json:"accrualStartsAfterMonths" validate:"gte=0"`
	MaxConsecutiveDays       decimal.Decimal `json:"maxConsecutiveDays" validate:"nonneg"`
	MinDaysPerApplication    decimal.Decimal `json:"minDaysPerApplication" validate:"nonneg"`
	BlackoutApplies          bool            `json:"blackoutApplies"`
	EffectiveFrom            string          `json:"effectiveFrom" validate:"required,datetime=2006-01-02"`
}

type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

type HolidayInput struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Name string `json:"name" validate:"notblank,max=100"`
}

type Blackout struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	AppliesToCategory string    `json:"appliesToCategory"`
	IsActive          bool      `json:"isActive"`
}

type BlackoutInput struct {
	Name              string `json:"name" validate:"notblank,max=100"`
	StartDate         string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate           string `json:"endDate" validate:"required,datetime=2006-01-02"`
	AppliesToCategory string `json:"appliesToCategory" validate:"omitempty,oneof=all teaching non_teaching contract casual"`
}

// Balance is one employee's days for a leave type in a calendar year.
// Closing is derived; call Recompute after changing any other field.
type Balance struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employeeId"`
	LeaveTypeID     string          `json:"leaveTypeId"`
	LeaveTypeName   string          `json:"leaveTypeName,omitempty"`
	Year            int             `json:"year"`
	Opening         decimal.Decimal `json:"openingBalance"`
	Accrued         decimal.Decimal `json:"accruedDays"`
	CarriedForward  decimal.Decimal `json:"carriedForwardDays"`
	Adjustment      decimal.Decimal `json:"adjustmentDays"`
	Taken           decimal.Decimal `json:"takenDays"`
	Pending         decimal.Decimal `json:"pendingDays"`
	Encashed        decimal.Decimal `json:"encashedDays"`
	Forfeited       decimal.Decimal `json:"forfeitedDays"`
	CarriedOut      decimal.Decimal `json:"carriedOutDays"`
	Closing         decimal.Decimal `json:"closingBalance"`
	LastAccrualDate *time.Time      `json:"lastAccrualDate,omitempty"`
	NextAccrualDate *time.Time      `json:"nextAccrualDate,omitempty"`
}

type BalanceInput struct {
	EmployeeID  string          `json:"employeeId" validate:"required,uuid"`
	LeaveTypeID string          `json:"leaveTypeId" validate:"required,uuid"`
	Year        int             `json:"year" validate:"gte=2000,lte=2100"`
	Opening     decimal.Decimal `json:"openingBalance" validate:"nonneg"`
}

type AdjustInput struct {
	Days   decimal.Decimal `json:"days"`
	Reason string          `json:"reason" validate:"notblank,max=500"`
}

type Application struct {
	ID                 string          `json:"id"`
	EmployeeID         string          `json:"employeeId"`
	EmployeeName       string          `json:"employeeName,omitempty"`
	LeaveTypeID        string          `json:"leaveTypeId"`
	LeaveTypeName      string          `json:"leaveTypeName,omitempty"`
	ApplicationDate    time.Time       `json:"applicationDate"`
	StartDate          time.Time       `json:"startDate"`
	EndDate            time.Time       `json:"endDate"`
	StartHalfDay       bool            `json:"startHalfDay"`
	EndHalfDay         bool            `json:"endHalfDay"`
	TotalDays          decimal.Decimal `json:"totalDays"`
	WorkingDays        decimal.Decimal `json:"workingDays"`
	Reason             string          `json:"reason"`
	ReturnDate         time.Time       `json:"returnDate"`
	ActingEmployeeID   *string         `json:"actingEmployeeId,omitempty"`
	EmergencyPhone     string          `json:"emergencyPhone,omitempty"`
	Status             string          `json:"status"`
	CurrentApproverID  *string         `json:"currentApproverId,omitempty"`
	SubmittedAt        *time.Time      `json:"submittedAt,omitempty"`
	ApprovedAt         *time.Time      `json:"approvedAt,omitempty"`
	RejectedAt         *time.Time      `json:"rejectedAt,omitempty"`
	RejectionReason    string          `json:"rejectionReason,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	CreatedBy          *string         `json:"createdBy,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

type ApplicationInput struct {
	EmployeeID       string  `json:"employeeId" validate:"omitempty,uuid"`
	LeaveTypeID      string  `json:"leaveTypeId" validate:"required,uuid"`
	StartDate        string  `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate          string  `json:"endDate" validate:"required,datetime=2006-01-02"`
	StartHalfDay     bool    `json:"startHalfDay"`
	EndHalfDay       bool    `json:"endHalfDay"`
	Reason           string  `json:"reason" validate:"notblank,max=1000"`
	ActingEmployeeID *string `json:"actingEmployeeId" validate:"omitempty,uuid"`
	EmergencyPhone   string  `json:"emergencyPhone" validate:"max=40"`
}

type ApplicationFilter struct {
	EmployeeID  string
	EmployeeIDs []string
	LeaveTypeID string
	Status      string
	ApproverID  string
	AwaitingHR  bool
	Limit       int
	Offset      int
}

type ApprovalStep struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"leaveApplicationId"`
	Level         int        `json:"approvalLevel"`
	ApproverRole  string     `json:"approverRole"`
	ApproverID    *string    `json:"approverId,omitempty"`
	Status        string     `json:"status"`
	DecidedBy     *string    `json:"decidedBy,omitempty"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty"`
	Comments      string     `json:"comments,omitempty"`
}

type DecisionInput struct {
	Comments string `json:"comments" validate:"max=1000"`
	Reason   string `json:"reason" validate:"max=1000"`
}

type Encashment struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employeeId"`
	LeaveTypeID     string          `json:"leaveTypeId"`
	Year            int             `json:"year"`
	Days            decimal.Decimal `json:"daysEncashed"`
	RatePerDay      decimal.Decimal `json:"ratePerDay"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          string          `json:"status"`
	ApprovedBy      *string         `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	PayrollPeriodID *string         `json:"payrollPeriodId,omitempty"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type EncashmentInput struct {
	EmployeeID  string          `json:"employeeId" validate:"omitempty,uuid"`
	LeaveTypeID string          `json:"leaveTypeId" validate:"required,uuid"`
	Year        int             `json:"year" validate:"gte=2000,lte=2100"`
	Days        decimal.Decimal `json:"days" validate:"positive"`
}

// EmployeeInfo is the slice of the employee record leave rules need.
type EmployeeInfo struct {
	ID               string
	Gender           string
	Category         string
	Status           string
	HireDate         time.Time
	UserID           *string
	SupervisorUserID *string
	FullName         string
}

type AccrualCandidate struct {
	EmployeeID       string
	LeaveTypeID      string
	Method           string
	Rate             decimal.Decimal
	Entitlement      decimal.Decimal
	HireDate         time.Time
	StartAfterMonths int
}

type AccrualSummary struct {
	AsOf     string `json:"asOf"`
	Credited int    `json:"credited"`
	Skipped  int    `json:"skipped"`
}

type CarryForwardSummary struct {
	FromYear  int             `json:"fromYear"`
	Balances  int             `json:"balances"`
	Carried   decimal.Decimal `json:"carriedDays"`
	Forfeited decimal.Decimal `json:"forfeitedDays"`
}

type ApplicationDetail struct {
	Application
	Steps []ApprovalStep `json:"approvalSteps"`
}
