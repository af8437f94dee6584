package payroll

const (
	PeriodOpen       = "open"
	PeriodProcessing = "processing"
	PeriodCalculated = "calculated"
	PeriodApproved   = "approved"
	PeriodPaid       = "paid"
	PeriodClosed     = "closed"

	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"

	ItemEarning   = "earning"
	ItemDeduction = "deduction"

	EarningBasic      = "basic"
	EarningAllowance  = "allowance"
	EarningBonus      = "bonus"
	EarningOvertime   = "overtime"
	EarningCommission = "commission"
	EarningArrears    = "arrears"

	DeductionStatutory = "statutory"
	DeductionVoluntary = "voluntary"
	DeductionLoan      = "loan"
	DeductionAdvance   = "advance"
	DeductionPenalty   = "penalty"

	MethodFixed             = "fixed"
	MethodPercentageOfBasic = "percentage_of_basic"
	MethodPercentageOfGross = "percentage_of_gross"

	BasisFixed      = "fixed"
	BasisHours      = "hours"
	BasisRate       = "rate"
	BasisPercentage = "percentage"

	ActionCreated    = "created"
	ActionCalculated = "calculated"
	ActionApproved   = "approved"
	ActionPaid       = "paid"
	ActionReversed   = "reversed"
	ActionAdjusted   = "adjusted"
	ActionClosed     = "closed"
	ActionLocked     = "locked"
	ActionUnlocked   = "unlocked"
	ActionReopened   = "reopened"

	JobProcess = "payroll.process"
)
