package leave

const (
	StatusDraft           = "draft"
	StatusSubmitted       = "submitted"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusCancelled       = "cancelled"
	StatusOnLeave         = "on_leave"
	StatusCompleted       = "completed"

	CategoryPaid     = "paid"
	CategoryUnpaid   = "unpaid"
	CategoryHalfPaid = "half_paid"

	AccrualMonthly = "monthly"
	AccrualYearly  = "yearly"

	StepSupervisor = "supervisor"
	StepHR         = "hr"

	StepPending  = "pending"
	StepApproved = "approved"
	StepRejected = "rejected"

	EncashRequested = "requested"
	EncashApproved  = "approved"
	EncashRejected  = "rejected"
	EncashProcessed = "processed"

	// Encashment day rate is basic salary over this many working days.
	workingDaysPerMonth = 22
)
