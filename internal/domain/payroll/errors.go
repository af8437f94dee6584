package payroll

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrPeriodNotFound    = errors.New("payroll period not found")
	ErrPeriodLocked      = errors.New("payroll period is locked")
	ErrInvalidTransition = errors.New("invalid payroll period transition")
	ErrPeriodOverlap     = errors.New("payroll period overlaps an existing period")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("record already exists")
	ErrForbidden         = errors.New("not allowed")
	ErrAlreadyRunning    = errors.New("payroll is already being processed for this period")
	ErrNoCalculations    = errors.New("payroll period has no calculations")
	ErrNoEmail           = errors.New("employee has no official email")
	ErrStorageDisabled   = errors.New("payslip storage is not configured")
)
