package leave

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("record already exists")
	ErrForbidden           = errors.New("not allowed")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInsufficientBalance = errors.New("insufficient leave balance")
	ErrNotApprover         = errors.New("not the current approver")
	ErrGenderRestricted    = errors.New("leave type not available for this employee")
	ErrBlackout            = errors.New("dates fall in a leave blackout period")
	ErrAdvanceNotice       = errors.New("advance notice requirement not met")
	ErrTooManyDays         = errors.New("exceeds maximum consecutive days")
	ErrTooFewDays          = errors.New("below minimum days per application")
	ErrNoWorkingDays       = errors.New("range contains no working days")
	ErrNotEncashable       = errors.New("leave type cannot be encashed")
	ErrNoPayProfile        = errors.New("employee has no active pay profile")
)
