package attendance

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrEmployeeNotFound  = errors.New("employee not found")
	ErrAlreadyClockedIn  = errors.New("already clocked in today")
	ErrAlreadyClockedOut = errors.New("already clocked out today")
	ErrNotClockedIn      = errors.New("no clock-in record found for today")
	ErrNoSchedule        = errors.New("no active work schedule")
	ErrNotPending        = errors.New("overtime request is not pending")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("record already exists")
)
