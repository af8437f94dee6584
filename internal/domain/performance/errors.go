package performance

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("appraisal already exists for this employee and cycle")
	ErrForbidden         = errors.New("not allowed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid appraisal transition")
	ErrCycleNotActive    = errors.New("appraisal cycle is not accepting assessments")
)
