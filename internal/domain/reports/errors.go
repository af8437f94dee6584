package reports

import "errors"

var (
	ErrUnknownReport     = errors.New("unknown report")
	ErrUnsupportedFormat = errors.New("format not available for this report")
	ErrInvalidParams     = errors.New("invalid report parameters")
	ErrNotFound          = errors.New("not found")
	ErrStorageDisabled   = errors.New("report storage is not configured")
)
