package monitor

import "errors"

// Sentinel errors for monitor operations.
var (
	ErrNotFound      = errors.New("no scalar recorded")
	ErrNotScalar     = errors.New("value is not a scalar")
	ErrNotSummary    = errors.New("value is not a summary")
	ErrNilEvent      = errors.New("event is nil")
	ErrNotOpen       = errors.New("event writer is not open")
	ErrInvalidLogDir = errors.New("invalid log directory")
)
