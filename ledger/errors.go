package ledger

import "errors"

// Sentinel errors for ledger operations.
var (
	ErrNotFound   = errors.New("ledger not found")
	ErrMalformed  = errors.New("ledger malformed")
	ErrSaveFailed = errors.New("ledger save failed")
)
