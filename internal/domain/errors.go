package domain

import "errors"

// Error kinds. Every ledger failure wraps exactly one of these and aborts the
// invocation that produced it.
var (
	ErrInvalidIdentifier     = errors.New("invalid identifier")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrAccessDenied          = errors.New("access denied")
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrMismatch              = errors.New("mismatch")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrSelfPurchaseRejected  = errors.New("self purchase rejected")
	ErrInternalInconsistency = errors.New("internal inconsistency")
	ErrIdempotencyMismatch   = errors.New("key reuse with mismatched payload")
	ErrLogTampered           = errors.New("audit log tampering detected")
)

var kinds = []error{
	ErrInvalidIdentifier,
	ErrInvalidAmount,
	ErrAccessDenied,
	ErrNotFound,
	ErrAlreadyExists,
	ErrMismatch,
	ErrInsufficientFunds,
	ErrSelfPurchaseRejected,
	ErrInternalInconsistency,
	ErrIdempotencyMismatch,
	ErrLogTampered,
}

// Kind returns the error kind err wraps, or nil if it wraps none.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
