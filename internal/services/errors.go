package services

import (
	"errors"
	"fmt"
)

// ErrValidation wraps malformed or out-of-range input, rejected before any
// transaction record is created.
var ErrValidation = errors.New("validation failed")

// ErrInvalidOperation marks an operation that is not allowed in the
// transaction's current state, such as cancelling a finished payment.
var ErrInvalidOperation = errors.New("transaction cannot be cancelled or already finished")

// DuplicateError is returned when the debounce guard finds an in-flight
// transaction for the same payer/payee pair. It carries the existing
// transaction's id so the caller can poll it instead of retrying.
type DuplicateError struct {
	TransactionID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("a payment request is already active (transaction %s)", e.TransactionID)
}
