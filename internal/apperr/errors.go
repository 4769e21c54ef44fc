// internal/apperr/errors.go
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNetwork    = errors.New("backend unavailable")
	ErrPayment    = errors.New("payment failed")
)

// ValidationError reports a missing or malformed field. The operation it
// guards is never attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NetworkError covers both transport failures and non-2xx responses.
// StatusCode is zero when no response was received.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: unexpected status code %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected status code %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// PaymentError keeps the user on the payment step; the transaction is not
// reported as succeeded.
type PaymentError struct {
	TransactionID int64
	Reason        string
	Err           error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment for transaction %d failed: %s: %v", e.TransactionID, e.Reason, e.Err)
	}
	return fmt.Sprintf("payment for transaction %d failed: %s", e.TransactionID, e.Reason)
}

func (e *PaymentError) Unwrap() error { return e.Err }

func (e *PaymentError) Is(target error) bool { return target == ErrPayment }

// StatusCode extracts the HTTP status carried by a NetworkError, or 0.
func StatusCode(err error) int {
	var nerr *NetworkError
	if errors.As(err, &nerr) {
		return nerr.StatusCode
	}
	return 0
}
