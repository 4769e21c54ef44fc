// internal/transaction/status.go
package transaction

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid payment status transition")

// Transition is one allowed edge of the payment status machine.
type Transition struct {
	From PaymentStatus
	To   PaymentStatus
}

var validTransitions = map[Transition]bool{
	{StatusPending, StatusCompleted}:   true, // payment confirmed
	{StatusPending, StatusFailed}:      true, // gateway declined
	{StatusFailed, StatusCompleted}:    true, // user retried from the payment page
	{StatusFailed, StatusFailed}:       true,
	{StatusCompleted, StatusCompleted}: true, // re-confirm after a network retry
}

// CanTransition reports whether a transaction may move from one status to another.
// PAID is treated as COMPLETED on both sides.
func CanTransition(from, to PaymentStatus) bool {
	return validTransitions[Transition{from.Normalize(), to.Normalize()}]
}

// Advance applies a status change to t. It returns changed=false for the
// idempotent edges, in which case callers must not repeat side effects.
func Advance(t *Transaction, to PaymentStatus) (changed bool, err error) {
	from := t.PaymentStatus.Normalize()
	to = to.Normalize()
	if !CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if from == to {
		return false, nil
	}
	t.PaymentStatus = to
	return true, nil
}
