// internal/sandbox/domain.go
package sandbox

import (
	"encoding/json"
	"errors"
	"time"

	"ironcore/internal/account"
	"ironcore/internal/transaction"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrDuplicateUser       = errors.New("username or email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrForbidden           = errors.New("forbidden")
	ErrScheduleFull        = errors.New("schedule is full")
	ErrBlocked             = errors.New("purchase blocked")
	ErrAlreadyAssigned     = errors.New("classes already assigned")
	ErrNoSession           = errors.New("transaction has no session to complete")
)

// Credential is the stored password of a user.
type Credential struct {
	UserID       int64
	PasswordHash string
	Salt         string
}

// UserRecord is a user together with its credential.
type UserRecord struct {
	account.User
	Credential Credential
	CreatedAt  time.Time
}

// Journal event types.
const (
	EventTransactionCreated  = "TransactionCreated"
	EventPaymentConfirmed    = "PaymentConfirmed"
	EventPaymentFailed       = "PaymentFailed"
	EventMembershipActivated = "MembershipActivated"
	EventClassesAssigned     = "ClassesAssigned"
	EventSessionCompleted    = "SessionCompleted"
)

// Event is one entry in a transaction's journal. Version matches the
// transaction version the change produced.
type Event struct {
	ID            int64           `json:"id"`
	TransactionID int64           `json:"transactionId"`
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewEvent marshals payload into an event of the given type.
func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: data}, nil
}

// StatusChangedEvent is the payload of PaymentConfirmed and PaymentFailed.
type StatusChangedEvent struct {
	From transaction.PaymentStatus `json:"from"`
	To   transaction.PaymentStatus `json:"to"`
}

// Change is a versioned update of a transaction. SeatDelta is applied to the
// enrolled count of ScheduleID in the same unit of work. Check, when set, is
// called inside that unit of work with the owner's other transactions and
// aborts the update when it returns an error.
type Change struct {
	ScheduleID int64
	SeatDelta  int
	Event      Event
	Check      func(others []transaction.Transaction) error
}
