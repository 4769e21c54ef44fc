// internal/sandbox/store.go
package sandbox

import (
	"context"

	"ironcore/internal/membership"
	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

// Store persists the sandbox state. Implementations must apply each
// mutation together with its journal event atomically.
type Store interface {
	CreateUser(ctx context.Context, u *UserRecord) error
	UserByUsername(ctx context.Context, username string) (UserRecord, error)
	UserByID(ctx context.Context, id int64) (UserRecord, error)

	SaveClass(ctx context.Context, c *schedule.Class) error
	SaveSchedule(ctx context.Context, s *schedule.Schedule) error
	Classes(ctx context.Context) ([]schedule.Class, error)
	Class(ctx context.Context, id int64) (schedule.Class, error)
	Schedules(ctx context.Context, classID int64) ([]schedule.Schedule, error)
	Schedule(ctx context.Context, id int64) (schedule.Schedule, error)

	// CreateTransaction assigns ID and Version 1 and journals ev.
	CreateTransaction(ctx context.Context, tx *transaction.Transaction, ev Event) error
	Transaction(ctx context.Context, id int64) (transaction.Transaction, error)
	UserTransactions(ctx context.Context, userID int64) ([]transaction.Transaction, error)
	// UpdateTransaction stores tx if the stored version equals tx.Version and
	// bumps it; otherwise it returns ErrConcurrencyConflict. A positive
	// SeatDelta fails with ErrScheduleFull when it would exceed capacity, and
	// an error from ch.Check is returned unchanged.
	UpdateTransaction(ctx context.Context, tx *transaction.Transaction, ch Change) error

	AssignClasses(ctx context.Context, transactionID int64, as []membership.Assignment, ev Event) ([]membership.Assignment, error)
	Assignments(ctx context.Context, transactionID int64) ([]membership.Assignment, error)

	Events(ctx context.Context, transactionID int64) ([]Event, error)
}
