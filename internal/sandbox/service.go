// internal/sandbox/service.go
package sandbox

import (
	"context"

	"ironcore/internal/account"
	"ironcore/internal/enrollment"
	"ironcore/internal/membership"
	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

// Service is the authoritative gym backend behind the REST API. It never
// trusts amounts or statuses sent by a client.
type Service interface {
	Register(ctx context.Context, username, email, password string) (account.User, error)
	Authenticate(ctx context.Context, username, password string) (account.User, error)
	User(ctx context.Context, id int64) (account.User, error)

	MembershipStatus(ctx context.Context, userID int64) (membership.Status, error)
	Classes(ctx context.Context) ([]schedule.Class, error)
	Schedules(ctx context.Context, classID int64) ([]schedule.Schedule, error)
	Schedule(ctx context.Context, id int64) (schedule.Schedule, error)
	CheckConflict(ctx context.Context, userID, scheduleID int64) (enrollment.ConflictInfo, error)
	CheckActiveEnrollment(ctx context.Context, userID, classID int64) (enrollment.EnrollmentInfo, error)

	CreateTransaction(ctx context.Context, in transaction.Transaction) (transaction.Transaction, error)
	Transaction(ctx context.Context, id int64) (transaction.Transaction, error)
	UserTransactions(ctx context.Context, userID int64) ([]transaction.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status transaction.PaymentStatus) (transaction.Transaction, error)
	Activate(ctx context.Context, id int64) (transaction.Transaction, error)
	CompleteSession(ctx context.Context, id int64) (transaction.Transaction, error)

	AssignClasses(ctx context.Context, in membership.AssignRequest) ([]membership.Assignment, error)
	Assignments(ctx context.Context, transactionID int64) ([]membership.Assignment, error)
	Journal(ctx context.Context, transactionID int64) ([]Event, error)
}
