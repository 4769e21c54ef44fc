// internal/lifecycle/service.go
package lifecycle

import (
	"context"
	"time"

	"ironcore/internal/account"
	"ironcore/internal/enrollment"
	"ironcore/internal/membership"
	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

// Backend is the REST surface the coordinator drives.
type Backend interface {
	enrollment.Backend

	Me(ctx context.Context) (account.User, error)
	MembershipStatus(ctx context.Context, userID int64) (membership.Status, error)
	Classes(ctx context.Context) ([]schedule.Class, error)
	Schedules(ctx context.Context, classID int64) ([]schedule.Schedule, error)
	CreateTransaction(ctx context.Context, d transaction.Draft) (transaction.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (transaction.Transaction, error)
	ActivateTransaction(ctx context.Context, id int64) (transaction.Transaction, error)
	CompleteSession(ctx context.Context, id int64) (transaction.Transaction, error)
	UserTransactions(ctx context.Context, userID int64) ([]transaction.Transaction, error)
	AssignMembershipClasses(ctx context.Context, in membership.AssignRequest) ([]membership.Assignment, error)
}

// Service coordinates purchases and enrollments for one signed-in user.
// A non-nil *enrollment.Conflict is a normal outcome, not an error.
type Service interface {
	CurrentUser(ctx context.Context) (account.User, error)
	GetMembershipStatus(ctx context.Context, user account.User) (MembershipView, error)

	PrepareMembership(ctx context.Context, user account.User, in PurchaseInput) (*Checkout, *enrollment.Conflict, error)
	PurchaseMembership(ctx context.Context, user account.User, in PurchaseInput) (*transaction.Transaction, *enrollment.Conflict, error)

	LoadEnrollmentPage(ctx context.Context, classID int64) (*EnrollmentPage, error)
	PrepareEnrollment(ctx context.Context, user account.User, in EnrollInput) (*Checkout, *enrollment.Conflict, error)
	EnrollInClass(ctx context.Context, user account.User, in EnrollInput) (*transaction.Transaction, *enrollment.Conflict, error)

	Submit(ctx context.Context, checkout *Checkout) (*transaction.Transaction, error)
	ConfirmPayment(ctx context.Context, in ConfirmInput) (*Confirmation, error)
	SelectClasses(ctx context.Context, user account.User, in SelectionInput) ([]membership.Assignment, error)
	ActivateMembership(ctx context.Context, admin account.User, transactionID int64) (*transaction.Transaction, error)
	CompleteSession(ctx context.Context, admin account.User, transactionID int64) (*transaction.Transaction, error)

	Dashboard(ctx context.Context, user account.User, now time.Time) Dashboard
}
