// internal/lifecycle/domain.go
package lifecycle

import (
	"ironcore/internal/account"
	"ironcore/internal/membership"
	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

// PurchaseInput selects a plan. Type SESSION buys a one-day pass.
type PurchaseInput struct {
	Type          transaction.MembershipType
	PaymentMethod string
}

// EnrollInput is a booking for one schedule of a class, as picked from an
// EnrollmentPage.
type EnrollInput struct {
	Class         schedule.Class
	Schedule      schedule.Schedule
	PaymentMethod string
}

// Checkout is a gated draft awaiting the user's confirmation.
type Checkout struct {
	Draft  transaction.Draft
	Status membership.Status
	State  membership.State
}

// ConfirmInput identifies the transaction being paid.
type ConfirmInput struct {
	TransactionID   int64
	TransactionCode string
	PIN             string
}

// Confirmation is a finalized transaction plus where the user goes next.
type Confirmation struct {
	Transaction transaction.Transaction
	Route       transaction.Route
}

// SelectionInput picks the classes included with a paid tier purchase.
type SelectionInput struct {
	TransactionID int64
	ClassIDs      []int64
}

// MembershipView is the resolved status of a user at a point in time.
type MembershipView struct {
	Status membership.Status
	State  membership.State
}

// Dashboard is the bucketed view over a user's transactions.
type Dashboard struct {
	Buckets transaction.Buckets
	// Degraded is set when transactions could not be loaded and the buckets are empty.
	Degraded bool
}

// EnrollmentPage is everything the class booking page shows.
type EnrollmentPage struct {
	User      account.User
	Class     schedule.Class
	Schedules []schedule.Schedule
}

// Selectable returns the schedules that still have seats.
func (p EnrollmentPage) Selectable() []schedule.Schedule {
	out := make([]schedule.Schedule, 0, len(p.Schedules))
	for _, s := range p.Schedules {
		if !s.IsFull() {
			out = append(out, s)
		}
	}
	return out
}
