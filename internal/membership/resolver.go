// internal/membership/resolver.go
package membership

import (
	"errors"
	"fmt"
	"time"

	"ironcore/internal/transaction"
)

var (
	ErrNotMembership    = errors.New("transaction is not a membership purchase")
	ErrNotPaid          = errors.New("membership has not been paid")
	ErrAlreadyActivated = errors.New("membership is already activated")
)

// ResolveState classifies a status at now. An activated membership whose
// expiry is not in the future is EXPIRED even if the backend still flags it active.
func ResolveState(s Status, now time.Time) State {
	activated := s.MembershipActivatedDate != nil && !s.MembershipActivatedDate.IsZero()
	hasExpiry := s.MembershipExpiryDate != nil && !s.MembershipExpiryDate.IsZero()
	expired := hasExpiry && !s.MembershipExpiryDate.In(now.Location()).After(now)

	switch {
	case (s.HasActiveMembership || activated) && hasExpiry && !expired:
		return StateActive
	case s.HasActiveMembership && !hasExpiry:
		return StateActive
	case s.HasPendingMembership:
		return StatePending
	case activated || s.HasActiveMembership:
		return StateExpired
	default:
		return StateNone
	}
}

// DeriveStatus builds the status projection from a user's transactions:
//
//	PENDING  a settled membership transaction not yet activated
//	ACTIVE   an activated membership whose expiry is in the future
//
// SESSION passes count as memberships. Class enrollments without a
// membership type are ignored.
func DeriveStatus(txs []transaction.Transaction, now time.Time) Status {
	var (
		st     Status
		latest *transaction.Transaction
	)
	for i := range txs {
		tx := txs[i]
		if tx.MembershipType.Normalize() == "" || tx.ClassID != nil || !tx.PaymentStatus.Settled() {
			continue
		}
		switch {
		case !tx.Activated():
			if !st.HasPendingMembership && !st.HasActiveMembership {
				fillFrom(&st, tx)
			}
			st.HasPendingMembership = true

		case tx.MembershipExpiryDate != nil && tx.MembershipExpiryDate.In(now.Location()).After(now):
			if !st.HasActiveMembership {
				fillFrom(&st, tx)
			}
			st.HasActiveMembership = true

		default:
			if latest == nil || expiresAfter(tx, *latest, now) {
				latest = &txs[i]
			}
		}
	}
	if !st.HasActiveMembership && !st.HasPendingMembership && latest != nil {
		fillFrom(&st, *latest)
	}
	return st
}

// Blocking reports whether a membership stops the user from buying another.
func Blocking(s State) bool {
	return s == StateActive || s == StatePending
}

// Activate stamps an activation date on a paid membership and derives its expiry.
func Activate(tx *transaction.Transaction, plan Plan, at time.Time) error {
	if tx.MembershipType.Normalize() == "" {
		return ErrNotMembership
	}
	if !tx.PaymentStatus.Settled() {
		return fmt.Errorf("%w: transaction %d is %s", ErrNotPaid, tx.ID, tx.PaymentStatus)
	}
	if tx.Activated() {
		return ErrAlreadyActivated
	}
	days := plan.DurationDays
	if days <= 0 {
		days = 1
	}
	tx.MembershipActivatedDate = transaction.NewLocalTime(at)
	tx.MembershipExpiryDate = transaction.NewLocalTime(at.AddDate(0, 0, days))
	return nil
}

func fillFrom(st *Status, tx transaction.Transaction) {
	st.MembershipType = tx.MembershipType.Normalize()
	st.MembershipActivatedDate = tx.MembershipActivatedDate
	st.MembershipExpiryDate = tx.MembershipExpiryDate
	st.TransactionCode = tx.TransactionCode
	st.TransactionID = tx.ID
}

func expiresAfter(a, b transaction.Transaction, now time.Time) bool {
	if b.MembershipExpiryDate == nil {
		return a.MembershipExpiryDate != nil
	}
	if a.MembershipExpiryDate == nil {
		return false
	}
	return a.MembershipExpiryDate.In(now.Location()).After(b.MembershipExpiryDate.In(now.Location()))
}
