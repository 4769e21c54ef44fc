// internal/transaction/visibility.go
package transaction

import (
	"time"

	"ironcore/internal/schedule"
)

// HideReason explains why a transaction is not shown.
type HideReason string

const (
	HiddenUnpaid           HideReason = "unpaid"
	HiddenSessionCompleted HideReason = "session-completed"
	HiddenMembershipExpiry HideReason = "membership-expired"
	HiddenSchedulePast     HideReason = "schedule-past"
)

// Buckets is the display projection of a user's transactions.
type Buckets struct {
	Activated []Transaction
	Pending   []Transaction
	Hidden    []Transaction
}

// Classify sorts transactions into activated, pending and hidden. It is pure
// and must be recomputed on every fetch.
func Classify(txs []Transaction, now time.Time) Buckets {
	b := Buckets{
		Activated: []Transaction{},
		Pending:   []Transaction{},
		Hidden:    []Transaction{},
	}
	for _, t := range txs {
		if _, hidden := HiddenReason(t, now); hidden {
			b.Hidden = append(b.Hidden, t)
			continue
		}
		if t.Activated() || t.IsPlainEnrollment() {
			b.Activated = append(b.Activated, t)
		} else {
			b.Pending = append(b.Pending, t)
		}
	}
	return b
}

// HiddenReason applies the exclusion rules in order and returns the first that matches.
func HiddenReason(t Transaction, now time.Time) (HideReason, bool) {
	if !t.PaymentStatus.Settled() {
		return HiddenUnpaid, true
	}
	if t.SessionCompleted {
		return HiddenSessionCompleted, true
	}
	if t.MembershipExpiryDate != nil && !t.MembershipExpiryDate.IsZero() &&
		t.MembershipExpiryDate.In(now.Location()).Before(now) {
		return HiddenMembershipExpiry, true
	}
	if t.HasSchedule() {
		if start, ok := scheduleStart(t, now.Location()); ok && start.Before(now) {
			return HiddenSchedulePast, true
		}
	}
	return "", false
}

// scheduleStart combines the schedule date with its time of day. When the slot
// cannot be parsed the whole day is assumed to run, so the transaction stays
// visible until the date is over.
func scheduleStart(t Transaction, loc *time.Location) (time.Time, bool) {
	if start, err := schedule.StartOf(t.ScheduleDate, t.ScheduleTime, loc); err == nil {
		return start, true
	}
	day, err := time.ParseInLocation(schedule.DateLayout, t.ScheduleDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	return day.AddDate(0, 0, 1), true
}
