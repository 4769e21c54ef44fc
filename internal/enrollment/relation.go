// internal/enrollment/relation.go
package enrollment

import (
	"strings"
	"time"

	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

// FindScheduleConflict returns the user's upcoming enrollment whose schedule
// falls on the same date as target with an overlapping slot. Class identity
// does not matter, and a row booked on target itself is a conflict too.
func FindScheduleConflict(txs []transaction.Transaction, target schedule.Schedule, now time.Time) *transaction.Transaction {
	for i := range txs {
		tx := &txs[i]
		if !holdsSeat(*tx, now) {
			continue
		}
		if strings.TrimSpace(tx.ScheduleDate) != strings.TrimSpace(target.Date) {
			continue
		}
		if schedule.SameTime(tx.ScheduleTime, target.TimeSlot) {
			return tx
		}
	}
	return nil
}

// FindActiveEnrollment returns the user's upcoming enrollment in classID,
// regardless of schedule. Attended sessions and sessions whose start has
// passed no longer count.
func FindActiveEnrollment(txs []transaction.Transaction, classID int64, now time.Time) *transaction.Transaction {
	for i := range txs {
		tx := &txs[i]
		if tx.ClassID != nil && *tx.ClassID == classID && upcoming(*tx, now) {
			return tx
		}
	}
	return nil
}

func holdsSeat(tx transaction.Transaction, now time.Time) bool {
	return tx.HasSchedule() && upcoming(tx, now)
}

// upcoming follows transaction.HiddenReason, so whatever the dashboard hides
// does not block a new booking.
func upcoming(tx transaction.Transaction, now time.Time) bool {
	_, hidden := transaction.HiddenReason(tx, now)
	return !hidden
}
