// internal/enrollment/domain.go
package enrollment

import (
	"fmt"

	"ironcore/internal/membership"
	"ironcore/internal/transaction"
)

// Reason names the blocking condition behind a Conflict.
type Reason string

const (
	ReasonActiveMembership  Reason = "ACTIVE_MEMBERSHIP"
	ReasonPendingMembership Reason = "PENDING_MEMBERSHIP"
	ReasonScheduleConflict  Reason = "SCHEDULE_CONFLICT"
	ReasonDuplicateClass    Reason = "DUPLICATE_ENROLLMENT"
)

// Conflict is an expected outcome, returned as a value rather than an error.
// A nil *Conflict means the purchase may proceed.
type Conflict struct {
	Reason          Reason `json:"reason"`
	TransactionID   int64  `json:"transactionId,omitempty"`
	TransactionCode string `json:"transactionCode,omitempty"`
	ClassName       string `json:"className,omitempty"`
	ScheduleDay     string `json:"scheduleDay,omitempty"`
	ScheduleTime    string `json:"scheduleTime,omitempty"`
	ScheduleDate    string `json:"scheduleDate,omitempty"`
	MembershipType  string `json:"membershipType,omitempty"`
}

// Message is the user-facing explanation.
func (c *Conflict) Message() string {
	switch c.Reason {
	case ReasonActiveMembership:
		return fmt.Sprintf("You already have an active %s membership.", c.MembershipType)
	case ReasonPendingMembership:
		return fmt.Sprintf("Your %s membership (%s) is waiting for activation.", c.MembershipType, c.TransactionCode)
	case ReasonScheduleConflict:
		return fmt.Sprintf("This schedule overlaps %s on %s %s at %s.", c.ClassName, c.ScheduleDay, c.ScheduleDate, c.ScheduleTime)
	case ReasonDuplicateClass:
		return fmt.Sprintf("You are already enrolled in %s (%s).", c.ClassName, c.TransactionCode)
	default:
		return "This purchase cannot be completed."
	}
}

// ConflictInfo is the wire shape of GET /api/class-enrollments/check-conflict.
type ConflictInfo struct {
	HasConflict      bool   `json:"hasConflict"`
	TransactionID    int64  `json:"transactionId,omitempty"`
	TransactionCode  string `json:"transactionCode,omitempty"`
	ConflictingClass string `json:"conflictingClass,omitempty"`
	ScheduleDay      string `json:"scheduleDay,omitempty"`
	ScheduleTime     string `json:"scheduleTime,omitempty"`
	ScheduleDate     string `json:"scheduleDate,omitempty"`
}

// EnrollmentInfo is the wire shape of GET /api/transactions/check-active-enrollment.
type EnrollmentInfo struct {
	HasActiveEnrollment bool   `json:"hasActiveEnrollment"`
	TransactionID       int64  `json:"transactionId,omitempty"`
	TransactionCode     string `json:"transactionCode,omitempty"`
	ClassName           string `json:"className,omitempty"`
	ScheduleDay         string `json:"scheduleDay,omitempty"`
	ScheduleTime        string `json:"scheduleTime,omitempty"`
	ScheduleDate        string `json:"scheduleDate,omitempty"`
}

// HasBlockingMembership returns a conflict when the user already holds an
// ACTIVE or PENDING membership.
func HasBlockingMembership(st membership.Status, state membership.State) *Conflict {
	switch state {
	case membership.StateActive:
		return &Conflict{
			Reason:          ReasonActiveMembership,
			MembershipType:  string(st.MembershipType),
			TransactionID:   st.TransactionID,
			TransactionCode: st.TransactionCode,
		}
	case membership.StatePending:
		return &Conflict{
			Reason:          ReasonPendingMembership,
			MembershipType:  string(st.MembershipType),
			TransactionID:   st.TransactionID,
			TransactionCode: st.TransactionCode,
		}
	}
	return nil
}

func (ci ConflictInfo) conflict() *Conflict {
	if !ci.HasConflict {
		return nil
	}
	return &Conflict{
		Reason:          ReasonScheduleConflict,
		TransactionID:   ci.TransactionID,
		TransactionCode: ci.TransactionCode,
		ClassName:       ci.ConflictingClass,
		ScheduleDay:     ci.ScheduleDay,
		ScheduleTime:    ci.ScheduleTime,
		ScheduleDate:    ci.ScheduleDate,
	}
}

func (ei EnrollmentInfo) conflict() *Conflict {
	if !ei.HasActiveEnrollment {
		return nil
	}
	return &Conflict{
		Reason:          ReasonDuplicateClass,
		TransactionID:   ei.TransactionID,
		TransactionCode: ei.TransactionCode,
		ClassName:       ei.ClassName,
		ScheduleDay:     ei.ScheduleDay,
		ScheduleTime:    ei.ScheduleTime,
		ScheduleDate:    ei.ScheduleDate,
	}
}

// ScheduleConflictInfo builds the wire answer from the conflicting transaction.
func ScheduleConflictInfo(tx *transaction.Transaction) ConflictInfo {
	if tx == nil {
		return ConflictInfo{}
	}
	return ConflictInfo{
		HasConflict:      true,
		TransactionID:    tx.ID,
		TransactionCode:  tx.TransactionCode,
		ConflictingClass: tx.ClassName,
		ScheduleDay:      tx.ScheduleDay,
		ScheduleTime:     tx.ScheduleTime,
		ScheduleDate:     tx.ScheduleDate,
	}
}

// ActiveEnrollmentInfo builds the wire answer from the existing enrollment.
func ActiveEnrollmentInfo(tx *transaction.Transaction) EnrollmentInfo {
	if tx == nil {
		return EnrollmentInfo{}
	}
	return EnrollmentInfo{
		HasActiveEnrollment: true,
		TransactionID:       tx.ID,
		TransactionCode:     tx.TransactionCode,
		ClassName:           tx.ClassName,
		ScheduleDay:         tx.ScheduleDay,
		ScheduleTime:        tx.ScheduleTime,
		ScheduleDate:        tx.ScheduleDate,
	}
}
