// internal/membership/domain.go
package membership

import (
	"ironcore/internal/transaction"
)

// State is the classification of a user's membership.
type State string

const (
	StateNone    State = "NONE"
	StatePending State = "PENDING"
	StateActive  State = "ACTIVE"
	StateExpired State = "EXPIRED"
)

// Status is the read projection over a user's transactions returned by
// GET /api/memberships/status. It is derived, never stored.
type Status struct {
	HasActiveMembership     bool                       `json:"hasActiveMembership"`
	HasPendingMembership    bool                       `json:"hasPendingMembership"`
	MembershipType          transaction.MembershipType `json:"membershipType,omitempty"`
	MembershipActivatedDate *transaction.LocalTime     `json:"membershipActivatedDate,omitempty"`
	MembershipExpiryDate    *transaction.LocalTime     `json:"membershipExpiryDate,omitempty"`
	TransactionCode         string                     `json:"transactionCode,omitempty"`
	TransactionID           int64                      `json:"transactionId,omitempty"`
}

// Plan is a purchasable membership.
type Plan struct {
	Type         transaction.MembershipType `json:"type"`
	Price        int64                      `json:"price"`
	DurationDays int                        `json:"durationDays"`
}

// DefaultPlans is the catalog used when none is configured.
var DefaultPlans = map[transaction.MembershipType]Plan{
	transaction.Silver:   {Type: transaction.Silver, Price: 999, DurationDays: 30},
	transaction.Gold:     {Type: transaction.Gold, Price: 1699, DurationDays: 30},
	transaction.Platinum: {Type: transaction.Platinum, Price: 2499, DurationDays: 30},
	transaction.Session:  {Type: transaction.Session, Price: 150, DurationDays: 1},
}

// AssignRequest is the body of POST /api/membership-classes/assign.
type AssignRequest struct {
	UserID        int64   `json:"userId"`
	TransactionID int64   `json:"transactionId"`
	ClassIDs      []int64 `json:"classIds"`
}

// Assignment binds one included class to a membership purchase.
type Assignment struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"userId"`
	TransactionID int64  `json:"transactionId"`
	ClassID       int64  `json:"classId"`
	ClassName     string `json:"className,omitempty"`
}
