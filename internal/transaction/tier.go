// internal/transaction/tier.go
package transaction

import "strings"

// MembershipType is the plan carried by a membership transaction.
type MembershipType string

const (
	Silver   MembershipType = "SILVER"
	Gold     MembershipType = "GOLD"
	Platinum MembershipType = "PLATINUM"
	Session  MembershipType = "SESSION"
)

// Tiers lists the recurring plans in ascending order.
var Tiers = []MembershipType{Silver, Gold, Platinum}

func (m MembershipType) Normalize() MembershipType {
	return MembershipType(strings.ToUpper(strings.TrimSpace(string(m))))
}

// IsTier reports a recurring plan (SESSION is not a tier).
func (m MembershipType) IsTier() bool {
	switch m.Normalize() {
	case Silver, Gold, Platinum:
		return true
	}
	return false
}

// ClassLimit is the number of included classes a member picks after buying
// the plan. unlimited is true for PLATINUM.
func (m MembershipType) ClassLimit() (limit int, unlimited bool) {
	switch m.Normalize() {
	case Silver:
		return 3, false
	case Gold:
		return 5, false
	case Platinum:
		return 0, true
	}
	return 0, false
}

// codeSegment is the three letter tier marker used in transaction codes.
func (m MembershipType) codeSegment() string {
	n := m.Normalize()
	if len(n) < 3 {
		return "MEM"
	}
	return string(n[:3])
}
