// internal/membership/selection.go
package membership

import (
	"fmt"

	"ironcore/internal/apperr"
	"ironcore/internal/transaction"
)

// ValidateSelection enforces the plan's class allowance. SILVER and GOLD must
// pick exactly their limit; PLATINUM picks at least one. Duplicates are rejected.
func ValidateSelection(mt transaction.MembershipType, classIDs []int64) error {
	mt = mt.Normalize()
	if !mt.IsTier() {
		return apperr.Invalid("membershipType", fmt.Sprintf("%q does not include classes", mt))
	}

	seen := make(map[int64]struct{}, len(classIDs))
	for _, id := range classIDs {
		if id <= 0 {
			return apperr.Invalid("classIds", "contains an invalid class")
		}
		if _, dup := seen[id]; dup {
			return apperr.Invalid("classIds", fmt.Sprintf("class %d selected twice", id))
		}
		seen[id] = struct{}{}
	}

	limit, unlimited := mt.ClassLimit()
	switch {
	case unlimited && len(classIDs) == 0:
		return apperr.Invalid("classIds", "select at least one class")
	case !unlimited && len(classIDs) != limit:
		return apperr.Invalid("classIds", fmt.Sprintf("%s includes exactly %d classes, got %d", mt, limit, len(classIDs)))
	}
	return nil
}

// CanConfirmSelection is the UI-facing form of ValidateSelection.
func CanConfirmSelection(mt transaction.MembershipType, classIDs []int64) bool {
	return ValidateSelection(mt, classIDs) == nil
}
