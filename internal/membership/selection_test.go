package membership_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ironcore/internal/apperr"
	"ironcore/internal/membership"
	"ironcore/internal/transaction"
)

func TestValidateSelection(t *testing.T) {
	tests := []struct {
		name    string
		tier    transaction.MembershipType
		classes []int64
		ok      bool
	}{
		{name: "silver exactly three", tier: transaction.Silver, classes: []int64{1, 2, 3}, ok: true},
		{name: "silver two", tier: transaction.Silver, classes: []int64{1, 2}},
		{name: "silver four", tier: transaction.Silver, classes: []int64{1, 2, 3, 4}},
		{name: "gold exactly five", tier: transaction.Gold, classes: []int64{1, 2, 3, 4, 5}, ok: true},
		{name: "gold three", tier: transaction.Gold, classes: []int64{1, 2, 3}},
		{name: "platinum one", tier: transaction.Platinum, classes: []int64{9}, ok: true},
		{name: "platinum many", tier: transaction.Platinum, classes: []int64{1, 2, 3, 4, 5, 6, 7, 8}, ok: true},
		{name: "platinum none", tier: transaction.Platinum},
		{name: "duplicate class", tier: transaction.Silver, classes: []int64{1, 1, 2}},
		{name: "invalid id", tier: transaction.Silver, classes: []int64{1, 0, 2}},
		{name: "session has no classes", tier: transaction.Session, classes: []int64{1}},
		{name: "lower case tier", tier: "silver", classes: []int64{4, 5, 6}, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := membership.ValidateSelection(tt.tier, tt.classes)
			if tt.ok {
				assert.NoError(t, err)
				assert.True(t, membership.CanConfirmSelection(tt.tier, tt.classes))
				return
			}
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.False(t, membership.CanConfirmSelection(tt.tier, tt.classes))
		})
	}
}
