package transaction_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"ironcore/internal/apperr"
	"ironcore/internal/transaction"
)

func int64p(v int64) *int64 { return &v }

func TestBuildDraft_ClassFee(t *testing.T) {
	d, err := transaction.BuildDraft(transaction.KindClass, transaction.DraftInput{
		UserID:        7,
		PaymentMethod: "GCASH",
		Subtotal:      500,
		ClassID:       int64p(3),
		ClassName:     "Boxing Basics",
		ScheduleID:    int64p(11),
		ScheduleDate:  "2026-11-02",
		ScheduleTime:  "07:00 AM - 08:00 AM",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(20), d.ProcessingFee)
	assert.Equal(t, int64(520), d.TotalAmount)
	assert.Equal(t, transaction.KindClass, d.Kind)
	assert.Empty(t, d.MembershipType)
	assert.Regexp(t, `^IRC-CLS-[A-Z0-9]{5}$`, d.TransactionCode)
}

func TestBuildDraft_MembershipSurcharge(t *testing.T) {
	d, err := transaction.BuildDraft(transaction.KindMembership, transaction.DraftInput{
		UserID:         7,
		PaymentMethod:  "GCASH",
		Subtotal:       1699,
		MembershipType: "gold",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(204), d.ProcessingFee)
	assert.Equal(t, int64(1903), d.TotalAmount)
	assert.Equal(t, transaction.Gold, d.MembershipType)
	assert.Nil(t, d.ClassID)
	assert.Nil(t, d.ScheduleID)
	assert.Regexp(t, `^IRC-GOL-[A-Z0-9]{5}$`, d.TransactionCode)

	tx := d.Transaction()
	assert.Equal(t, transaction.StatusPending, tx.PaymentStatus)
	assert.Equal(t, transaction.Amount(1903), tx.TotalAmount)
	assert.Equal(t, transaction.KindMembership, tx.Kind())
}

func TestBuildDraft_SessionIsOneDayMembership(t *testing.T) {
	d, err := transaction.BuildDraft(transaction.KindSession, transaction.DraftInput{
		UserID:         7,
		PaymentMethod:  "GCASH",
		Subtotal:       150,
		MembershipType: transaction.Platinum,
	})
	require.NoError(t, err)

	assert.Equal(t, transaction.Session, d.MembershipType)
	assert.Equal(t, int64(18), d.ProcessingFee)
	assert.Equal(t, int64(168), d.TotalAmount)
	assert.Equal(t, transaction.KindSession, d.Transaction().Kind())
}

func TestBuildDraft_ValidationErrors(t *testing.T) {
	base := transaction.DraftInput{UserID: 1, PaymentMethod: "GCASH", Subtotal: 500}

	tests := []struct {
		name  string
		kind  transaction.Kind
		in    func(transaction.DraftInput) transaction.DraftInput
		field string
	}{
		{
			name:  "class without schedule",
			kind:  transaction.KindClass,
			in:    func(in transaction.DraftInput) transaction.DraftInput { in.ClassID = int64p(2); return in },
			field: "scheduleId",
		},
		{
			name:  "class without class",
			kind:  transaction.KindClass,
			in:    func(in transaction.DraftInput) transaction.DraftInput { in.ScheduleID = int64p(2); return in },
			field: "classId",
		},
		{
			name:  "membership without tier",
			kind:  transaction.KindMembership,
			in:    func(in transaction.DraftInput) transaction.DraftInput { return in },
			field: "membershipType",
		},
		{
			name: "membership with session tier",
			kind: transaction.KindMembership,
			in: func(in transaction.DraftInput) transaction.DraftInput {
				in.MembershipType = transaction.Session
				return in
			},
			field: "membershipType",
		},
		{
			name:  "missing user",
			kind:  transaction.KindSession,
			in:    func(in transaction.DraftInput) transaction.DraftInput { in.UserID = 0; return in },
			field: "userId",
		},
		{
			name:  "missing payment method",
			kind:  transaction.KindSession,
			in:    func(in transaction.DraftInput) transaction.DraftInput { in.PaymentMethod = ""; return in },
			field: "paymentMethod",
		},
		{
			name:  "zero subtotal",
			kind:  transaction.KindSession,
			in:    func(in transaction.DraftInput) transaction.DraftInput { in.Subtotal = 0; return in },
			field: "subtotal",
		},
		{
			name:  "unknown kind",
			kind:  transaction.KindUnknown,
			in:    func(in transaction.DraftInput) transaction.DraftInput { return in },
			field: "kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transaction.BuildDraft(tt.kind, tt.in(base))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation))

			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestBuildDraft_TotalIsSubtotalPlusFee(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		subtotal := rapid.Int64Range(1, 1_000_000).Draw(t, "subtotal")
		kind := rapid.SampledFrom([]transaction.Kind{
			transaction.KindMembership, transaction.KindSession, transaction.KindClass,
		}).Draw(t, "kind")

		in := transaction.DraftInput{
			UserID:         1,
			PaymentMethod:  "GCASH",
			Subtotal:       subtotal,
			MembershipType: rapid.SampledFrom(transaction.Tiers).Draw(t, "tier"),
			ClassID:        int64p(1),
			ScheduleID:     int64p(1),
		}
		d, err := transaction.BuildDraft(kind, in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.TotalAmount != d.Subtotal+d.ProcessingFee {
			t.Fatalf("total %d != %d + %d", d.TotalAmount, d.Subtotal, d.ProcessingFee)
		}
		if kind == transaction.KindClass && d.ProcessingFee != transaction.ClassProcessingFee {
			t.Fatalf("class fee %d", d.ProcessingFee)
		}
		if kind != transaction.KindClass && d.ProcessingFee != transaction.MembershipFee(subtotal) {
			t.Fatalf("membership fee %d for %d", d.ProcessingFee, subtotal)
		}
	})
}

func TestCodes(t *testing.T) {
	assert.True(t, transaction.ValidCode(transaction.NewCode(transaction.KindMembership, transaction.Silver)))
	assert.Regexp(t, `^IRC-SIL-`, transaction.NewCode(transaction.KindMembership, transaction.Silver))
	assert.Regexp(t, `^IRC-PLA-`, transaction.NewCode(transaction.KindMembership, transaction.Platinum))
	assert.Regexp(t, `^IRC-SES-`, transaction.NewCode(transaction.KindSession, transaction.Session))
	assert.False(t, transaction.ValidCode("IRC-SIL-ab12c"))
	assert.False(t, transaction.ValidCode("TX-123"))
}
