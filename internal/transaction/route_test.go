package transaction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"ironcore/internal/transaction"
)

func TestRouteAfterPayment(t *testing.T) {
	tests := []struct {
		name      string
		tx        transaction.Transaction
		dest      transaction.Destination
		limit     int
		unlimited bool
	}{
		{
			name: "session pass",
			tx:   transaction.Transaction{ID: 1, MembershipType: transaction.Session},
			dest: transaction.DestDashboard,
		},
		{
			name: "session with stray class fields",
			tx:   transaction.Transaction{ID: 1, MembershipType: "session", ClassID: int64p(4), ScheduleID: int64p(9)},
			dest: transaction.DestDashboard,
		},
		{
			name:  "silver membership",
			tx:    transaction.Transaction{ID: 2, MembershipType: transaction.Silver},
			dest:  transaction.DestClassSelection,
			limit: 3,
		},
		{
			name:  "gold membership",
			tx:    transaction.Transaction{ID: 2, MembershipType: transaction.Gold},
			dest:  transaction.DestClassSelection,
			limit: 5,
		},
		{
			name:      "platinum membership",
			tx:        transaction.Transaction{ID: 2, MembershipType: transaction.Platinum},
			dest:      transaction.DestClassSelection,
			unlimited: true,
		},
		{
			name: "class enrollment",
			tx:   transaction.Transaction{ID: 3, ClassID: int64p(4), ClassName: "Yoga", TransactionCode: "IRC-CLS-AAAAA"},
			dest: transaction.DestHomeEnrolled,
		},
		{
			name: "class enrollment backed by membership",
			tx:   transaction.Transaction{ID: 3, ClassID: int64p(4), MembershipType: transaction.Gold},
			dest: transaction.DestHomeEnrolled,
		},
		{
			name: "nothing populated",
			tx:   transaction.Transaction{ID: 4},
			dest: transaction.DestHome,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := transaction.RouteAfterPayment(tt.tx)
			assert.Equal(t, tt.dest, r.Destination)
			assert.Equal(t, tt.limit, r.ClassLimit)
			assert.Equal(t, tt.unlimited, r.Unlimited)
			assert.NotEmpty(t, r.Path)
		})
	}
}

func TestRouteAfterPayment_EnrollmentBanner(t *testing.T) {
	r := transaction.RouteAfterPayment(transaction.Transaction{ClassID: int64p(4), ClassName: "Yoga", TransactionCode: "IRC-CLS-AB12C"})
	assert.Equal(t, "/home?enrolled=IRC-CLS-AB12C", r.Path)
	assert.Equal(t, "You are enrolled in Yoga", r.Banner)
}

func TestRouteAfterPayment_SessionAlwaysDashboard(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tx := transaction.Transaction{
			ID:             rapid.Int64Range(1, 1<<40).Draw(t, "id"),
			MembershipType: rapid.SampledFrom([]transaction.MembershipType{"SESSION", "session", " Session "}).Draw(t, "type"),
			ClassName:      rapid.String().Draw(t, "className"),
		}
		if rapid.Bool().Draw(t, "hasClass") {
			tx.ClassID = int64p(rapid.Int64Range(1, 100).Draw(t, "classId"))
		}
		if rapid.Bool().Draw(t, "hasSchedule") {
			tx.ScheduleID = int64p(rapid.Int64Range(1, 100).Draw(t, "scheduleId"))
		}
		if r := transaction.RouteAfterPayment(tx); r.Destination != transaction.DestDashboard {
			t.Fatalf("session routed to %s", r.Destination)
		}
	})
}
