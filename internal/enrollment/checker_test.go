package enrollment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ironcore/internal/apperr"
	"ironcore/internal/enrollment"
	"ironcore/internal/membership"
	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

type fakeBackend struct {
	conflict    enrollment.ConflictInfo
	enrollment  enrollment.EnrollmentInfo
	conflictErr error
	calls       []string
}

func (f *fakeBackend) CheckConflict(_ context.Context, _, _ int64) (enrollment.ConflictInfo, error) {
	f.calls = append(f.calls, "conflict")
	return f.conflict, f.conflictErr
}

func (f *fakeBackend) CheckActiveEnrollment(_ context.Context, _, _ int64) (enrollment.EnrollmentInfo, error) {
	f.calls = append(f.calls, "enrollment")
	return f.enrollment, nil
}

func TestChecker_ScheduleConflictTakesPrecedence(t *testing.T) {
	backend := &fakeBackend{
		conflict:   enrollment.ConflictInfo{HasConflict: true, ConflictingClass: "Spin", ScheduleDate: "2026-11-02", ScheduleTime: "07:00 AM - 08:00 AM"},
		enrollment: enrollment.EnrollmentInfo{HasActiveEnrollment: true, ClassName: "Yoga"},
	}

	c, err := enrollment.NewChecker(backend).Check(context.Background(), 1, 2, 3)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, enrollment.ReasonScheduleConflict, c.Reason)
	assert.Equal(t, "Spin", c.ClassName)
	assert.Equal(t, []string{"conflict"}, backend.calls, "duplicate check is short-circuited")
	assert.Contains(t, c.Message(), "Spin")
}

func TestChecker_SameSlotReportedAsScheduleConflict(t *testing.T) {
	slot := schedule.Schedule{ID: 10, ClassID: 1, Date: "2026-11-09", TimeSlot: "07:00 AM - 08:00 AM"}
	held := []transaction.Transaction{{
		ID: 1, PaymentStatus: transaction.StatusCompleted, ClassID: int64p(1), ClassName: "Yoga", TransactionCode: "IRC-CLS-AAAAA",
		ScheduleID: int64p(10), ScheduleDate: slot.Date, ScheduleTime: slot.TimeSlot,
	}}
	backend := &fakeBackend{
		conflict:   enrollment.ScheduleConflictInfo(enrollment.FindScheduleConflict(held, slot, now)),
		enrollment: enrollment.ActiveEnrollmentInfo(enrollment.FindActiveEnrollment(held, 1, now)),
	}
	require.True(t, backend.conflict.HasConflict)
	require.True(t, backend.enrollment.HasActiveEnrollment)

	c, err := enrollment.NewChecker(backend).Check(context.Background(), 1, 1, slot.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, enrollment.ReasonScheduleConflict, c.Reason)
	assert.Equal(t, "Yoga", c.ClassName)
	assert.Equal(t, []string{"conflict"}, backend.calls)
}

func TestChecker_DuplicateEnrollment(t *testing.T) {
	backend := &fakeBackend{enrollment: enrollment.EnrollmentInfo{HasActiveEnrollment: true, ClassName: "Yoga", TransactionCode: "IRC-CLS-AAAAA"}}

	c, err := enrollment.NewChecker(backend).Check(context.Background(), 1, 2, 3)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, enrollment.ReasonDuplicateClass, c.Reason)
	assert.Equal(t, []string{"conflict", "enrollment"}, backend.calls)
}

func TestChecker_Clear(t *testing.T) {
	c, err := enrollment.NewChecker(&fakeBackend{}).Check(context.Background(), 1, 2, 3)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestChecker_NetworkErrorBlocks(t *testing.T) {
	backend := &fakeBackend{conflictErr: &apperr.NetworkError{Op: "check conflict", StatusCode: 503}}

	c, err := enrollment.NewChecker(backend).Check(context.Background(), 1, 2, 3)
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, apperr.ErrNetwork))
	assert.Equal(t, []string{"conflict"}, backend.calls)
}

func TestChecker_MissingSchedule(t *testing.T) {
	backend := &fakeBackend{}
	_, err := enrollment.NewChecker(backend).Check(context.Background(), 1, 2, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, backend.calls)
}

var now = time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)

func int64p(v int64) *int64 { return &v }

func TestFindScheduleConflict(t *testing.T) {
	target := schedule.Schedule{ID: 10, ClassID: 1, Date: "2026-11-09", TimeSlot: "07:00 AM - 08:00 AM"}

	txs := []transaction.Transaction{
		{ID: 1, PaymentStatus: transaction.StatusPending, ClassID: int64p(5), ScheduleID: int64p(20), ScheduleDate: "2026-11-09", ScheduleTime: "07:00 AM - 08:00 AM"},
		{ID: 2, PaymentStatus: transaction.StatusCompleted, SessionCompleted: true, ClassID: int64p(5), ScheduleID: int64p(21), ScheduleDate: "2026-11-09", ScheduleTime: "07:00 AM - 08:00 AM"},
		{ID: 3, PaymentStatus: transaction.StatusCompleted, ClassID: int64p(5), ScheduleID: int64p(22), ScheduleDate: "2026-11-10", ScheduleTime: "07:00 AM - 08:00 AM"},
		{ID: 4, PaymentStatus: transaction.StatusCompleted, ClassID: int64p(5), ScheduleID: int64p(23), ScheduleDate: "2026-11-09", ScheduleTime: "08:00 AM - 09:00 AM"},
	}
	assert.Nil(t, enrollment.FindScheduleConflict(txs, target, now))

	txs = append(txs, transaction.Transaction{
		ID: 5, PaymentStatus: transaction.StatusCompleted, ClassID: int64p(6), ClassName: "Spin", ScheduleID: int64p(24),
		ScheduleDate: "2026-11-09", ScheduleTime: "07:30 AM - 08:30 AM",
	})
	got := enrollment.FindScheduleConflict(txs, target, now)
	require.NotNil(t, got)
	assert.Equal(t, int64(5), got.ID)

	info := enrollment.ScheduleConflictInfo(got)
	assert.True(t, info.HasConflict)
	assert.Equal(t, "Spin", info.ConflictingClass)
	assert.False(t, enrollment.ScheduleConflictInfo(nil).HasConflict)

	same := []transaction.Transaction{{
		ID: 6, PaymentStatus: transaction.StatusCompleted, ClassID: int64p(1), ScheduleID: int64p(10),
		ScheduleDate: target.Date, ScheduleTime: target.TimeSlot,
	}}
	got = enrollment.FindScheduleConflict(same, target, now)
	require.NotNil(t, got, "the slot already held is a conflict")
	assert.Equal(t, int64(6), got.ID)
}

func TestFindActiveEnrollment(t *testing.T) {
	txs := []transaction.Transaction{
		{ID: 1, PaymentStatus: transaction.StatusFailed, ClassID: int64p(5)},
		{ID: 2, PaymentStatus: transaction.StatusCompleted, ClassID: int64p(5), SessionCompleted: true},
		{ID: 3, PaymentStatus: transaction.StatusCompleted, ClassID: int64p(6)},
	}
	assert.Nil(t, enrollment.FindActiveEnrollment(txs, 5, now))

	got := enrollment.FindActiveEnrollment(txs, 6, now)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.ID)
	assert.True(t, enrollment.ActiveEnrollmentInfo(got).HasActiveEnrollment)
}

func TestRelation_PastSessionsReleased(t *testing.T) {
	target := schedule.Schedule{ID: 30, ClassID: 5, Date: "2026-11-09", TimeSlot: "07:00 AM - 08:00 AM"}
	txs := []transaction.Transaction{{
		ID: 1, PaymentStatus: transaction.StatusCompleted, ClassID: int64p(5), ScheduleID: int64p(20),
		ScheduleDate: "2026-10-26", ScheduleTime: "07:00 AM - 08:00 AM",
	}}
	assert.Nil(t, enrollment.FindActiveEnrollment(txs, 5, now))

	txs[0].ScheduleDate = "2026-11-09"
	assert.NotNil(t, enrollment.FindActiveEnrollment(txs, 5, now))
	assert.NotNil(t, enrollment.FindScheduleConflict(txs, target, now))

	later := now.AddDate(0, 0, 8)
	assert.Nil(t, enrollment.FindActiveEnrollment(txs, 5, later))
	assert.Nil(t, enrollment.FindScheduleConflict(txs, target, later))
}

func TestHasBlockingMembership(t *testing.T) {
	st := membership.Status{MembershipType: transaction.Gold, TransactionCode: "IRC-GOL-AAAAA"}

	c := enrollment.HasBlockingMembership(st, membership.StateActive)
	require.NotNil(t, c)
	assert.Equal(t, enrollment.ReasonActiveMembership, c.Reason)

	c = enrollment.HasBlockingMembership(st, membership.StatePending)
	require.NotNil(t, c)
	assert.Equal(t, enrollment.ReasonPendingMembership, c.Reason)
	assert.Contains(t, c.Message(), "IRC-GOL-AAAAA")

	assert.Nil(t, enrollment.HasBlockingMembership(st, membership.StateExpired))
	assert.Nil(t, enrollment.HasBlockingMembership(st, membership.StateNone))
}
