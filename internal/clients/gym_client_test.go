package clients_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ironcore/internal/account"
	"ironcore/internal/apperr"
	"ironcore/internal/clients"
	"ironcore/internal/enrollment"
	"ironcore/internal/lifecycle"
	"ironcore/internal/membership"
	"ironcore/internal/payment"
	"ironcore/internal/sandbox"
	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

var now = time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func startSandbox(t *testing.T, extra ...func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	store := sandbox.NewMemoryStore()
	require.NoError(t, sandbox.Seed(ctx, store, now))
	require.NoError(t, sandbox.EnsureAdmin(ctx, store, "admin", "admin-pass"))

	svc := sandbox.NewService(store, sandbox.Options{Now: clock, AuthBurst: 100})
	sm := sandbox.NewSessionManager(svc, nil, false, nil)
	srv := httptest.NewServer(sandbox.NewServer(sandbox.NewHandler(svc, sm, nil), sm, extra...))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *clients.GymClient {
	t.Helper()
	c, err := clients.NewGymClient(clients.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func newCoordinator(c *clients.GymClient) lifecycle.Service {
	return lifecycle.NewService(lifecycle.Deps{
		Backend: c,
		Gateway: payment.NewSimulated(c, nil),
		Now:     clock,
	})
}

func findSchedule(t *testing.T, schedules []schedule.Schedule, date, slot string) schedule.Schedule {
	t.Helper()
	for _, s := range schedules {
		if s.Date == date && s.TimeSlot == slot {
			return s
		}
	}
	t.Fatalf("no schedule on %s at %s", date, slot)
	return schedule.Schedule{}
}

func TestNewGymClient_RequiresBaseURL(t *testing.T) {
	_, err := clients.NewGymClient(clients.Options{})
	assert.Error(t, err)
}

func TestGymClient_ErrorsCarryStatus(t *testing.T) {
	srv := startSandbox(t)
	ctx := context.Background()
	c := newClient(t, srv)

	_, err := c.Me(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNetwork))
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusCode(err))

	_, err = c.Login(ctx, "nobody", "whatever")
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusCode(err))
	assert.Contains(t, err.Error(), "invalid credentials")

	_, err = c.Register(ctx, clients.RegisterRequest{Username: "rina", Password: "correct horse"})
	require.NoError(t, err)
	_, err = c.GetTransaction(ctx, 9999)
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(err))
}

func TestGymClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := clients.NewGymClient(clients.Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.Classes(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNetwork))
	assert.Zero(t, apperr.StatusCode(err))
}

func TestGymClient_LifecycleEndToEnd(t *testing.T) {
	srv := startSandbox(t)
	ctx := context.Background()

	member := newClient(t, srv)
	_, err := member.Register(ctx, clients.RegisterRequest{Username: "rina", Email: "rina@example.com", Password: "correct horse"})
	require.NoError(t, err)
	coord := newCoordinator(member)

	user, err := coord.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rina", user.Username)

	classes, err := member.Classes(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(classes), 5)

	// Book the first yoga slot and pay for it.
	page, err := coord.LoadEnrollmentPage(ctx, classes[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, page.Selectable())
	yoga := findSchedule(t, page.Schedules, "2026-11-03", "07:00 AM - 08:00 AM")

	booked, conflict, err := coord.EnrollInClass(ctx, user, lifecycle.EnrollInput{Class: page.Class, Schedule: yoga, PaymentMethod: "CARD"})
	require.NoError(t, err)
	require.Nil(t, conflict)
	assert.Equal(t, transaction.Amount(520), booked.TotalAmount)
	assert.Equal(t, transaction.StatusPending, booked.PaymentStatus)

	confirmed, err := coord.ConfirmPayment(ctx, lifecycle.ConfirmInput{TransactionID: booked.ID, TransactionCode: booked.TransactionCode, PIN: "1234"})
	require.NoError(t, err)
	assert.Equal(t, transaction.DestHomeEnrolled, confirmed.Route.Destination)

	again, err := coord.ConfirmPayment(ctx, lifecycle.ConfirmInput{TransactionID: booked.ID, PIN: "1234"})
	require.NoError(t, err)
	assert.Equal(t, confirmed.Transaction.Version, again.Transaction.Version)

	seat, err := member.Schedule(ctx, yoga.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, seat.EnrolledCount)

	// An overlapping spin class on the same morning is refused.
	spinPage, err := coord.LoadEnrollmentPage(ctx, classes[1].ID)
	require.NoError(t, err)
	spin := findSchedule(t, spinPage.Schedules, "2026-11-03", "07:30 AM - 08:30 AM")
	_, conflict, err = coord.EnrollInClass(ctx, user, lifecycle.EnrollInput{Class: spinPage.Class, Schedule: spin, PaymentMethod: "CARD"})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, enrollment.ReasonScheduleConflict, conflict.Reason)

	// Buy GOLD, pick its five classes.
	gold, conflict, err := coord.PurchaseMembership(ctx, user, lifecycle.PurchaseInput{Type: transaction.Gold, PaymentMethod: "CARD"})
	require.NoError(t, err)
	require.Nil(t, conflict)
	assert.Equal(t, transaction.Amount(1903), gold.TotalAmount)

	paid, err := coord.ConfirmPayment(ctx, lifecycle.ConfirmInput{TransactionID: gold.ID, PIN: "0000"})
	require.NoError(t, err)
	assert.Equal(t, transaction.DestClassSelection, paid.Route.Destination)
	assert.Equal(t, 5, paid.Route.ClassLimit)

	var picks []int64
	for _, c := range classes[:5] {
		picks = append(picks, c.ID)
	}
	_, err = coord.SelectClasses(ctx, user, lifecycle.SelectionInput{TransactionID: gold.ID, ClassIDs: picks[:3]})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assigned, err := coord.SelectClasses(ctx, user, lifecycle.SelectionInput{TransactionID: gold.ID, ClassIDs: picks})
	require.NoError(t, err)
	assert.Len(t, assigned, 5)

	stored, err := member.MembershipClasses(ctx, gold.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 5)

	// A paid, unactivated plan blocks a session purchase.
	view, err := coord.GetMembershipStatus(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, membership.StatePending, view.State)
	_, conflict, err = coord.PurchaseMembership(ctx, user, lifecycle.PurchaseInput{Type: transaction.Session, PaymentMethod: "CARD"})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, enrollment.ReasonPendingMembership, conflict.Reason)

	// Members cannot activate; the front desk can.
	_, err = coord.ActivateMembership(ctx, user, gold.ID)
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	desk := newClient(t, srv)
	admin, err := desk.Login(ctx, "admin", "admin-pass")
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, admin.Role)
	activated, err := newCoordinator(desk).ActivateMembership(ctx, admin, gold.ID)
	require.NoError(t, err)
	assert.True(t, activated.Activated())

	view, err = coord.GetMembershipStatus(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, membership.StateActive, view.State)
	assert.Equal(t, transaction.Gold, view.Status.MembershipType)

	dash := coord.Dashboard(ctx, user, now)
	assert.False(t, dash.Degraded)
	assert.Len(t, dash.Buckets.Activated, 2)
	assert.Empty(t, dash.Buckets.Pending)

	// Once attended, the yoga class no longer counts as an active enrollment.
	_, err = coord.CompleteSession(ctx, user, booked.ID)
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)
	attended, err := newCoordinator(desk).CompleteSession(ctx, admin, booked.ID)
	require.NoError(t, err)
	assert.True(t, attended.SessionCompleted)

	info, err := member.CheckActiveEnrollment(ctx, user.ID, classes[0].ID)
	require.NoError(t, err)
	assert.False(t, info.HasActiveEnrollment)
	dash = coord.Dashboard(ctx, user, now)
	assert.Len(t, dash.Buckets.Activated, 1)
	assert.Len(t, dash.Buckets.Hidden, 1)

	require.NoError(t, member.Logout(ctx))
	_, err = coord.CurrentUser(ctx)
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusCode(err))
	assert.True(t, coord.Dashboard(ctx, user, now).Degraded)
}

func TestGymClient_DegradedBackend(t *testing.T) {
	faults := sandbox.NewFaultInjector(nil)
	srv := startSandbox(t, faults.Middleware)
	ctx := context.Background()

	member := newClient(t, srv)
	user, err := member.Register(ctx, clients.RegisterRequest{Username: "rina", Password: "correct horse"})
	require.NoError(t, err)
	coord := newCoordinator(member)

	// The membership gate fails closed: no transaction is created.
	faults.Inject(sandbox.Fault{Name: "status-down", Method: http.MethodGet, Target: "/api/memberships/status", Status: http.StatusServiceUnavailable})
	tx, conflict, err := coord.PurchaseMembership(ctx, user, lifecycle.PurchaseInput{Type: transaction.Silver, PaymentMethod: "CARD"})
	assert.Nil(t, tx)
	assert.Nil(t, conflict)
	assert.Equal(t, http.StatusServiceUnavailable, apperr.StatusCode(err))
	faults.Clear("status-down")

	txs, err := member.UserTransactions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)

	// A failing conflict check blocks the enrollment as well.
	classes, err := member.Classes(ctx)
	require.NoError(t, err)
	page, err := coord.LoadEnrollmentPage(ctx, classes[0].ID)
	require.NoError(t, err)
	faults.Inject(sandbox.Fault{Name: "conflict-down", Target: "/api/class-enrollments", Status: http.StatusBadGateway})
	_, _, err = coord.EnrollInClass(ctx, user, lifecycle.EnrollInput{Class: page.Class, Schedule: page.Schedules[0], PaymentMethod: "CARD"})
	assert.True(t, errors.Is(err, apperr.ErrNetwork))
	faults.Reset()

	// The dashboard fails open.
	faults.Inject(sandbox.Fault{Name: "history-down", Target: "/api/transactions/user", Status: http.StatusInternalServerError})
	dash := coord.Dashboard(ctx, user, now)
	assert.True(t, dash.Degraded)
	assert.NotNil(t, dash.Buckets.Activated)
	assert.Empty(t, dash.Buckets.Activated)
}
