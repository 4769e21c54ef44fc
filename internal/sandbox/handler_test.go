package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ironcore/internal/account"
	"ironcore/internal/enrollment"
	"ironcore/internal/schedule"
	"ironcore/internal/transaction"
)

type apiTester struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, Seed(context.Background(), store, testNow))
	svc := NewService(store, opts)
	sm := NewSessionManager(svc, nil, false, nil)
	srv := httptest.NewServer(NewServer(NewHandler(svc, sm, nil), sm))
	t.Cleanup(srv.Close)
	return srv, store
}

func newAPITester(t *testing.T, srv *httptest.Server) *apiTester {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiTester{t: t, server: srv, client: &http.Client{Jar: jar}}
}

func (a *apiTester) call(method, path string, body, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHandler_AuthFlow(t *testing.T) {
	srv, _ := newTestServer(t, Options{Now: fixedNow, AuthBurst: 100})
	api := newAPITester(t, srv)

	assert.Equal(t, http.StatusOK, api.call(http.MethodGet, "/health", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, api.call(http.MethodGet, "/api/users/me", nil, nil))

	var u account.User
	require.Equal(t, http.StatusCreated, api.call(http.MethodPost, "/api/auth/register",
		map[string]string{"username": "rina", "password": "correct horse"}, &u))
	assert.Equal(t, account.RoleMember, u.Role)

	var me account.User
	require.Equal(t, http.StatusOK, api.call(http.MethodGet, "/api/users/me", nil, &me))
	assert.Equal(t, u.ID, me.ID)

	assert.Equal(t, http.StatusNoContent, api.call(http.MethodPost, "/api/auth/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, api.call(http.MethodGet, "/api/users/me", nil, nil))

	assert.Equal(t, http.StatusUnauthorized, api.call(http.MethodPost, "/api/auth/login",
		map[string]string{"username": "rina", "password": "nope"}, nil))
	assert.Equal(t, http.StatusOK, api.call(http.MethodPost, "/api/auth/login",
		map[string]string{"username": "rina", "password": "correct horse"}, &me))
	assert.Equal(t, http.StatusConflict, api.call(http.MethodPost, "/api/auth/register",
		map[string]string{"username": "rina", "password": "correct horse"}, nil))
}

func TestHandler_LoginRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, Options{Now: fixedNow, AuthBurst: 1})
	api := newAPITester(t, srv)

	creds := map[string]string{"username": "ghost", "password": "whatever"}
	assert.Equal(t, http.StatusUnauthorized, api.call(http.MethodPost, "/api/auth/login", creds, nil))
	assert.Equal(t, http.StatusTooManyRequests, api.call(http.MethodPost, "/api/auth/login", creds, nil))
}

func TestHandler_TransactionsAreScopedToOwner(t *testing.T) {
	srv, store := newTestServer(t, Options{Now: fixedNow, AuthBurst: 100})
	ctx := context.Background()
	require.NoError(t, EnsureAdmin(ctx, store, "admin", "admin-pass"))

	alice, bob, admin := newAPITester(t, srv), newAPITester(t, srv), newAPITester(t, srv)
	var aliceUser account.User
	require.Equal(t, http.StatusCreated, alice.call(http.MethodPost, "/api/auth/register",
		map[string]string{"username": "alice", "password": "alice-pass"}, &aliceUser))
	require.Equal(t, http.StatusCreated, bob.call(http.MethodPost, "/api/auth/register",
		map[string]string{"username": "bob", "password": "bob-pass1"}, nil))
	require.Equal(t, http.StatusOK, admin.call(http.MethodPost, "/api/auth/login",
		map[string]string{"username": "admin", "password": "admin-pass"}, nil))

	var tx transaction.Transaction
	require.Equal(t, http.StatusCreated, alice.call(http.MethodPost, "/api/transactions",
		transaction.Transaction{PaymentMethod: "CARD", MembershipType: transaction.Platinum, TotalAmount: 1}, &tx))
	assert.Equal(t, transaction.Amount(2799), tx.TotalAmount)
	assert.Equal(t, aliceUser.ID, tx.UserID)

	path := "/api/transactions/" + itoa(tx.ID)
	assert.Equal(t, http.StatusForbidden, bob.call(http.MethodGet, path, nil, nil))
	assert.Equal(t, http.StatusOK, admin.call(http.MethodGet, path, nil, nil))
	assert.Equal(t, http.StatusNotFound, alice.call(http.MethodGet, "/api/transactions/9999", nil, nil))
	assert.Equal(t, http.StatusBadRequest, alice.call(http.MethodGet, "/api/transactions/abc", nil, nil))

	assert.Equal(t, http.StatusBadRequest, alice.call(http.MethodPut, path+"/status?status=PENDING", nil, nil))
	assert.Equal(t, http.StatusConflict, admin.call(http.MethodPut, path+"/activate", nil, nil), "unpaid")

	var paid transaction.Transaction
	require.Equal(t, http.StatusOK, alice.call(http.MethodPut, path+"/status?status=COMPLETED", nil, &paid))
	assert.Equal(t, transaction.StatusCompleted, paid.PaymentStatus)

	assert.Equal(t, http.StatusForbidden, alice.call(http.MethodPut, path+"/activate", nil, nil))
	var active transaction.Transaction
	require.Equal(t, http.StatusOK, admin.call(http.MethodPut, path+"/activate", nil, &active))
	assert.True(t, active.Activated())

	var events []Event
	require.Equal(t, http.StatusOK, alice.call(http.MethodGet, path+"/events", nil, &events))
	assert.Len(t, events, 3)

	assert.Equal(t, http.StatusForbidden, bob.call(http.MethodGet, "/api/memberships/status?userId="+itoa(aliceUser.ID), nil, nil))
	assert.Equal(t, http.StatusConflict, alice.call(http.MethodPost, "/api/transactions",
		transaction.Transaction{PaymentMethod: "CARD", MembershipType: transaction.Session}, nil))
}

func TestHandler_CompleteSession(t *testing.T) {
	srv, store := newTestServer(t, Options{Now: fixedNow, AuthBurst: 100})
	ctx := context.Background()
	require.NoError(t, EnsureAdmin(ctx, store, "admin", "admin-pass"))

	member, admin := newAPITester(t, srv), newAPITester(t, srv)
	var user account.User
	require.Equal(t, http.StatusCreated, member.call(http.MethodPost, "/api/auth/register",
		map[string]string{"username": "dewi", "password": "dewi-pass"}, &user))
	require.Equal(t, http.StatusOK, admin.call(http.MethodPost, "/api/auth/login",
		map[string]string{"username": "admin", "password": "admin-pass"}, nil))

	var classes []schedule.Class
	require.Equal(t, http.StatusOK, member.call(http.MethodGet, "/api/classes", nil, &classes))
	require.NotEmpty(t, classes)
	var slots []schedule.Schedule
	require.Equal(t, http.StatusOK, member.call(http.MethodGet, "/api/classes/"+itoa(classes[0].ID)+"/schedules", nil, &slots))
	require.NotEmpty(t, slots)

	var tx transaction.Transaction
	require.Equal(t, http.StatusCreated, member.call(http.MethodPost, "/api/transactions",
		transaction.Transaction{PaymentMethod: "CARD", ClassID: &classes[0].ID, ScheduleID: &slots[0].ID}, &tx))
	path := "/api/transactions/" + itoa(tx.ID)
	assert.Equal(t, http.StatusConflict, admin.call(http.MethodPut, path+"/complete-session", nil, nil), "unpaid")
	require.Equal(t, http.StatusOK, member.call(http.MethodPut, path+"/status?status=COMPLETED", nil, nil))

	assert.Equal(t, http.StatusForbidden, member.call(http.MethodPut, path+"/complete-session", nil, nil))
	var done transaction.Transaction
	require.Equal(t, http.StatusOK, admin.call(http.MethodPut, path+"/complete-session", nil, &done))
	assert.True(t, done.SessionCompleted)

	var info enrollment.EnrollmentInfo
	require.Equal(t, http.StatusOK, member.call(http.MethodGet,
		"/api/transactions/check-active-enrollment?userId="+itoa(user.ID)+"&classId="+itoa(classes[0].ID), nil, &info))
	assert.False(t, info.HasActiveEnrollment)

	var plan transaction.Transaction
	require.Equal(t, http.StatusCreated, member.call(http.MethodPost, "/api/transactions",
		transaction.Transaction{PaymentMethod: "CARD", MembershipType: transaction.Silver}, &plan))
	assert.Equal(t, http.StatusConflict, admin.call(http.MethodPut, "/api/transactions/"+itoa(plan.ID)+"/complete-session", nil, nil))
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
