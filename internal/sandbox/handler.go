// internal/sandbox/handler.go
package sandbox

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ironcore/internal/account"
	"ironcore/internal/apperr"
	"ironcore/internal/membership"
	"ironcore/internal/transaction"
)

type Handler struct {
	service  Service
	sessions *SessionManager
	log      *zap.Logger
}

func NewHandler(service Service, sessions *SessionManager, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, sessions: sessions, log: log.Named("sandbox.http")}
}

type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrDuplicateUser),
		errors.Is(err, ErrConcurrencyConflict),
		errors.Is(err, ErrScheduleFull),
		errors.Is(err, ErrBlocked),
		errors.Is(err, ErrAlreadyAssigned),
		errors.Is(err, ErrNoSession),
		errors.Is(err, transaction.ErrInvalidTransition),
		errors.Is(err, membership.ErrNotMembership),
		errors.Is(err, membership.ErrNotPaid),
		errors.Is(err, membership.ErrAlreadyActivated):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apperr.Invalid(name, "is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

// actingFor resolves the userId a request targets. Members may only act for
// themselves; administrators may act for anyone.
func actingFor(r *http.Request, userID int64) (account.User, error) {
	u, _ := CurrentUser(r)
	if userID != u.ID && !u.IsAdmin() {
		return u, ErrForbidden
	}
	return u, nil
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.sessions.SignIn(w, r, u); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.sessions.SignIn(w, r, u); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r)
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) HandleMembershipStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := queryID(r, "userId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := actingFor(r, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := h.service.MembershipStatus(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) HandleClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.service.Classes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classes)
}

func (h *Handler) HandleClassSchedules(w http.ResponseWriter, r *http.Request) {
	classID, err := pathID(r, "classID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	schedules, err := h.service.Schedules(r.Context(), classID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "scheduleID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.service.Schedule(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) HandleCheckConflict(w http.ResponseWriter, r *http.Request) {
	userID, err := queryID(r, "userId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	scheduleID, err := queryID(r, "scheduleId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := actingFor(r, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	info, err := h.service.CheckConflict(r.Context(), userID, scheduleID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) HandleCheckActiveEnrollment(w http.ResponseWriter, r *http.Request) {
	userID, err := queryID(r, "userId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	classID, err := queryID(r, "classId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := actingFor(r, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	info, err := h.service.CheckActiveEnrollment(r.Context(), userID, classID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in transaction.Transaction
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, _ := CurrentUser(r)
	if in.UserID == 0 {
		in.UserID = u.ID
	}
	if _, err := actingFor(r, in.UserID); err != nil {
		h.fail(w, r, err)
		return
	}

	tx, err := h.service.CreateTransaction(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// ownedTransaction loads {transactionID} and checks the caller may see it.
func (h *Handler) ownedTransaction(w http.ResponseWriter, r *http.Request) (transaction.Transaction, bool) {
	id, err := pathID(r, "transactionID")
	if err != nil {
		h.fail(w, r, err)
		return transaction.Transaction{}, false
	}
	tx, err := h.service.Transaction(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return transaction.Transaction{}, false
	}
	if _, err := actingFor(r, tx.UserID); err != nil {
		h.fail(w, r, err)
		return transaction.Transaction{}, false
	}
	return tx, true
}

func (h *Handler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.ownedTransaction(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) HandleTransactionEvents(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.ownedTransaction(w, r)
	if !ok {
		return
	}
	events, err := h.service.Journal(r.Context(), tx.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.ownedTransaction(w, r)
	if !ok {
		return
	}
	status := transaction.PaymentStatus(r.URL.Query().Get("status"))
	if status == "" {
		h.fail(w, r, apperr.Invalid("status", "is required"))
		return
	}
	updated, err := h.service.UpdateStatus(r.Context(), tx.ID, status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transactionID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.service.Activate(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) HandleCompleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transactionID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.service.CompleteSession(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) HandleUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := actingFor(r, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	txs, err := h.service.UserTransactions(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) HandleAssignClasses(w http.ResponseWriter, r *http.Request) {
	var req membership.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, _ := CurrentUser(r)
	if req.UserID == 0 {
		req.UserID = u.ID
	}
	if _, err := actingFor(r, req.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	assigned, err := h.service.AssignClasses(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, assigned)
}

func (h *Handler) HandleMembershipClasses(w http.ResponseWriter, r *http.Request) {
	txID, err := queryID(r, "transactionId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.service.Transaction(r.Context(), txID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := actingFor(r, tx.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	assigned, err := h.service.Assignments(r.Context(), txID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assigned)
}
