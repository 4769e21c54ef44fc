// internal/sandbox/session.go
package sandbox

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"ironcore/internal/account"
)

const (
	SessionName = "ironcore-session"

	userIDKey = "user_id"
)

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// SessionManager keeps the signed-in user id in an authenticated cookie.
type SessionManager struct {
	store   *sessions.CookieStore
	service Service
	log     *zap.Logger
}

// NewSessionManager builds a cookie store from hashKey. An empty key
// generates a random one, which invalidates sessions on restart.
func NewSessionManager(service Service, hashKey []byte, secure bool, log *zap.Logger) *SessionManager {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
	}
	if log == nil {
		log = zap.NewNop()
	}
	store := sessions.NewCookieStore(hashKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store, service: service, log: log}
}

// CurrentUser returns the user loaded by LoadSessionUser.
func CurrentUser(r *http.Request) (account.User, bool) {
	u, ok := r.Context().Value(currentUserKey).(account.User)
	return u, ok
}

func withUser(r *http.Request, u account.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// SignIn stores the user id in a fresh session cookie.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u account.User) error {
	sess, _ := sm.store.Get(r, SessionName)
	sess.Values[userIDKey] = u.ID
	return sess.Save(r, w)
}

func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, SessionName)
	delete(sess.Values, userIDKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// LoadSessionUser injects the user into the request context when the session
// cookie is valid. The user is re-read on every request so role changes apply.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.store.Get(r, SessionName)
		if err != nil {
			var scErr securecookie.Error
			if errors.As(err, &scErr) && scErr.IsDecode() {
				sm.log.Debug("discarding undecodable session cookie")
			}
			next.ServeHTTP(w, r)
			return
		}
		if id, ok := sess.Values[userIDKey].(int64); ok && id > 0 {
			u, err := sm.service.User(r.Context(), id)
			if err == nil {
				r = withUser(r, u)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (sm *SessionManager) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
