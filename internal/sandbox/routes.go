// internal/sandbox/routes.go
package sandbox

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Routes returns the REST API of the sandbox backend. extra middleware, such
// as a FaultInjector, runs before the session is loaded.
func Routes(h *Handler, sm *SessionManager, extra ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))
	r.Use(extra...)
	r.Use(sm.LoadSessionUser)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", h.HandleRegister)
		api.Post("/auth/login", h.HandleLogin)
		api.Post("/auth/logout", h.HandleLogout)

		api.Group(func(pr chi.Router) {
			pr.Use(sm.RequireSignedIn)

			pr.Get("/users/me", h.HandleMe)
			pr.Get("/memberships/status", h.HandleMembershipStatus)

			pr.Get("/classes", h.HandleClasses)
			pr.Get("/classes/{classID}/schedules", h.HandleClassSchedules)
			pr.Get("/schedules/{scheduleID}", h.HandleSchedule)
			pr.Get("/class-enrollments/check-conflict", h.HandleCheckConflict)

			pr.Post("/transactions", h.HandleCreateTransaction)
			pr.Get("/transactions/check-active-enrollment", h.HandleCheckActiveEnrollment)
			pr.Get("/transactions/user/{userID}", h.HandleUserTransactions)
			pr.Get("/transactions/{transactionID}", h.HandleGetTransaction)
			pr.Get("/transactions/{transactionID}/events", h.HandleTransactionEvents)
			pr.Put("/transactions/{transactionID}/status", h.HandleUpdateStatus)

			pr.Get("/membership-classes", h.HandleMembershipClasses)
			pr.Post("/membership-classes/assign", h.HandleAssignClasses)
		})

		api.Group(func(ar chi.Router) {
			ar.Use(sm.RequireAdmin)
			ar.Put("/transactions/{transactionID}/activate", h.HandleActivate)
			ar.Put("/transactions/{transactionID}/complete-session", h.HandleCompleteSession)
		})
	})

	return r
}

// NewServer wraps the routes with otel instrumentation.
func NewServer(h *Handler, sm *SessionManager, extra ...func(http.Handler) http.Handler) http.Handler {
	return otelhttp.NewHandler(Routes(h, sm, extra...), "sandbox")
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
