package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tally/pkg/domain"
	"tally/pkg/requestcontext"
)

// NewRouter wires the public API. Everything under /api requires a
// bearer token; audit and status routes are further role-gated.
func NewRouter(h *Handler, validator TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(stampRequestContext)

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAuth(validator, logger))

		r.Post("/transfers", h.handleCreateTransfer)
		r.Get("/accounts/{accountID}", h.handleGetAccount)
		r.Get("/accounts/{accountID}/transfers", h.handleListTransfers)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAdmin))
			r.Patch("/accounts/{accountID}/status", h.handleChangeAccountStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAuditor, domain.RoleAdmin))
			r.Get("/audit/verify", h.handleVerifyAudit)
			r.Get("/audit/entries", h.handleListAuditEntries)
		})
	})

	return r
}

// stampRequestContext copies the correlation ID into the
// transport-agnostic request context and fixes the request time, so one
// request observes one clock reading end to end.
func stampRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
