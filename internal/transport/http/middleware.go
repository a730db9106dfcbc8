package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"tally/pkg/domain"
	pkgerrors "tally/pkg/domain-errors"
)

// TokenValidator verifies a bearer token and returns the caller
// identity.
type TokenValidator interface {
	Validate(tokenString string) (domain.Identity, error)
}

type contextKeyIdentity struct{}

// IdentityFrom retrieves the authenticated caller from the context.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(contextKeyIdentity{}).(domain.Identity)
	return identity, ok
}

func withIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity{}, identity)
}

// RequireAuth rejects requests without a valid bearer token and puts
// the caller identity in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access, missing bearer token")
				writeError(w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			identity, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access, invalid token", "error", err)
				writeError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// RequireRole gates a route to the listed roles. Must run after
// RequireAuth.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
				return
			}
			if _, ok := allowed[identity.Role]; !ok {
				writeError(w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
