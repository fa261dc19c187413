package perm

import (
	"log/slog"
	"net/http"
)

// Middleware wires permission checks for HTTP handlers. Every guarded route
// goes through the engine; handlers never compare role strings themselves.
type Middleware struct {
	Logger *slog.Logger
}

// Require ensures the current identity holds the resource/action permission.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !HasPermission(id, resource, action) {
				if m.Logger != nil {
					m.Logger.Warn("permission denied",
						slog.String("actor", id.ID.String()),
						slog.String("resource", resource),
						slog.String("action", action))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireApprover ensures the current identity may resolve pending action
// records.
func (m Middleware) RequireApprover() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !CanManageAdmins(id) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
