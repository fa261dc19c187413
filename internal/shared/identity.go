package shared

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/retrouvio/retrouvio/internal/perm"
)

// AuthActorHeader carries the actor id injected by the upstream auth proxy.
// The proxy has already verified credentials; this layer only resolves the
// actor and refuses anything but active accounts.
const AuthActorHeader = "X-Auth-Actor"

// ErrUnknownActor indicates the supplied actor id resolved to nothing.
var ErrUnknownActor = errors.New("shared: unknown actor")

// IdentitySource resolves an actor id to its trusted identity tuple.
type IdentitySource interface {
	Identity(ctx context.Context, actorID uuid.UUID) (perm.Identity, error)
}

// IdentityLoader is the middleware that turns the trusted upstream header
// into a context identity.
type IdentityLoader struct {
	Source IdentitySource
	Logger *slog.Logger
}

// Middleware loads the identity for authenticated routes. Requests without a
// resolvable, active actor are rejected with 401.
func (l IdentityLoader) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(AuthActorHeader))
		if raw == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		actorID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		id, err := l.Source.Identity(r.Context(), actorID)
		if err != nil {
			if !errors.Is(err, ErrUnknownActor) && l.Logger != nil {
				l.Logger.Error("resolve identity", slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if id.Status != perm.StatusActive {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}
