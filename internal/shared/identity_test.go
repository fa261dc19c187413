package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/retrouvio/retrouvio/internal/perm"
)

type stubSource struct {
	identities map[uuid.UUID]perm.Identity
}

func (s stubSource) Identity(_ context.Context, actorID uuid.UUID) (perm.Identity, error) {
	id, ok := s.identities[actorID]
	if !ok {
		return perm.Identity{}, ErrUnknownActor
	}
	return id, nil
}

func loaderFor(identities ...perm.Identity) IdentityLoader {
	source := stubSource{identities: make(map[uuid.UUID]perm.Identity)}
	for _, id := range identities {
		source.identities[id.ID] = id
	}
	return IdentityLoader{Source: source}
}

func serveWithLoader(loader IdentityLoader, header string) (*httptest.ResponseRecorder, bool) {
	var sawIdentity bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawIdentity = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(AuthActorHeader, header)
	}
	rec := httptest.NewRecorder()
	loader.Middleware(next).ServeHTTP(rec, req)
	return rec, sawIdentity
}

func TestIdentityLoaderResolvesActiveActor(t *testing.T) {
	actor := perm.Identity{ID: uuid.New(), Role: perm.RoleModerator, Status: perm.StatusActive}
	rec, sawIdentity := serveWithLoader(loaderFor(actor), actor.ID.String())
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if !sawIdentity {
		t.Fatalf("identity missing from request context")
	}
}

func TestIdentityLoaderRejectsMissingHeader(t *testing.T) {
	rec, _ := serveWithLoader(loaderFor(), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestIdentityLoaderRejectsMalformedID(t *testing.T) {
	rec, _ := serveWithLoader(loaderFor(), "not-a-uuid")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestIdentityLoaderRejectsUnknownActor(t *testing.T) {
	rec, _ := serveWithLoader(loaderFor(), uuid.New().String())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestIdentityLoaderRejectsInactiveActor(t *testing.T) {
	actor := perm.Identity{ID: uuid.New(), Role: perm.RoleAdmin, Status: perm.StatusInactive}
	rec, _ := serveWithLoader(loaderFor(actor), actor.ID.String())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for inactive account, got %d", rec.Code)
	}
}

func TestPaginationClamps(t *testing.T) {
	p := NewPagination(0, 0, 45)
	if p.Page != 1 || p.PerPage != 20 || p.TotalPages != 3 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.Offset() != 0 {
		t.Fatalf("expected offset 0, got %d", p.Offset())
	}

	p = NewPagination(3, 500, 250)
	if p.PerPage != 100 {
		t.Fatalf("per-page must clamp to 100, got %d", p.PerPage)
	}
	if p.Offset() != 200 {
		t.Fatalf("expected offset 200, got %d", p.Offset())
	}
}
