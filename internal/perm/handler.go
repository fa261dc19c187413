package perm

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/retrouvio/retrouvio/internal/platform/httpx"
)

// Handler exposes read-only permission endpoints to the route layer.
type Handler struct{}

// NewHandler constructs a Handler instance.
func NewHandler() *Handler {
	return &Handler{}
}

// MountRoutes registers permission routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions/defaults/{role}", h.handleDefaults)
	r.Get("/permissions/check", h.handleCheck)
}

func (h *Handler) handleDefaults(w http.ResponseWriter, r *http.Request) {
	role, known := ParseRole(chi.URLParam(r, "role"))
	if !known {
		// Unknown roles fall back to the moderator template; report which
		// template actually applied so callers can tell.
		role = RoleModerator
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":        role,
		"permissions": DefaultPermissions(role),
	})
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	resource := strings.TrimSpace(r.URL.Query().Get("resource"))
	action := strings.TrimSpace(r.URL.Query().Get("action"))
	if resource == "" || action == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "resource and action are required")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"resource": resource,
		"action":   action,
		"granted":  HasPermission(id, resource, action),
	})
}
