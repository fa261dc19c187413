package presence

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/retrouvio/retrouvio/internal/platform/httpx"
)

// Handler exposes presence snapshots to the route layer.
type Handler struct {
	registry *Registry
}

// NewHandler constructs a Handler instance.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// MountRoutes registers presence routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/presence", h.handleList)
	r.Get("/presence/{id}", h.handleStatus)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	online := h.registry.ListOnline()
	ids := make([]string, 0, len(online))
	for _, id := range online {
		ids = append(ids, id.String())
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"online": ids, "count": len(ids)})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	actorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid actor id")
		return
	}
	resp := map[string]any{"online": h.registry.IsOnline(actorID)}
	if t, ok := h.registry.LastSeen(actorID); ok {
		resp["last_seen"] = t.Format(time.RFC3339)
	}
	httpx.JSON(w, http.StatusOK, resp)
}
