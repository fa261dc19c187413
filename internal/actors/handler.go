package actors

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/retrouvio/retrouvio/internal/perm"
	"github.com/retrouvio/retrouvio/internal/platform/httpx"
	"github.com/retrouvio/retrouvio/internal/shared"
	"github.com/retrouvio/retrouvio/internal/validation"
)

// Handler wires HTTP endpoints for the actor directory.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	ledger    *validation.Service
	permMW    perm.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, ledger *validation.Service, permMW perm.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		ledger:    ledger,
		permMW:    permMW,
		validator: validator.New(),
	}
}

// MountRoutes registers directory routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(h.permMW.Require(perm.ResourceAdmins, perm.ActionView))
		gr.Get("/actors", h.handleList)
		gr.Get("/actors/{id}", h.handleGet)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.permMW.Require(perm.ResourceAdmins, perm.ActionManage))
		gr.Put("/actors/{id}/permissions", h.handleUpdatePermissions)
	})
}

type actorResponse struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	Name        string             `json:"name"`
	Role        string             `json:"role"`
	Status      string             `json:"status"`
	Permissions perm.PermissionSet `json:"permissions"`
	CreatedAt   string             `json:"created_at"`
	UpdatedAt   string             `json:"updated_at"`
}

type updatePermissionsRequest struct {
	Permissions perm.PermissionSet `json:"permissions" validate:"required"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list actors", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	responses := make([]actorResponse, 0, len(list))
	for _, actor := range list {
		responses = append(responses, toActorResponse(actor))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"actors": responses})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid actor id")
		return
	}
	actor, err := h.service.Get(r.Context(), actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "actor not found")
			return
		}
		h.logger.Error("get actor", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, toActorResponse(actor))
}

// handleUpdatePermissions routes the permission change through the action
// ledger: it applies immediately only when the logged record auto-approves
// (super-admin callers); otherwise the record stays pending for review.
func (h *Handler) handleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	target, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid actor id")
		return
	}
	var req updatePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	record, err := h.ledger.LogAction(r.Context(), id, perm.ActionPermissionChange, "target="+target.String())
	if err != nil {
		h.logger.Error("log permission change", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if !record.Resolved() {
		httpx.JSON(w, http.StatusAccepted, map[string]any{
			"status": "pending-validation",
			"record": record.ID.String(),
		})
		return
	}
	if err := h.service.ApplyPermissions(r.Context(), target, req.Permissions); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "actor not found")
			return
		}
		h.logger.Error("apply permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "applied", "record": record.ID.String()})
}

func toActorResponse(actor Actor) actorResponse {
	return actorResponse{
		ID:          actor.ID.String(),
		Email:       actor.Email,
		Name:        actor.Name,
		Role:        string(actor.Role),
		Status:      string(actor.Status),
		Permissions: actor.Permissions,
		CreatedAt:   actor.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   actor.UpdatedAt.Format(time.RFC3339),
	}
}
