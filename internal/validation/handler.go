package validation

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/retrouvio/retrouvio/internal/perm"
	"github.com/retrouvio/retrouvio/internal/platform/httpx"
	"github.com/retrouvio/retrouvio/internal/shared"
)

// Handler wires HTTP endpoints for the action ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	permMW    perm.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, permMW perm.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		permMW:    permMW,
		validator: validator.New(),
	}
}

// MountRoutes registers ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/actions", h.handleLog)
	r.Get("/actions/mine", h.handleTrail)
	r.Group(func(gr chi.Router) {
		gr.Use(h.permMW.RequireApprover())
		gr.Get("/actions", h.handlePending)
		gr.Post("/actions/{id}/approve", h.handleApprove)
		gr.Post("/actions/{id}/reject", h.handleReject)
	})
}

type logActionRequest struct {
	ActionType string `json:"action_type" validate:"required,oneof=annonce-deletion admin-creation permission-change alert-broadcast"`
	Details    string `json:"details" validate:"max=2000"`
}

type rejectRequest struct {
	Comment string `json:"comment" validate:"max=500"`
}

type recordResponse struct {
	ID          string  `json:"id"`
	ActionType  string  `json:"action_type"`
	RequestedBy string  `json:"requested_by"`
	Details     string  `json:"details,omitempty"`
	Status      string  `json:"status"`
	ApprovedBy  *string `json:"approved_by,omitempty"`
	RejectedBy  *string `json:"rejected_by,omitempty"`
	Comment     string  `json:"comment,omitempty"`
	CreatedAt   string  `json:"created_at"`
	ResolvedAt  *string `json:"resolved_at,omitempty"`
}

func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req logActionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	record, err := h.service.LogAction(r.Context(), id, perm.ActionType(req.ActionType), req.Details)
	if err != nil {
		h.logger.Error("log action", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, toRecordResponse(record))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleResolve(w, r, StatusApproved)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleResolve(w, r, StatusRejected)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request, to Status) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return
	}
	var record Record
	switch to {
	case StatusApproved:
		record, err = h.service.Approve(r.Context(), recordID, id)
	default:
		var req rejectRequest
		if r.ContentLength > 0 {
			if decodeErr := httpx.DecodeJSON(r, &req); decodeErr != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
				return
			}
			if validateErr := h.validator.Struct(req); validateErr != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validateErr.Error())
				return
			}
		}
		record, err = h.service.Reject(r.Context(), recordID, id, req.Comment)
	}
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) handleTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	page, perPage := pagingParams(r)
	records, paging, err := h.service.Trail(r.Context(), id.ID, page, perPage)
	if err != nil {
		h.logger.Error("list trail", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.respondList(w, records, paging)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagingParams(r)
	records, paging, err := h.service.Pending(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list pending", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.respondList(w, records, paging)
}

func (h *Handler) respondList(w http.ResponseWriter, records []Record, paging shared.Pagination) {
	items := make([]recordResponse, 0, len(records))
	for _, record := range records {
		items = append(items, toRecordResponse(record))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"records": items,
		"paging": map[string]int{
			"page":        paging.Page,
			"per_page":    paging.PerPage,
			"total":       paging.Total,
			"total_pages": paging.TotalPages,
		},
	})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "approval requires admin management rights")
	case errors.Is(err, ErrAlreadyResolved):
		httpx.Problem(w, http.StatusConflict, "Conflict", "action already resolved")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "action record not found")
	default:
		h.logger.Error("resolve action", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pagingParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	return page, perPage
}
