package notify

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/retrouvio/retrouvio/internal/perm"
	"github.com/retrouvio/retrouvio/internal/platform/httpx"
	"github.com/retrouvio/retrouvio/internal/shared"
	"github.com/retrouvio/retrouvio/internal/validation"
)

const broadcastRateLimit = 10
const broadcastRateWindow = time.Minute

// Handler wires HTTP endpoints for notifications.
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

// MountRoutes registers notification routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/notifications", h.handleList)
	r.Get("/notifications/unread-count", h.handleUnreadCount)
	r.Post("/notifications/{id}/read", h.handleMarkRead)
	r.Post("/notifications/read-all", h.handleMarkAllRead)
	r.Group(func(gr chi.Router) {
		gr.Use(h.permMW.Require(perm.ResourceNotifications, perm.ActionManage))
		gr.Post("/notifications", h.handleNotify)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.permMW.Require(perm.ResourceAlerts, perm.ActionBroadcast))
		gr.Use(httprate.Limit(broadcastRateLimit, broadcastRateWindow,
			httprate.WithKeyFuncs(broadcastRateKey),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "broadcast rate limit exceeded")
			}),
		))
		gr.Post("/notifications/broadcast", h.handleBroadcast)
	})
}

func broadcastRateKey(r *http.Request) (string, error) {
	if id, ok := shared.IdentityFromContext(r.Context()); ok {
		return "actor:" + id.ID.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

type notifyRequest struct {
	Recipient string     `json:"recipient" validate:"required,uuid"`
	Type      string     `json:"type" validate:"required,max=64"`
	Title     string     `json:"title" validate:"required,max=200"`
	Message   string     `json:"message" validate:"max=2000"`
	Priority  string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type broadcastRequest struct {
	Roles       []string   `json:"roles" validate:"required,min=1,dive,oneof=moderator admin super-admin police gendarmerie"`
	Type        string     `json:"type" validate:"required,max=64"`
	Title       string     `json:"title" validate:"required,max=200"`
	Message     string     `json:"message" validate:"max=2000"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	ExpiresAt   *time.Time `json:"expires_at"`
	IncludeSelf bool       `json:"include_self"`
}

type notificationResponse struct {
	ID        string  `json:"id"`
	Recipient string  `json:"recipient"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   string  `json:"message,omitempty"`
	Priority  string  `json:"priority"`
	Read      bool    `json:"read"`
	ExpiresAt *string `json:"expires_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	recipient, err := uuid.Parse(req.Recipient)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid recipient id")
		return
	}
	n, err := h.service.Notify(r.Context(), recipient, Payload{
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Priority:  ParsePriority(req.Priority),
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		h.logger.Error("notify", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, toNotificationResponse(n))
}

// handleBroadcast routes alert broadcasts through the action ledger first:
// callers whose actions need deferred validation get a pending record back
// instead of an immediate fan-out.
func (h *Handler) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req broadcastRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	record, err := h.ledger.LogAction(r.Context(), id, perm.ActionAlertBroadcast, req.Title)
	if err != nil {
		h.logger.Error("log broadcast action", slog.Any("error", err))
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
	roles := make([]perm.Role, 0, len(req.Roles))
	for _, raw := range req.Roles {
		role, known := perm.ParseRole(raw)
		if known {
			roles = append(roles, role)
		}
	}
	exclude := id.ID
	if req.IncludeSelf {
		exclude = uuid.Nil
	}
	err = h.service.BroadcastToRole(r.Context(), roles, Payload{
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Priority:  ParsePriority(req.Priority),
		ExpiresAt: req.ExpiresAt,
	}, exclude)
	if err != nil {
		h.logger.Error("broadcast", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "delivered", "record": record.ID.String()})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	unreadOnly := strings.EqualFold(r.URL.Query().Get("unread"), "true")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	items, paging, err := h.service.ListForRecipient(r.Context(), id.ID, unreadOnly, page, perPage)
	if err != nil {
		h.logger.Error("list notifications", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	responses := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		responses = append(responses, toNotificationResponse(n))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"notifications": responses,
		"paging": map[string]int{
			"page":        paging.Page,
			"per_page":    paging.PerPage,
			"total":       paging.Total,
			"total_pages": paging.TotalPages,
		},
	})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	count, err := h.service.UnreadCount(r.Context(), id.ID)
	if err != nil {
		h.logger.Error("unread count", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"unread": count})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	notificationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid notification id")
		return
	}
	if err := h.service.MarkRead(r.Context(), notificationID, id.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "notification not found")
			return
		}
		h.logger.Error("mark read", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if err := h.service.MarkAllRead(r.Context(), id.ID); err != nil {
		h.logger.Error("mark all read", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.NoContent(w)
}

func toNotificationResponse(n Notification) notificationResponse {
	resp := notificationResponse{
		ID:        n.ID.String(),
		Recipient: n.Recipient.String(),
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  string(n.Priority),
		Read:      n.Read,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
	if n.ExpiresAt != nil {
		s := n.ExpiresAt.Format(time.RFC3339)
		resp.ExpiresAt = &s
	}
	return resp
}
