// Package ws binds the connection life-cycle of the transport layer to the
// presence registry: one goroutine per socket reads until the peer goes away,
// and the registry learns about establishment and termination.
package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/retrouvio/retrouvio/internal/presence"
	"github.com/retrouvio/retrouvio/internal/shared"
)

// Handler upgrades authenticated requests to live connections.
type Handler struct {
	logger         *slog.Logger
	registry       *presence.Registry
	originPatterns []string
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, registry *presence.Registry, originPatterns []string) *Handler {
	return &Handler{logger: logger, registry: registry, originPatterns: originPatterns}
}

// ServeHTTP accepts the websocket, registers the actor as online and blocks
// until the connection ends. Disconnect passes the same handle that was
// registered, so a close event racing a reconnect cannot knock the fresh
// connection offline.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	opts := &websocket.AcceptOptions{}
	if len(h.originPatterns) > 0 {
		opts.OriginPatterns = h.originPatterns
	}
	sock, err := websocket.Accept(w, r, opts)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("websocket accept", slog.Any("error", err))
		}
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c := &conn{sock: sock, cancel: cancel}

	h.registry.Connect(id.ID, c)
	if h.logger != nil {
		h.logger.Info("actor connected", slog.String("actor", id.ID.String()))
	}
	_ = c.Send(ctx, "ready", nil)

	// Inbound frames are not part of the protocol; reading drains pings and
	// detects the close.
	for {
		if _, _, err := sock.Read(ctx); err != nil {
			break
		}
	}

	if h.registry.Disconnect(id.ID, c) {
		if h.logger != nil {
			h.logger.Info("actor disconnected", slog.String("actor", id.ID.String()))
		}
	}
	_ = sock.Close(websocket.StatusNormalClosure, "closed")
}
