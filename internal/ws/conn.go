package ws

import (
	"context"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Event is the envelope for everything written to a socket.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// conn adapts one websocket to the presence.Handle capability. Each instance
// belongs to exactly one actor's registration; the registry's handle equality
// check relies on the pointer identity of this struct.
type conn struct {
	sock   *websocket.Conn
	cancel context.CancelFunc
}

// Send writes one event. The caller bounds ctx; a slow socket fails the write
// instead of blocking delivery to other recipients.
func (c *conn) Send(ctx context.Context, event string, payload any) error {
	return wsjson.Write(ctx, c.sock, Event{Event: event, Data: payload})
}

// Close terminates the socket and unblocks its read loop.
func (c *conn) Close(reason string) {
	_ = c.sock.Close(websocket.StatusNormalClosure, reason)
	c.cancel()
}
