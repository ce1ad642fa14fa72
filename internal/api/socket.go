package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/btouchard/choreboard/internal/board"
	"github.com/btouchard/choreboard/internal/hub"
)

const maxMessageBytes = 64 << 10

func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
				return true
			}
			if slices.Contains(allowed, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

// wsConn is a bidirectional viewer connection. Data frames are written only
// by the hub's writer goroutine.
type wsConn struct {
	c *websocket.Conn
}

func (c *wsConn) Send(ctx context.Context, msg hub.Message) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.c.SetWriteDeadline(deadline)
	}
	return c.c.WriteJSON(msg)
}

// Keepalive sends a ping control frame.
func (c *wsConn) Keepalive(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	return c.c.WriteControl(websocket.PingMessage, nil, deadline)
}

// socket handles GET /weekend-tasks/ws. Inbound messages are board commands;
// a rejected command is answered with an error message on this socket only.
func (h *handler) socket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	ws.SetReadLimit(maxMessageBytes)
	if wait := h.readWait(); wait > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(wait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wait))
		})
	}

	v := h.deps.Hub.Register(&wsConn{c: ws})
	defer h.deps.Hub.Disconnect(v)

	// Unblock the read loop once the hub drops this viewer.
	go func() {
		<-v.Stopped()
		_ = ws.Close()
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket closed", "viewer_id", v.ID(), "error", err)
			}
			return
		}
		if wait := h.readWait(); wait > 0 {
			_ = ws.SetReadDeadline(time.Now().Add(wait))
		}

		cmd, err := board.DecodeCommand(raw)
		if err == nil {
			_, err = h.deps.Board.Execute(r.Context(), cmd)
		}
		if err != nil {
			slog.Info("websocket command rejected", "viewer_id", v.ID(), "type", cmd.Type, "error", err)
			msg := err.Error()
			if statusFor(err) == http.StatusInternalServerError {
				msg = "internal error"
			}
			h.deps.Hub.Send(v.ID(), hub.Message{Type: hub.TypeError, Error: msg})
		}
	}
}

// readWait is how long a socket may stay silent. Pings go out every
// Keepalive, so two missed pongs drop the connection.
func (h *handler) readWait() time.Duration {
	if h.deps.Keepalive <= 0 {
		return 0
	}
	return 2 * h.deps.Keepalive
}
