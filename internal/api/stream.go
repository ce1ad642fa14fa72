package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/btouchard/choreboard/internal/hub"
)

// sseConn is a server-push viewer connection. Only the hub's writer
// goroutine writes to it.
type sseConn struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (c *sseConn) Send(ctx context.Context, msg hub.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return c.write(ctx, func() error {
		_, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
		return err
	})
}

// Keepalive writes an SSE comment line, which clients ignore.
func (c *sseConn) Keepalive(ctx context.Context) error {
	return c.write(ctx, func() error {
		_, err := fmt.Fprint(c.w, ":\n\n")
		return err
	})
}

func (c *sseConn) write(ctx context.Context, fn func() error) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	if err := fn(); err != nil {
		return err
	}
	return c.rc.Flush()
}

// events handles GET /weekend-tasks/events.
func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	// The server-wide write timeout would cut long-lived streams; each
	// event gets its own deadline instead.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.Debug("clearing write deadline", "error", err)
	}

	hd := w.Header()
	hd.Set("Content-Type", "text/event-stream")
	hd.Set("Cache-Control", "no-cache")
	hd.Set("Connection", "keep-alive")
	hd.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Warn("streaming unsupported", "error", err)
		return
	}

	v := h.deps.Hub.Register(&sseConn{w: w, rc: rc})
	defer h.deps.Hub.Disconnect(v)

	select {
	case <-r.Context().Done():
	case <-v.Done():
	}
}
