package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/btouchard/choreboard/internal/task"
)

// MessageType tags a message sent to viewers.
type MessageType string

const (
	TypeInit   MessageType = "init"
	TypeUpdate MessageType = "update"
	TypeReset  MessageType = "reset"
	TypeError  MessageType = "error"
)

// Message is a board event delivered to viewer connections.
type Message struct {
	Type  MessageType `json:"type"`
	Tasks []task.Task `json:"tasks,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Conn is one live transport channel to a viewer. Implementations are only
// ever written to from a single goroutine.
type Conn interface {
	Send(ctx context.Context, msg Message) error
	// Keepalive writes a transport-level liveness signal with no task data.
	Keepalive(ctx context.Context) error
}

// SnapshotFunc returns the current board for init messages.
type SnapshotFunc func() []task.Task

// Options tune per-connection delivery.
type Options struct {
	OutboxSize   int
	Keepalive    time.Duration
	WriteTimeout time.Duration
}

// Hub tracks live viewer connections and fans board events out to them.
// Every viewer has a bounded outbox drained by its own writer goroutine.
type Hub struct {
	snapshot SnapshotFunc
	opts     Options

	mu      sync.RWMutex
	viewers map[string]*Viewer
	closed  bool
}

// Viewer is the hub's handle on one registered connection.
type Viewer struct {
	id   string
	conn Conn
	out  chan Message

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// ID returns the viewer id assigned at registration.
func (v *Viewer) ID() string { return v.id }

// Done is closed once the viewer has been unregistered.
func (v *Viewer) Done() <-chan struct{} { return v.done }

// Stopped is closed once the viewer's writer goroutine has exited. After
// that no further writes reach the connection.
func (v *Viewer) Stopped() <-chan struct{} { return v.stopped }

// New creates a Hub. snapshot must be safe for concurrent use.
func New(snapshot SnapshotFunc, opts Options) *Hub {
	if opts.OutboxSize < 1 {
		opts.OutboxSize = 64
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Hub{
		snapshot: snapshot,
		opts:     opts,
		viewers:  make(map[string]*Viewer),
	}
}

// Register adds conn to the live set and queues an init message holding the
// full board. The snapshot is taken under the hub lock, so no broadcast can
// slip between the baseline and the first update.
func (h *Hub) Register(conn Conn) *Viewer {
	v := &Viewer{
		id:      uuid.NewString(),
		conn:    conn,
		out:     make(chan Message, h.opts.OutboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(v.done)
		close(v.stopped)
		return v
	}
	v.out <- Message{Type: TypeInit, Tasks: h.snapshot()}
	h.viewers[v.id] = v
	total := len(h.viewers)
	h.mu.Unlock()

	go h.writeLoop(v)

	slog.Info("viewer registered", "viewer_id", v.id, "viewers", total)
	return v
}

// Unregister removes a viewer from the live set. Unknown ids are ignored.
// Messages still queued for the viewer are discarded.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	v, ok := h.viewers[id]
	if ok {
		delete(h.viewers, id)
	}
	total := len(h.viewers)
	h.mu.Unlock()

	if !ok {
		return
	}
	v.stopOnce.Do(func() { close(v.done) })
	slog.Info("viewer unregistered", "viewer_id", id, "viewers", total)
}

// Disconnect unregisters the viewer and waits for its writer to stop.
// Transports call it before releasing the underlying connection.
func (h *Hub) Disconnect(v *Viewer) {
	h.Unregister(v.id)
	<-v.stopped
}

// Broadcast queues msg for every live viewer without blocking. A viewer
// whose outbox is full is disconnected rather than slowing the caller.
func (h *Hub) Broadcast(msg Message) {
	var overflow []string

	h.mu.RLock()
	for id, v := range h.viewers {
		select {
		case v.out <- msg:
		default:
			overflow = append(overflow, id)
		}
	}
	recipients := len(h.viewers) - len(overflow)
	h.mu.RUnlock()

	for _, id := range overflow {
		slog.Warn("viewer outbox full, disconnecting", "viewer_id", id)
		h.Unregister(id)
	}

	slog.Debug("broadcast queued", "type", string(msg.Type), "recipients", recipients)
}

// Send queues msg for a single viewer. It reports false if the viewer is
// gone or its outbox is full.
func (h *Hub) Send(id string, msg Message) bool {
	h.mu.RLock()
	v, ok := h.viewers[id]
	if ok {
		select {
		case v.out <- msg:
		default:
			ok = false
		}
	}
	h.mu.RUnlock()
	return ok
}

// Count returns the number of live viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Close unregisters every viewer. Viewers registered afterwards are done
// immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	ids := make([]string, 0, len(h.viewers))
	for id := range h.viewers {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.Unregister(id)
	}
}

func (h *Hub) writeLoop(v *Viewer) {
	defer close(v.stopped)

	// Keepalives fire on a fixed period, even while data is flowing: a
	// WebSocket peer's read deadline is only extended by its pong.
	tick := time.NewTicker(h.opts.Keepalive)
	defer tick.Stop()

	for {
		// Prefer unregistration over draining: queued messages for a dead
		// viewer are dropped.
		select {
		case <-v.done:
			return
		default:
		}

		select {
		case <-v.done:
			return

		case msg := <-v.out:
			if err := h.write(v, func(ctx context.Context) error { return v.conn.Send(ctx, msg) }); err != nil {
				slog.Info("viewer send failed", "viewer_id", v.id, "type", string(msg.Type), "error", err)
				h.Unregister(v.id)
				return
			}

		case <-tick.C:
			if err := h.write(v, v.conn.Keepalive); err != nil {
				slog.Info("viewer keepalive failed", "viewer_id", v.id, "error", err)
				h.Unregister(v.id)
				return
			}
		}
	}
}

func (h *Hub) write(v *Viewer, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.WriteTimeout)
	defer cancel()

	// Abort the write context once the viewer is unregistered.
	go func() {
		select {
		case <-v.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	return fn(ctx)
}
