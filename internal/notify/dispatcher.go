package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/btouchard/choreboard/internal/subscription"
)

// Registry is the subscription set the dispatcher delivers to and prunes.
type Registry interface {
	List() []subscription.Subscription
	Remove(ctx context.Context, id string) error
}

// Pusher delivers one encoded payload to one subscription. Any error
// means the subscription is considered dead.
type Pusher interface {
	Push(ctx context.Context, sub subscription.Subscription, body []byte) error
}

// DispatcherOptions tune a delivery cycle.
type DispatcherOptions struct {
	// Parallelism caps concurrent deliveries within one cycle.
	Parallelism int
	// Timeout bounds a single delivery attempt.
	Timeout time.Duration
}

// Report summarizes one dispatch cycle.
type Report struct {
	Attempted int
	Delivered int
	Pruned    int
}

// Dispatcher delivers payloads to every registered subscription and removes
// the ones that fail.
type Dispatcher struct {
	registry Registry
	pusher   Pusher
	opts     DispatcherOptions

	// cycle serializes dispatches so prunes from one cycle are applied
	// before the next one snapshots the registry.
	cycle sync.Mutex
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(registry Registry, pusher Pusher, opts DispatcherOptions) *Dispatcher {
	if opts.Parallelism < 1 {
		opts.Parallelism = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Dispatcher{registry: registry, pusher: pusher, opts: opts}
}

// Notify implements Notifier.
func (d *Dispatcher) Notify(ctx context.Context, p Payload) {
	r := d.Dispatch(ctx, p)
	slog.Info("notification cycle finished",
		"type", p.Type,
		"attempted", r.Attempted,
		"delivered", r.Delivered,
		"pruned", r.Pruned)
}

// Dispatch runs one delivery cycle against a snapshot of the registry.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) Report {
	body, err := json.Marshal(p)
	if err != nil {
		slog.Error("encoding notification payload", "type", p.Type, "error", err)
		return Report{}
	}

	d.cycle.Lock()
	defer d.cycle.Unlock()

	subs := d.registry.List()
	var delivered, pruned atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(d.opts.Parallelism)
	for _, sub := range subs {
		g.Go(func() error {
			if d.deliver(ctx, sub, body) {
				delivered.Add(1)
				return nil
			}
			if ctx.Err() != nil {
				// Shutting down; the endpoint was never really tried.
				return nil
			}
			if err := d.registry.Remove(ctx, sub.ID); err != nil {
				slog.Warn("removing subscription", "subscription_id", sub.ID, "error", err)
			}
			pruned.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return Report{
		Attempted: len(subs),
		Delivered: int(delivered.Load()),
		Pruned:    int(pruned.Load()),
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sub subscription.Subscription, body []byte) bool {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	if err := d.pusher.Push(ctx, sub, body); err != nil {
		slog.Info("push delivery failed, pruning subscription",
			"subscription_id", sub.ID,
			"error", err)
		return false
	}
	return true
}
