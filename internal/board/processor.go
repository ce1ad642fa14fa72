package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/btouchard/choreboard/internal/hub"
	"github.com/btouchard/choreboard/internal/notify"
	"github.com/btouchard/choreboard/internal/subscription"
	"github.com/btouchard/choreboard/internal/task"
)

var (
	// ErrValidation wraps every rejected command input.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownCommand is returned for a command kind the processor does not handle.
	ErrUnknownCommand = errors.New("unknown command")
)

// Broadcaster pushes board events to live viewers.
type Broadcaster interface {
	Broadcast(msg hub.Message)
}

// Subscriptions is the registry the processor writes subscriptions to.
type Subscriptions interface {
	Upsert(ctx context.Context, s subscription.Subscription) error
}

// Processor validates and applies board commands. Commands are serialized;
// each mutation is queued to viewers before the next command starts.
type Processor struct {
	store    *task.Store
	subs     Subscriptions
	viewers  Broadcaster
	notifier notify.Notifier

	mu       sync.Mutex
	inflight sync.WaitGroup
	baseCtx  context.Context
}

// Option configures a Processor.
type Option func(*Processor)

// WithBroadcaster sets the live viewer fan-out.
func WithBroadcaster(b Broadcaster) Option {
	return func(p *Processor) { p.viewers = b }
}

// WithNotifier sets the out-of-band notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Processor) { p.notifier = n }
}

// WithContext sets the context notification cycles run under. Cancelling it
// aborts deliveries in flight.
func WithContext(ctx context.Context) Option {
	return func(p *Processor) { p.baseCtx = ctx }
}

// NewProcessor creates a Processor over store and subs.
func NewProcessor(store *task.Store, subs Subscriptions, opts ...Option) *Processor {
	p := &Processor{
		store:   store,
		subs:    subs,
		baseCtx: context.Background(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetNotifier replaces the notifier. It must be called before the processor
// handles its first command.
func (p *Processor) SetNotifier(n notify.Notifier) {
	p.notifier = n
}

// ToggleRequest identifies a task by id or, for legacy clients, by title.
type ToggleRequest struct {
	ID     string
	Title  string
	Status task.Status
}

// Tasks returns the current board.
func (p *Processor) Tasks() []task.Task {
	return p.store.All()
}

// Toggle sets one task's status, broadcasts the new board and, when the
// task has just become complete, notifies subscribers.
func (p *Processor) Toggle(ctx context.Context, req ToggleRequest) (task.Task, error) {
	if !req.Status.Valid() {
		return task.Task{}, fmt.Errorf("%w: %w", ErrValidation, task.ErrInvalidStatus)
	}
	if strings.TrimSpace(req.ID) == "" && strings.TrimSpace(req.Title) == "" {
		return task.Task{}, fmt.Errorf("%w: task id or title is required", ErrValidation)
	}

	p.mu.Lock()

	id := req.ID
	if id == "" {
		found, err := p.store.FindByTitle(req.Title)
		if err != nil {
			p.mu.Unlock()
			return task.Task{}, err
		}
		id = found.ID
	}

	before, err := p.store.Get(id)
	if err != nil {
		p.mu.Unlock()
		return task.Task{}, err
	}

	updated, err := p.store.Toggle(ctx, id, req.Status)
	if err != nil {
		p.mu.Unlock()
		return task.Task{}, err
	}
	p.broadcast(hub.TypeUpdate)

	becameComplete := updated.Completed() && !before.Completed()
	p.mu.Unlock()

	slog.Info("task toggled", "task_id", updated.ID, "status", string(updated.Status))

	if becameComplete {
		p.notify(notify.TaskCompleted(updated))
	}
	return updated, nil
}

// Reset marks every task incomplete, broadcasts the board and notifies
// subscribers.
func (p *Processor) Reset(ctx context.Context) ([]task.Task, error) {
	p.mu.Lock()
	tasks, err := p.store.ResetAll(ctx)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.broadcast(hub.TypeReset)
	p.mu.Unlock()

	slog.Info("board reset", "tasks", len(tasks))
	p.notify(notify.Reset())
	return tasks, nil
}

// Subscribe registers a push endpoint. It does not touch the board.
func (p *Processor) Subscribe(ctx context.Context, endpoint string, keys subscription.Keys) (subscription.Subscription, error) {
	sub, err := subscription.New(endpoint, keys)
	if err != nil {
		return subscription.Subscription{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := p.subs.Upsert(ctx, sub); err != nil {
		return subscription.Subscription{}, err
	}
	slog.Info("push subscription registered", "subscription_id", sub.ID)
	return sub, nil
}

// Wait blocks until all notification cycles started so far have finished.
func (p *Processor) Wait() {
	p.inflight.Wait()
}

// broadcast must be called with p.mu held.
func (p *Processor) broadcast(kind hub.MessageType) {
	if p.viewers == nil {
		return
	}
	p.viewers.Broadcast(hub.Message{Type: kind, Tasks: p.store.All()})
}

func (p *Processor) notify(payload notify.Payload) {
	if p.notifier == nil {
		return
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.notifier.Notify(p.baseCtx, payload)
	}()
}
