package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Persister is the durable backing for push subscriptions.
type Persister interface {
	ReadSubscriptions(ctx context.Context) ([]Subscription, error)
	WriteSubscription(ctx context.Context, s Subscription) error
	DeleteSubscription(ctx context.Context, id string) error
}

// Registry holds the set of push subscriptions keyed by derived id.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]Subscription

	persist Persister
}

// NewRegistry creates an empty Registry. persist may be nil.
func NewRegistry(persist Persister) *Registry {
	return &Registry{
		subs:    make(map[string]Subscription),
		persist: persist,
	}
}

// Load reads persisted subscriptions into memory.
func (r *Registry) Load(ctx context.Context) error {
	if r.persist == nil {
		return nil
	}
	saved, err := r.persist.ReadSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("reading subscriptions: %w", err)
	}

	r.mu.Lock()
	for _, s := range saved {
		r.subs[s.ID] = s
	}
	n := len(r.subs)
	r.mu.Unlock()

	slog.Info("subscriptions loaded", "count", n)
	return nil
}

// Upsert inserts or replaces a subscription. The id is always re-derived
// from the endpoint; a replaced subscription keeps its original CreatedAt.
func (r *Registry) Upsert(ctx context.Context, s Subscription) error {
	s.ID = IDFor(s.Endpoint)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.subs[s.ID]; ok && !prev.CreatedAt.IsZero() {
		s.CreatedAt = prev.CreatedAt
	}

	if r.persist != nil {
		if err := r.persist.WriteSubscription(ctx, s); err != nil {
			return fmt.Errorf("persisting subscription: %w", err)
		}
	}
	r.subs[s.ID] = s
	return nil
}

// List returns a snapshot of all subscriptions ordered by creation time.
func (r *Registry) List() []Subscription {
	r.mu.RLock()
	out := make([]Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Remove deletes a subscription. Removing an unknown id is a no-op.
// The in-memory entry is dropped even if the durable delete fails, so a
// dead endpoint is never targeted again by this process.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.subs[id]
	delete(r.subs, id)
	r.mu.Unlock()

	if !ok || r.persist == nil {
		return nil
	}
	if err := r.persist.DeleteSubscription(ctx, id); err != nil {
		return fmt.Errorf("deleting subscription %s: %w", id, err)
	}
	return nil
}

// Len returns the number of registered subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
