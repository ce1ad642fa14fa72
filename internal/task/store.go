package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Persister is the durable backing for board tasks.
// Defined consumer-side per Go convention.
type Persister interface {
	ReadTasks(ctx context.Context) ([]Task, error)
	WriteTask(ctx context.Context, t Task) error
	WriteTasks(ctx context.Context, tasks []Task) error
}

// Store owns the canonical task list. Tasks keep their provisioning order
// and only their status ever changes.
type Store struct {
	mu    sync.RWMutex
	tasks []Task
	index map[string]int

	persist Persister
}

// NewStore builds a Store from the provisioned board. Duplicate or empty ids
// are rejected. persist may be nil for a purely in-memory board.
func NewStore(seed []Task, persist Persister) (*Store, error) {
	s := &Store{
		tasks:   make([]Task, 0, len(seed)),
		index:   make(map[string]int, len(seed)),
		persist: persist,
	}
	for _, t := range seed {
		if t.ID == "" {
			return nil, fmt.Errorf("task %q has no id", t.Title)
		}
		if _, dup := s.index[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %q", t.ID)
		}
		if !t.Status.Valid() {
			t.Status = StatusIncomplete
		}
		s.index[t.ID] = len(s.tasks)
		s.tasks = append(s.tasks, t)
	}
	return s, nil
}

// Load restores persisted statuses for provisioned tasks and writes the
// resulting board back so the store mirrors the configuration. Persisted
// tasks that are no longer provisioned are ignored.
func (s *Store) Load(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}

	saved, err := s.persist.ReadTasks(ctx)
	if err != nil {
		return fmt.Errorf("reading tasks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0
	for _, t := range saved {
		i, ok := s.index[t.ID]
		if !ok || !t.Status.Valid() {
			continue
		}
		s.tasks[i].Status = t.Status
		restored++
	}

	if err := s.persist.WriteTasks(ctx, s.copyLocked()); err != nil {
		return fmt.Errorf("provisioning tasks: %w", err)
	}

	slog.Info("task board loaded", "tasks", len(s.tasks), "restored", restored)
	return nil
}

// All returns a snapshot of the board in provisioning order.
func (s *Store) All() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Get returns a single task by id.
func (s *Store) Get(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return s.tasks[i], nil
}

// FindByTitle returns the first task whose title matches exactly.
func (s *Store) FindByTitle(title string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tasks {
		if t.Title == title {
			return t, nil
		}
	}
	return Task{}, fmt.Errorf("%w: title %q", ErrNotFound, title)
}

// Toggle sets the status of one task. The persisted copy is written before
// the in-memory board changes, so a failed write leaves the board untouched.
func (s *Store) Toggle(ctx context.Context, id string, status Status) (Task, error) {
	if !status.Valid() {
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	updated := s.tasks[i]
	updated.Status = status

	if s.persist != nil {
		if err := s.persist.WriteTask(ctx, updated); err != nil {
			return Task{}, fmt.Errorf("persisting task %q: %w", id, err)
		}
	}

	s.tasks[i] = updated
	return updated, nil
}

// ResetAll marks every task incomplete in a single batch.
func (s *Store) ResetAll(ctx context.Context) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.copyLocked()
	for i := range next {
		next[i].Status = StatusIncomplete
	}

	if s.persist != nil {
		if err := s.persist.WriteTasks(ctx, next); err != nil {
			return nil, fmt.Errorf("persisting reset: %w", err)
		}
	}

	s.tasks = next
	return s.copyLocked(), nil
}

// Len returns the number of tasks on the board.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) copyLocked() []Task {
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}
