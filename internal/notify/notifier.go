package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/btouchard/choreboard/internal/task"
)

// Payload types.
const (
	TypeTaskCompleted = "task-completed"
	TypeReset         = "reset"
)

// Payload is the JSON body delivered to out-of-band subscribers.
type Payload struct {
	Type  string     `json:"type"`
	Title string     `json:"title"`
	Body  string     `json:"body"`
	Task  *task.Task `json:"task,omitempty"`
}

// TaskCompleted builds the payload sent when a task is marked complete.
func TaskCompleted(t task.Task) Payload {
	return Payload{
		Type:  TypeTaskCompleted,
		Title: "Task completed",
		Body:  fmt.Sprintf("%s is done", t.Title),
		Task:  &t,
	}
}

// Reset builds the payload sent when the whole board is reset.
func Reset() Payload {
	return Payload{
		Type:  TypeReset,
		Title: "Board reset",
		Body:  "All weekend tasks are back to incomplete",
	}
}

// Notifier delivers board notifications out of band.
type Notifier interface {
	Notify(ctx context.Context, p Payload)
}

// Fanout dispatches payloads to multiple notifiers.
type Fanout struct {
	notifiers []Notifier
}

// NewFanout creates a Fanout with the given notifiers. Nil entries are skipped.
func NewFanout(notifiers ...Notifier) *Fanout {
	f := &Fanout{}
	for _, n := range notifiers {
		if n != nil {
			f.notifiers = append(f.notifiers, n)
		}
	}
	return f
}

// Notify runs every notifier concurrently and returns when all are done.
func (f *Fanout) Notify(ctx context.Context, p Payload) {
	var wg sync.WaitGroup
	for _, n := range f.notifiers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Notify(ctx, p)
		}()
	}
	wg.Wait()
}
