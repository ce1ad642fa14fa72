package board

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/btouchard/choreboard/internal/subscription"
	"github.com/btouchard/choreboard/internal/task"
)

// Command kinds accepted on the inbound channels.
const (
	KindUpdate    = "update"
	KindToggle    = "toggle"
	KindReset     = "reset"
	KindSubscribe = "subscribe"
)

// Item is a toggle target as sent by clients. Either Status or Completed
// may carry the new state; Status wins when both are set.
type Item struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title,omitempty"`
	Status    string `json:"status,omitempty"`
	Completed *bool  `json:"completed,omitempty"`
}

// PushSubscription is the browser PushSubscription JSON shape.
type PushSubscription struct {
	Endpoint string            `json:"endpoint"`
	Keys     subscription.Keys `json:"keys"`
}

// Command is one inbound message from a bidirectional client.
type Command struct {
	Type         string            `json:"type"`
	Item         *Item             `json:"item,omitempty"`
	Subscription *PushSubscription `json:"subscription,omitempty"`
}

// Result is what a successfully applied command produced.
type Result struct {
	Task         *task.Task
	Tasks        []task.Task
	Subscription *subscription.Subscription
}

// DecodeCommand parses a raw inbound message.
func DecodeCommand(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: malformed message: %v", ErrValidation, err)
	}
	return cmd, nil
}

// ToggleRequest converts an Item into a validated ToggleRequest.
func (it Item) ToggleRequest() (ToggleRequest, error) {
	var status task.Status
	switch {
	case it.Status != "":
		s, err := task.ParseStatus(it.Status)
		if err != nil {
			return ToggleRequest{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		status = s
	case it.Completed != nil:
		status = task.StatusFromBool(*it.Completed)
	default:
		return ToggleRequest{}, fmt.Errorf("%w: status or completed is required", ErrValidation)
	}
	return ToggleRequest{ID: it.ID, Title: it.Title, Status: status}, nil
}

// Execute applies cmd through the matching processor operation.
func (p *Processor) Execute(ctx context.Context, cmd Command) (Result, error) {
	switch cmd.Type {
	case KindUpdate, KindToggle:
		if cmd.Item == nil {
			return Result{}, fmt.Errorf("%w: item is required", ErrValidation)
		}
		req, err := cmd.Item.ToggleRequest()
		if err != nil {
			return Result{}, err
		}
		t, err := p.Toggle(ctx, req)
		if err != nil {
			return Result{}, err
		}
		return Result{Task: &t}, nil

	case KindReset:
		tasks, err := p.Reset(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Tasks: tasks}, nil

	case KindSubscribe:
		if cmd.Subscription == nil {
			return Result{}, fmt.Errorf("%w: subscription is required", ErrValidation)
		}
		sub, err := p.Subscribe(ctx, cmd.Subscription.Endpoint, cmd.Subscription.Keys)
		if err != nil {
			return Result{}, err
		}
		return Result{Subscription: &sub}, nil

	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}
