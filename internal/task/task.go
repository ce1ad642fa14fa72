package task

import (
	"errors"
	"fmt"
	"strings"
)

// Status represents the completion state of a board task.
type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusComplete   Status = "complete"
)

// ErrNotFound is returned when a task id does not exist on the board.
var ErrNotFound = errors.New("task not found")

// ErrInvalidStatus is returned when a status string is neither complete nor incomplete.
var ErrInvalidStatus = errors.New("invalid task status")

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusIncomplete || s == StatusComplete
}

// ParseStatus normalizes a status string. Accepts "completed" as an alias
// for older clients.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "complete", "completed":
		return StatusComplete, nil
	case "incomplete":
		return StatusIncomplete, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// StatusFromBool maps the legacy completed flag to a Status.
func StatusFromBool(completed bool) Status {
	if completed {
		return StatusComplete
	}
	return StatusIncomplete
}

// Task is a single checklist item on the board.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// Completed reports whether the task is in the complete state.
func (t Task) Completed() bool {
	return t.Status == StatusComplete
}
