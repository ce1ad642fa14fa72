package store

import (
	"context"
	"fmt"

	"github.com/btouchard/choreboard/internal/subscription"
	"github.com/btouchard/choreboard/internal/task"
)

// Store is the durable backing for the board and the push subscriptions.
type Store interface {
	task.Persister
	subscription.Persister

	Ping(ctx context.Context) error
	Close() error
}

// Drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Options select and configure a Store backend.
type Options struct {
	Driver    string
	Path      string
	RedisURL  string
	KeyPrefix string
}

// Open returns the configured Store. The memory driver returns a nil Store
// and the board keeps state in process only.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return NewSQLiteStore(opts.Path)
	case DriverRedis:
		return NewRedisStore(ctx, opts.RedisURL, opts.KeyPrefix)
	case DriverMemory:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
}

// taskRecord is the persisted shape of a task with its board position.
type taskRecord struct {
	Position    int    `json:"position"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	UpdatedAt   string `json:"updated_at"`
}

func (r taskRecord) task() task.Task {
	return task.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      task.Status(r.Status),
	}
}
