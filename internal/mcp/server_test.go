package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/choreboard/internal/board"
	"github.com/btouchard/choreboard/internal/subscription"
	"github.com/btouchard/choreboard/internal/task"
)

func TestNewServer_RegistersBoardTools(t *testing.T) {
	t.Parallel()

	store, err := task.NewStore([]task.Task{{ID: "laundry", Title: "Laundry"}}, nil)
	require.NoError(t, err)
	s := NewServer(&Deps{
		Board:   board.NewProcessor(store, subscription.NewRegistry(nil)),
		Version: "test",
	})

	tools := s.ListTools()
	for _, name := range []string{"list_tasks", "toggle_task", "reset_board", "subscribe"} {
		assert.Contains(t, tools, name)
	}
	assert.Len(t, tools, 4)
}
