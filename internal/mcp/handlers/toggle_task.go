package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/choreboard/internal/board"
	"github.com/btouchard/choreboard/internal/task"
)

// ToggleTask returns a handler that sets one task's status.
func ToggleTask(p *board.Processor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		id, _ := args["task_id"].(string)
		title, _ := args["title"].(string)
		if strings.TrimSpace(id) == "" && strings.TrimSpace(title) == "" {
			return mcp.NewToolResultError("task_id or title is required"), nil
		}

		item := board.Item{ID: id, Title: title}
		if s, ok := args["status"].(string); ok {
			item.Status = s
		}
		if c, ok := args["completed"].(bool); ok {
			item.Completed = &c
		}
		if item.Status == "" && item.Completed == nil {
			// Default to checking the task off.
			item.Status = string(task.StatusComplete)
		}

		toggle, err := item.ToggleRequest()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		t, err := p.Toggle(ctx, toggle)
		switch {
		case errors.Is(err, task.ErrNotFound):
			return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", strings.TrimSpace(id+" "+title))), nil
		case errors.Is(err, board.ErrValidation):
			return mcp.NewToolResultError(err.Error()), nil
		case err != nil:
			return mcp.NewToolResultError(fmt.Sprintf("failed to toggle task: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Toggled %s\n\n", t.Title)
		writeTask(&sb, t)
		return mcp.NewToolResultText(sb.String()), nil
	}
}
