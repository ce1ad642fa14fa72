package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/choreboard/internal/board"
	"github.com/btouchard/choreboard/internal/task"
)

// ListTasks returns a handler that lists the board, optionally filtered by status.
func ListTasks(p *board.Processor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		var want task.Status
		if s, ok := args["status"].(string); ok && s != "" && s != "all" {
			status, err := task.ParseStatus(s)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid status %q: use complete, incomplete or all", s)), nil
			}
			want = status
		}

		var tasks []task.Task
		for _, t := range p.Tasks() {
			if want == "" || t.Status == want {
				tasks = append(tasks, t)
			}
		}

		if len(tasks) == 0 {
			return mcp.NewToolResultText("No tasks found matching the given filters."), nil
		}

		done := 0
		for _, t := range tasks {
			if t.Completed() {
				done++
			}
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📋 Board (%d/%d done)\n\n", done, len(tasks))
		for _, t := range tasks {
			writeTask(&sb, t)
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func writeTask(sb *strings.Builder, t task.Task) {
	fmt.Fprintf(sb, "%s **%s** (%s)\n", statusIcon(t.Status), t.Title, t.ID)
	if t.Description != "" {
		fmt.Fprintf(sb, "  %s\n", t.Description)
	}
	sb.WriteString("\n")
}

func statusIcon(s task.Status) string {
	switch s {
	case task.StatusComplete:
		return "✅"
	case task.StatusIncomplete:
		return "⬜"
	default:
		return "❓"
	}
}
