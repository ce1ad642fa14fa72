package handlers

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/choreboard/internal/board"
)

// ResetBoard returns a handler that marks every task incomplete. The caller
// must pass confirm=true.
func ResetBoard(p *board.Processor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		confirm, _ := req.GetArguments()["confirm"].(bool)
		if !confirm {
			return mcp.NewToolResultError("reset_board clears every task; call again with confirm=true"), nil
		}

		tasks, err := p.Reset(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to reset board: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("🔄 Board reset: %d tasks are incomplete again.", len(tasks))), nil
	}
}
