package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/choreboard/internal/board"
	"github.com/btouchard/choreboard/internal/subscription"
)

// Subscribe returns a handler that registers a Web Push endpoint.
func Subscribe(p *board.Processor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		endpoint, _ := args["endpoint"].(string)
		p256dh, _ := args["p256dh"].(string)
		auth, _ := args["auth"].(string)
		if endpoint == "" {
			return mcp.NewToolResultError("endpoint is required"), nil
		}

		sub, err := p.Subscribe(ctx, endpoint, subscription.Keys{P256dh: p256dh, Auth: auth})
		switch {
		case errors.Is(err, board.ErrValidation):
			return mcp.NewToolResultError(err.Error()), nil
		case err != nil:
			return mcp.NewToolResultError(fmt.Sprintf("failed to subscribe: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("🔔 Subscribed %s (id %s)", sub.Endpoint, sub.ID)), nil
	}
}
