package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/choreboard/internal/mcp/handlers"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// list_tasks: Show the board
	s.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription("List the chores on the shared board with their current status."),
			mcp.WithString("status",
				mcp.Description("Only show tasks with this status"),
				mcp.Enum("all", "complete", "incomplete"),
			),
		),
		handlers.ListTasks(deps.Board),
	)

	// toggle_task: Check a chore on or off
	s.AddTool(
		mcp.NewTool("toggle_task",
			mcp.WithDescription("Set the status of one chore. Every open board updates immediately and push subscribers are told when a chore is completed."),
			mcp.WithString("task_id",
				mcp.Description("Task id (e.g. 'laundry'). Either task_id or title is required."),
			),
			mcp.WithString("title",
				mcp.Description("Exact task title, used when task_id is not known"),
			),
			mcp.WithString("status",
				mcp.Description("New status (default: complete)"),
				mcp.Enum("complete", "incomplete"),
			),
			mcp.WithBoolean("completed",
				mcp.Description("Alternative to status: true for complete, false for incomplete"),
			),
		),
		handlers.ToggleTask(deps.Board),
	)

	// reset_board: Start a new weekend
	s.AddTool(
		mcp.NewTool("reset_board",
			mcp.WithDescription("Mark every chore incomplete. Notifies all push subscribers."),
			mcp.WithBoolean("confirm",
				mcp.Required(),
				mcp.Description("Must be true to reset the board"),
			),
		),
		handlers.ResetBoard(deps.Board),
	)

	// subscribe: Register a push endpoint
	s.AddTool(
		mcp.NewTool("subscribe",
			mcp.WithDescription("Register a Web Push subscription to receive board notifications."),
			mcp.WithString("endpoint",
				mcp.Required(),
				mcp.Description("Push service endpoint URL from the browser PushSubscription"),
			),
			mcp.WithString("p256dh",
				mcp.Required(),
				mcp.Description("Client public key (keys.p256dh)"),
			),
			mcp.WithString("auth",
				mcp.Required(),
				mcp.Description("Client auth secret (keys.auth)"),
			),
		),
		handlers.Subscribe(deps.Board),
	)
}
