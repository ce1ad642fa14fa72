package notify

import (
	"context"
	"log/slog"
)

// MCPSender abstracts the mcp-go server broadcast method.
// Defined consumer-side per Go convention.
type MCPSender interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// MCPNotifier forwards board notifications to connected MCP clients as
// notifications/message log entries.
type MCPNotifier struct {
	sender MCPSender
}

// NewMCPNotifier creates an MCPNotifier.
func NewMCPNotifier(sender MCPSender) *MCPNotifier {
	return &MCPNotifier{sender: sender}
}

// Notify implements Notifier.
func (n *MCPNotifier) Notify(_ context.Context, p Payload) {
	data := map[string]any{
		"type":  p.Type,
		"title": p.Title,
		"body":  p.Body,
	}
	if p.Task != nil {
		data["task_id"] = p.Task.ID
		data["status"] = string(p.Task.Status)
	}

	level := "info"
	if p.Type == TypeReset {
		level = "notice"
	}

	n.sender.SendNotificationToAllClients("notifications/message", map[string]any{
		"level":  level,
		"logger": "choreboard",
		"data":   data,
	})
	slog.Debug("mcp notification sent", "type", p.Type)
}
