package app

import (
	"context"
	"fmt"
	"strings"
)

// BroadcastRequest describes one broadcast task.
type BroadcastRequest struct {
	SessionID int64    `json:"sessionId"`
	Chats     []string `json:"chats"`
	Text      string   `json:"text"`
}

// StartBroadcast launches an asynchronous broadcast and returns its task ID.
func (a *App) StartBroadcast(req BroadcastRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("broadcast text is required")
	}
	if len(req.Chats) == 0 {
		return "", fmt.Errorf("at least one target chat is required")
	}
	return a.startTask("broadcast", func(ctx context.Context, taskID string) (map[string]any, error) {
		a.report(ctx, taskID, "connect", 0, 0, "Connecting session...")
		client, err := a.registry.Acquire(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		res, err := a.dispatcher.Send(ctx, client, req.Chats, req.Text, func(done, total int) {
			a.report(ctx, taskID, "broadcast", done, total,
				fmt.Sprintf("Sent %d of %d messages...", done, total))
		})
		result := map[string]any{"sent": res.Sent, "failed": res.Failed, "total": res.Total}
		if err != nil {
			return result, err
		}
		return result, nil
	})
}
