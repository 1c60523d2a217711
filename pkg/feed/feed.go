package feed

import (
	"time"

	"chatvault/pkg/domain"
)

// Event is the wire form of one live-feed message, published by the protocol
// edge and consumed by the persistence worker.
type Event struct {
	SessionID  int64                `json:"sessionId"`
	ChatID     int64                `json:"chatId"`
	ChatName   string               `json:"chatName"`
	MessageID  int64                `json:"messageId"`
	SenderID   int64                `json:"senderId,omitempty"`
	SenderName string               `json:"senderName"`
	Content    string               `json:"content"`
	Category   domain.MediaCategory `json:"category,omitempty"`
	Attrs      map[string]string    `json:"attrs,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
}

// MessageLog converts the event to its persisted form.
func (e Event) MessageLog() domain.MessageLog {
	return domain.MessageLog{
		SessionID:  e.SessionID,
		ChatID:     e.ChatID,
		ChatName:   e.ChatName,
		MessageID:  e.MessageID,
		SenderID:   e.SenderID,
		SenderName: e.SenderName,
		Content:    e.Content,
		Category:   e.Category,
		Attrs:      e.Attrs,
		Timestamp:  e.Timestamp,
	}
}
