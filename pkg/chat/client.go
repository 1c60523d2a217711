package chat

import (
	"context"
	"time"

	"chatvault/pkg/domain"
)

// MediaKind is the raw message media kind as reported by the protocol client.
type MediaKind string

const (
	KindNone      MediaKind = ""
	KindPhoto     MediaKind = "photo"
	KindVideo     MediaKind = "video"
	KindVideoNote MediaKind = "video_note"
	KindAudio     MediaKind = "audio"
	KindVoice     MediaKind = "voice"
	KindDocument  MediaKind = "document"
)

// Dialog is a remote conversation visible to a session's account.
type Dialog struct {
	ChatID   int64
	Title    string
	Username string
}

// Media describes an attachment on a history message.
type Media struct {
	Kind     MediaKind
	FileName string
	MimeType string
	// Ref is the protocol-level handle used to download the attachment.
	Ref string
}

// Message is one item of a dialog's history.
type Message struct {
	ID             int64
	ChatID         int64
	SenderID       int64
	SenderName     string
	SenderUsername string
	Text           string
	Media          *Media
	Timestamp      time.Time
}

// Cursor iterates a dialog's history newest to oldest.
type Cursor interface {
	// Next returns the next (older) message. ok is false once the history
	// is exhausted.
	Next(ctx context.Context) (msg Message, ok bool, err error)
}

// Client is the chat-protocol collaborator. Implementations own their rate
// limits and transient-error semantics; callers treat every method as a
// potentially slow remote call.
type Client interface {
	Dialogs(ctx context.Context) ([]Dialog, error)
	ChatInfo(ctx context.Context, ref domain.ChatRef) (Dialog, error)
	History(ctx context.Context, chatID int64) Cursor
	// Download fetches a media attachment into destDir and returns the
	// local path of the staged file.
	Download(ctx context.Context, media Media, destDir string) (string, error)
	SendText(ctx context.Context, ref domain.ChatRef, text string) error
	Close() error
}
