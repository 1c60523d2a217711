package domain

import (
	"strconv"
	"strings"
	"time"
)

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

type MediaCategory string

const (
	CategoryPhoto    MediaCategory = "photo"
	CategoryVideo    MediaCategory = "video"
	CategoryAudio    MediaCategory = "audio"
	CategoryDocument MediaCategory = "document"
	CategoryArchive  MediaCategory = "archive"
	CategoryOther    MediaCategory = "other"
)

// ChatRef is a caller-supplied chat identifier: either a numeric chat ID or
// a handle (username / invite form). Exactly one side is set.
type ChatRef struct {
	Numeric int64
	Handle  string
}

// ParseChatRef coerces a raw identifier to its numeric form when it looks
// like a signed integer, otherwise keeps it as a handle.
func ParseChatRef(raw string) ChatRef {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ChatRef{Numeric: n}
	}
	return ChatRef{Handle: raw}
}

// IsNumeric reports whether the ref carries a numeric chat ID.
func (r ChatRef) IsNumeric() bool {
	return r.Handle == ""
}

func (r ChatRef) String() string {
	if r.IsNumeric() {
		return strconv.FormatInt(r.Numeric, 10)
	}
	return r.Handle
}

// HarvestTarget is a resolved chat, valid for one task invocation.
type HarvestTarget struct {
	Raw         string `json:"raw"`
	ChatID      int64  `json:"chatId"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username,omitempty"`
}

// ScanFilter bounds a history scan. Immutable per task run.
type ScanFilter struct {
	Categories map[MediaCategory]bool
	StartBound time.Time
	EndBound   time.Time
	MaxItems   int
}

// Wants reports whether the filter requests the category.
func (f ScanFilter) Wants(c MediaCategory) bool {
	return f.Categories[c]
}

// MatchedItem is a media message accepted by the scanner, consumed once by
// the transfer transactor.
type MatchedItem struct {
	MessageID int64
	ChatID    int64
	Category  MediaCategory
	FileName  string
	MimeType  string
	MediaRef  string
	Timestamp time.Time
}

// TextRecord is the lightweight descriptor produced by the dump scan variant.
type TextRecord struct {
	MessageID      int64
	ChatID         int64
	SenderID       int64
	SenderName     string
	SenderUsername string
	Text           string
	Category       MediaCategory
	Timestamp      time.Time
}

// StoredFile is the durable record of one harvested media file.
// StorageKey is globally unique; a duplicate write is a no-op.
type StoredFile struct {
	ID         int64         `json:"id"`
	SessionID  int64         `json:"sessionId"`
	ChatID     int64         `json:"chatId"`
	ChatName   string        `json:"chatName"`
	MessageID  int64         `json:"messageId"`
	FileName   string        `json:"fileName"`
	StorageKey string        `json:"storageKey"`
	Category   MediaCategory `json:"category"`
	SizeBytes  int64         `json:"sizeBytes"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// DumpedRecord is one harvested text message. (SessionID, ChatID, MessageID)
// is unique; re-dumping an overlapping range must not duplicate rows.
type DumpedRecord struct {
	ID             int64         `json:"id"`
	SessionID      int64         `json:"sessionId"`
	ChatID         int64         `json:"chatId"`
	ChatName       string        `json:"chatName"`
	MessageID      int64         `json:"messageId"`
	SenderID       int64         `json:"senderId,omitempty"`
	SenderName     string        `json:"senderName"`
	SenderUsername string        `json:"senderUsername,omitempty"`
	Content        string        `json:"content"`
	Category       MediaCategory `json:"category,omitempty"`
	MessageDate    time.Time     `json:"messageDate"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// TaskProgress is the latest reporting tick of a running task, overwritten
// on every update and retained after terminal transition for polling.
type TaskProgress struct {
	Phase   string `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

// DumpRun is the durable record of one dump task invocation.
type DumpRun struct {
	ID           int64     `json:"id"`
	SessionID    int64     `json:"sessionId"`
	ChatLabel    string    `json:"chatLabel"`
	TaskID       string    `json:"taskId"`
	Status       RunStatus `json:"status"`
	TargetDate   time.Time `json:"targetDate"`
	MessageCount int       `json:"messageCount"`
	Progress     int       `json:"progress"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BroadcastResult summarizes a finished broadcast run.
type BroadcastResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// SummaryLog records one generated summary.
type SummaryLog struct {
	ID           int64     `json:"id"`
	SessionID    int64     `json:"sessionId"`
	ChatLabels   string    `json:"chatLabels"`
	Content      string    `json:"content"`
	MessageCount int       `json:"messageCount"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is a remote chat account usable by the harvester. Credentials live
// with the auth layer; only what the pipeline needs is kept here.
type Session struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	Workdir   string    `json:"workdir"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageLog is one live-feed message persisted by the feed consumer.
type MessageLog struct {
	ID         int64         `json:"id"`
	SessionID  int64         `json:"sessionId"`
	ChatID     int64         `json:"chatId"`
	ChatName   string        `json:"chatName"`
	MessageID  int64         `json:"messageId"`
	SenderID   int64         `json:"senderId,omitempty"`
	SenderName string        `json:"senderName"`
	Content    string        `json:"content"`
	Category   MediaCategory `json:"category,omitempty"`
	// Attrs carries protocol-specific extras (media filename, mime, ...).
	Attrs     map[string]string `json:"attrs,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	CreatedAt time.Time         `json:"createdAt"`
}
