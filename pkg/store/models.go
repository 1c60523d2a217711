package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type SessionModel struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Active    bool   `gorm:"not null;index"`
	Workdir   string
	CreatedAt time.Time `gorm:"not null"`
}

type StoredFileModel struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	SessionID  int64 `gorm:"not null;index"`
	ChatID     int64 `gorm:"not null;index"`
	ChatName   string
	MessageID  int64
	FileName   string `gorm:"not null"`
	StorageKey string `gorm:"uniqueIndex;not null"`
	Category   string
	SizeBytes  int64     `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

type DumpedMessageModel struct {
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	SessionID      int64 `gorm:"not null;uniqueIndex:uq_dumped_msg;index"`
	ChatID         int64 `gorm:"not null;uniqueIndex:uq_dumped_msg;index"`
	MessageID      int64 `gorm:"not null;uniqueIndex:uq_dumped_msg"`
	ChatName       string
	SenderID       int64
	SenderName     string
	SenderUsername string
	Content        string `gorm:"type:text"`
	Category       string
	MessageDate    time.Time `gorm:"not null;index"`
	CreatedAt      time.Time `gorm:"not null"`
}

type DumpRunModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	SessionID    int64     `gorm:"not null;index"`
	ChatLabel    string    `gorm:"not null"`
	TaskID       string    `gorm:"index"`
	Status       string    `gorm:"not null"`
	TargetDate   time.Time `gorm:"not null;index"`
	MessageCount int
	Progress     int
	ErrorMessage string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null"`
}

type SummaryLogModel struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	SessionID    int64 `gorm:"not null;index"`
	ChatLabels   string
	Content      string `gorm:"type:text;not null"`
	MessageCount int
	StartTime    time.Time
	EndTime      time.Time
	CreatedAt    time.Time `gorm:"not null"`
}

type MessageLogModel struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	SessionID  int64 `gorm:"not null;uniqueIndex:uq_feed_msg;index"`
	ChatID     int64 `gorm:"not null;uniqueIndex:uq_feed_msg;index"`
	MessageID  int64 `gorm:"not null;uniqueIndex:uq_feed_msg"`
	ChatName   string
	SenderID   int64
	SenderName string
	Content    string `gorm:"type:text"`
	Category   string
	Attrs      datatypes.JSON `gorm:"type:jsonb"`
	Timestamp  time.Time      `gorm:"not null;index"`
	CreatedAt  time.Time      `gorm:"not null"`
}
