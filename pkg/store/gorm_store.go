package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"chatvault/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&SessionModel{},
		&StoredFileModel{},
		&DumpedMessageModel{},
		&DumpRunModel{},
		&SummaryLogModel{},
		&MessageLogModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// RecordStoredFile inserts a stored-file row; a duplicate storage key is a no-op.
func (s *GormStore) RecordStoredFile(f domain.StoredFile) error {
	model := storedFileToModel(f)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoNothing: true,
	}).Create(&model).Error
}

// RecordDumpedMessage inserts a dumped message; a duplicate triple is a no-op.
func (s *GormStore) RecordDumpedMessage(r domain.DumpedRecord) error {
	model := dumpedMessageToModel(r)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "chat_id"}, {Name: "message_id"}},
		DoNothing: true,
	}).Create(&model).Error
}

// RecordFeedMessage inserts a live-feed message; a duplicate triple is a no-op.
func (s *GormStore) RecordFeedMessage(m domain.MessageLog) error {
	attrs, _ := json.Marshal(m.Attrs)
	model := MessageLogModel{
		SessionID:  m.SessionID,
		ChatID:     m.ChatID,
		MessageID:  m.MessageID,
		ChatName:   m.ChatName,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Category:   string(m.Category),
		Attrs:      datatypes.JSON(attrs),
		Timestamp:  m.Timestamp.UTC(),
		CreatedAt:  createdAt(m.CreatedAt),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "chat_id"}, {Name: "message_id"}},
		DoNothing: true,
	}).Create(&model).Error
}

// ListDumpedMessages returns dumped messages in chronological order.
func (s *GormStore) ListDumpedMessages(sessionID int64, chatIDs []int64, start, end time.Time, limit int) ([]domain.DumpedRecord, error) {
	tx := s.db.Where("session_id = ?", sessionID)
	if len(chatIDs) > 0 {
		tx = tx.Where("chat_id IN ?", chatIDs)
	}
	if !start.IsZero() {
		tx = tx.Where("message_date >= ?", start.UTC())
	}
	if !end.IsZero() {
		tx = tx.Where("message_date <= ?", end.UTC())
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var models []DumpedMessageModel
	if err := tx.Order("message_date ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]domain.DumpedRecord, 0, len(models))
	for _, m := range models {
		records = append(records, dumpedMessageFromModel(m))
	}
	return records, nil
}

// CreateDumpRun inserts a run record and fills in its generated ID.
func (s *GormStore) CreateDumpRun(run *domain.DumpRun) error {
	model := DumpRunModel{
		SessionID:  run.SessionID,
		ChatLabel:  run.ChatLabel,
		TaskID:     run.TaskID,
		Status:     string(run.Status),
		TargetDate: run.TargetDate.UTC(),
		CreatedAt:  createdAt(run.CreatedAt),
	}
	if err := s.db.Create(&model).Error; err != nil {
		return err
	}
	run.ID = model.ID
	run.CreatedAt = model.CreatedAt
	return nil
}

// SetDumpRunTask stores the task identifier on the run.
func (s *GormStore) SetDumpRunTask(id int64, taskID string) error {
	return s.db.Model(&DumpRunModel{}).Where("id = ?", id).
		Update("task_id", taskID).Error
}

// SetDumpRunProgress updates the run's checkpoint counters.
func (s *GormStore) SetDumpRunProgress(id int64, messageCount, percent int) error {
	return s.db.Model(&DumpRunModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"message_count": messageCount,
			"progress":      percent,
		}).Error
}

// SetDumpRunStatus transitions the run to a new status.
func (s *GormStore) SetDumpRunStatus(id int64, status domain.RunStatus, errMsg string) error {
	return s.db.Model(&DumpRunModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":        string(status),
			"error_message": errMsg,
		}).Error
}

// HasCompletedDumpRun checks for a completed run inside [start, end].
func (s *GormStore) HasCompletedDumpRun(sessionID int64, start, end time.Time) (bool, error) {
	var count int64
	err := s.db.Model(&DumpRunModel{}).
		Where("session_id = ? AND status = ? AND target_date BETWEEN ? AND ?",
			sessionID, string(domain.RunCompleted), start.UTC(), end.UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListActiveSessions returns sessions flagged active, oldest first.
func (s *GormStore) ListActiveSessions() ([]domain.Session, error) {
	var models []SessionModel
	if err := s.db.Where("active = ?", true).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	sessions := make([]domain.Session, 0, len(models))
	for _, m := range models {
		sessions = append(sessions, sessionFromModel(m))
	}
	return sessions, nil
}

// GetSession returns a session by ID.
func (s *GormStore) GetSession(id int64) (domain.Session, bool, error) {
	var model SessionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	return sessionFromModel(model), true, nil
}

// SaveSummary inserts a summary record and fills in its generated ID.
func (s *GormStore) SaveSummary(sum *domain.SummaryLog) error {
	model := SummaryLogModel{
		SessionID:    sum.SessionID,
		ChatLabels:   sum.ChatLabels,
		Content:      sum.Content,
		MessageCount: sum.MessageCount,
		StartTime:    sum.StartTime.UTC(),
		EndTime:      sum.EndTime.UTC(),
		CreatedAt:    createdAt(sum.CreatedAt),
	}
	if err := s.db.Create(&model).Error; err != nil {
		return err
	}
	sum.ID = model.ID
	return nil
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func storedFileToModel(f domain.StoredFile) StoredFileModel {
	return StoredFileModel{
		SessionID:  f.SessionID,
		ChatID:     f.ChatID,
		ChatName:   f.ChatName,
		MessageID:  f.MessageID,
		FileName:   f.FileName,
		StorageKey: f.StorageKey,
		Category:   string(f.Category),
		SizeBytes:  f.SizeBytes,
		CreatedAt:  createdAt(f.CreatedAt),
	}
}

func dumpedMessageToModel(r domain.DumpedRecord) DumpedMessageModel {
	return DumpedMessageModel{
		SessionID:      r.SessionID,
		ChatID:         r.ChatID,
		MessageID:      r.MessageID,
		ChatName:       r.ChatName,
		SenderID:       r.SenderID,
		SenderName:     r.SenderName,
		SenderUsername: r.SenderUsername,
		Content:        r.Content,
		Category:       string(r.Category),
		MessageDate:    r.MessageDate.UTC(),
		CreatedAt:      createdAt(r.CreatedAt),
	}
}

func dumpedMessageFromModel(m DumpedMessageModel) domain.DumpedRecord {
	return domain.DumpedRecord{
		ID:             m.ID,
		SessionID:      m.SessionID,
		ChatID:         m.ChatID,
		ChatName:       m.ChatName,
		MessageID:      m.MessageID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		SenderUsername: m.SenderUsername,
		Content:        m.Content,
		Category:       domain.MediaCategory(m.Category),
		MessageDate:    m.MessageDate,
		CreatedAt:      m.CreatedAt,
	}
}

func sessionFromModel(m SessionModel) domain.Session {
	return domain.Session{
		ID:        m.ID,
		Name:      m.Name,
		Active:    m.Active,
		Workdir:   m.Workdir,
		CreatedAt: m.CreatedAt,
	}
}
