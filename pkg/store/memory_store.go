package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"chatvault/pkg/domain"
)

// MemoryStore is an in-memory Store used in tests and local development.
// It honors the same conflict semantics as the Postgres store.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	files     map[string]domain.StoredFile // storage key -> row
	dumped    map[string]domain.DumpedRecord
	feed      map[string]domain.MessageLog
	runs      map[int64]*domain.DumpRun
	sessions  map[int64]domain.Session
	summaries []domain.SummaryLog
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:    make(map[string]domain.StoredFile),
		dumped:   make(map[string]domain.DumpedRecord),
		feed:     make(map[string]domain.MessageLog),
		runs:     make(map[int64]*domain.DumpRun),
		sessions: make(map[int64]domain.Session),
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func msgKey(sessionID, chatID, messageID int64) string {
	return fmt.Sprintf("%d/%d/%d", sessionID, chatID, messageID)
}

func (s *MemoryStore) RecordStoredFile(f domain.StoredFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.files[f.StorageKey]; exists {
		return nil
	}
	f.ID = s.id()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	s.files[f.StorageKey] = f
	return nil
}

func (s *MemoryStore) RecordDumpedMessage(r domain.DumpedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := msgKey(r.SessionID, r.ChatID, r.MessageID)
	if _, exists := s.dumped[key]; exists {
		return nil
	}
	r.ID = s.id()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.dumped[key] = r
	return nil
}

func (s *MemoryStore) RecordFeedMessage(m domain.MessageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := msgKey(m.SessionID, m.ChatID, m.MessageID)
	if _, exists := s.feed[key]; exists {
		return nil
	}
	m.ID = s.id()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.feed[key] = m
	return nil
}

func (s *MemoryStore) ListDumpedMessages(sessionID int64, chatIDs []int64, start, end time.Time, limit int) ([]domain.DumpedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wantChat := make(map[int64]bool, len(chatIDs))
	for _, id := range chatIDs {
		wantChat[id] = true
	}
	var out []domain.DumpedRecord
	for _, r := range s.dumped {
		if r.SessionID != sessionID {
			continue
		}
		if len(wantChat) > 0 && !wantChat[r.ChatID] {
			continue
		}
		if !start.IsZero() && r.MessageDate.Before(start) {
			continue
		}
		if !end.IsZero() && r.MessageDate.After(end) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageDate.Before(out[j].MessageDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CreateDumpRun(run *domain.DumpRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = s.id()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *MemoryStore) SetDumpRunTask(id int64, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("dump run %d not found", id)
	}
	run.TaskID = taskID
	return nil
}

func (s *MemoryStore) SetDumpRunProgress(id int64, messageCount, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("dump run %d not found", id)
	}
	run.MessageCount = messageCount
	run.Progress = percent
	return nil
}

func (s *MemoryStore) SetDumpRunStatus(id int64, status domain.RunStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("dump run %d not found", id)
	}
	run.Status = status
	run.ErrorMessage = errMsg
	return nil
}

func (s *MemoryStore) HasCompletedDumpRun(sessionID int64, start, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.runs {
		if run.SessionID != sessionID || run.Status != domain.RunCompleted {
			continue
		}
		if run.TargetDate.Before(start) || run.TargetDate.After(end) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (s *MemoryStore) ListActiveSessions() ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Session
	for _, sess := range s.sessions {
		if sess.Active {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetSession(id int64) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok, nil
}

// PutSession registers a session, used by tests to seed state.
func (s *MemoryStore) PutSession(sess domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *MemoryStore) SaveSummary(sum *domain.SummaryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum.ID = s.id()
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}
	s.summaries = append(s.summaries, *sum)
	return nil
}

// StoredFileCount reports the number of stored-file rows.
func (s *MemoryStore) StoredFileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// DumpedMessageCount reports the number of dumped-message rows.
func (s *MemoryStore) DumpedMessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dumped)
}

// DumpRun returns a copy of a run by ID.
func (s *MemoryStore) DumpRun(id int64) (domain.DumpRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.DumpRun{}, false
	}
	return *run, true
}

// Summaries returns all saved summaries.
func (s *MemoryStore) Summaries() []domain.SummaryLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SummaryLog(nil), s.summaries...)
}
