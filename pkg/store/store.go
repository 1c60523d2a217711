package store

import (
	"time"

	"chatvault/pkg/domain"
)

// Store is the relational persistence surface of the harvester. All record
// writes use insert-on-conflict-do-nothing semantics on their natural keys,
// which makes the harvesting pipeline idempotent under retries and re-runs
// over overlapping windows.
type Store interface {
	// RecordStoredFile inserts a stored-file row. A duplicate storage key is
	// a no-op, not an error.
	RecordStoredFile(f domain.StoredFile) error
	// RecordDumpedMessage inserts a dumped message. A duplicate
	// (session, chat, message) triple is a no-op.
	RecordDumpedMessage(r domain.DumpedRecord) error
	// RecordFeedMessage inserts a live-feed message with the same dedup
	// contract as dumped messages.
	RecordFeedMessage(m domain.MessageLog) error

	ListDumpedMessages(sessionID int64, chatIDs []int64, start, end time.Time, limit int) ([]domain.DumpedRecord, error)

	CreateDumpRun(run *domain.DumpRun) error
	SetDumpRunTask(id int64, taskID string) error
	SetDumpRunProgress(id int64, messageCount, percent int) error
	SetDumpRunStatus(id int64, status domain.RunStatus, errMsg string) error
	// HasCompletedDumpRun reports whether a completed run exists for the
	// session with target_date inside [start, end].
	HasCompletedDumpRun(sessionID int64, start, end time.Time) (bool, error)

	ListActiveSessions() ([]domain.Session, error)
	GetSession(id int64) (domain.Session, bool, error)

	SaveSummary(s *domain.SummaryLog) error
}
