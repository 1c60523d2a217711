package store

import (
	"testing"
	"time"

	"chatvault/pkg/domain"
)

func TestRecordStoredFileIdempotent(t *testing.T) {
	s := NewMemoryStore()
	f := domain.StoredFile{
		SessionID:  1,
		ChatID:     -100200,
		MessageID:  55,
		FileName:   "photo_55.jpg",
		StorageKey: "1/newsroom/photo_55.jpg",
		Category:   domain.CategoryPhoto,
		SizeBytes:  2048,
	}
	for i := 0; i < 3; i++ {
		if err := s.RecordStoredFile(f); err != nil {
			t.Fatalf("RecordStoredFile #%d: %v", i, err)
		}
	}
	if got := s.StoredFileCount(); got != 1 {
		t.Fatalf("stored file count = %d, want 1", got)
	}
}

func TestRecordDumpedMessageIdempotent(t *testing.T) {
	s := NewMemoryStore()
	r := domain.DumpedRecord{
		SessionID:   1,
		ChatID:      -100200,
		MessageID:   99,
		SenderName:  "alice",
		Content:     "hello",
		MessageDate: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	for i := 0; i < 2; i++ {
		if err := s.RecordDumpedMessage(r); err != nil {
			t.Fatalf("RecordDumpedMessage #%d: %v", i, err)
		}
	}
	// Same message ID in a different chat is a distinct row.
	r.ChatID = -100300
	if err := s.RecordDumpedMessage(r); err != nil {
		t.Fatalf("RecordDumpedMessage other chat: %v", err)
	}
	if got := s.DumpedMessageCount(); got != 2 {
		t.Fatalf("dumped message count = %d, want 2", got)
	}
}

func TestListDumpedMessagesWindowAndOrder(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := s.RecordDumpedMessage(domain.DumpedRecord{
			SessionID:   1,
			ChatID:      10,
			MessageID:   int64(100 - i), // insert newest first
			Content:     "m",
			MessageDate: base.Add(time.Duration(-i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := s.ListDumpedMessages(1, []int64{10}, base.Add(-3*time.Hour), base, 0)
	if err != nil {
		t.Fatalf("ListDumpedMessages: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].MessageDate.Before(got[i-1].MessageDate) {
			t.Fatalf("messages not in chronological order")
		}
	}
}

func TestHasCompletedDumpRunWindow(t *testing.T) {
	s := NewMemoryStore()
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	run := &domain.DumpRun{SessionID: 4, ChatLabel: "ALL", Status: domain.RunCompleted, TargetDate: day.Add(10 * time.Hour)}
	if err := s.CreateDumpRun(run); err != nil {
		t.Fatalf("CreateDumpRun: %v", err)
	}
	ok, err := s.HasCompletedDumpRun(4, day, day.Add(24*time.Hour-time.Second))
	if err != nil || !ok {
		t.Fatalf("HasCompletedDumpRun = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.HasCompletedDumpRun(4, day.Add(24*time.Hour), day.Add(48*time.Hour))
	if err != nil || ok {
		t.Fatalf("HasCompletedDumpRun next day = %v, %v; want false, nil", ok, err)
	}
}
