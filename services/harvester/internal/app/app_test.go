package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"chatvault/pkg/broadcast"
	"chatvault/pkg/chat"
	"chatvault/pkg/domain"
	"chatvault/pkg/progress"
	"chatvault/pkg/store"
)

type fakeClient struct {
	dialogs []chat.Dialog
	history map[int64][]chat.Message
	// blockDialogs makes Dialogs wait for cancellation, to exercise revoke.
	blockDialogs bool

	mu       sync.Mutex
	destDirs []string
}

func (f *fakeClient) Dialogs(ctx context.Context) ([]chat.Dialog, error) {
	if f.blockDialogs {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.dialogs, nil
}

func (f *fakeClient) ChatInfo(ctx context.Context, ref domain.ChatRef) (chat.Dialog, error) {
	for _, d := range f.dialogs {
		if ref.String() == d.Username || (ref.IsNumeric() && ref.Numeric == d.ChatID) {
			return d, nil
		}
	}
	return chat.Dialog{}, context.DeadlineExceeded
}

type fakeCursor struct {
	msgs []chat.Message
	pos  int
}

func (c *fakeCursor) Next(ctx context.Context) (chat.Message, bool, error) {
	if c.pos >= len(c.msgs) {
		return chat.Message{}, false, nil
	}
	m := c.msgs[c.pos]
	c.pos++
	return m, true, nil
}

func (f *fakeClient) History(ctx context.Context, chatID int64) chat.Cursor {
	return &fakeCursor{msgs: f.history[chatID]}
}

func (f *fakeClient) Download(ctx context.Context, media chat.Media, destDir string) (string, error) {
	f.mu.Lock()
	f.destDirs = append(f.destDirs, destDir)
	f.mu.Unlock()
	path := filepath.Join(destDir, media.FileName)
	return path, os.WriteFile(path, []byte("payload"), 0o644)
}

func (f *fakeClient) SendText(ctx context.Context, ref domain.ChatRef, text string) error {
	return nil
}

func (f *fakeClient) Close() error { return nil }

type fakeObjects struct{}

func (fakeObjects) PutFile(ctx context.Context, key, path, contentType string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (fakeObjects) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://example.invalid/" + key, nil
}

func (fakeObjects) Delete(ctx context.Context, key string) error        { return nil }
func (fakeObjects) DeleteMany(ctx context.Context, keys []string) error { return nil }

func newTestApp(t *testing.T, client *fakeClient) (*App, *store.MemoryStore, *progress.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	a, prog := newTestAppWith(t, client, mem)
	return a, mem, prog
}

func newTestAppWith(t *testing.T, client *fakeClient, st store.Store) (*App, *progress.MemoryStore) {
	t.Helper()
	prog := progress.NewMemoryStore()
	dialer := func(ctx context.Context, sessionID int64, workdir string) (chat.Client, error) {
		return client, nil
	}
	a := New(Config{
		Store:      st,
		Objects:    fakeObjects{},
		Progress:   prog,
		Registry:   chat.NewRegistry(dialer, t.TempDir()),
		Dispatcher: &broadcast.Dispatcher{Sleep: func(context.Context, time.Duration) error { return nil }},
		StagingDir: t.TempDir(),
	})
	return a, prog
}

func waitState(t *testing.T, prog *progress.MemoryStore, taskID, want string) progress.Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, ok, err := prog.Get(context.Background(), taskID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok && st.State == want {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	st, _, _ := prog.Get(context.Background(), taskID)
	t.Fatalf("task %s never reached %q, last status %+v", taskID, want, st)
	return progress.Status{}
}

func testMessages(ts time.Time) []chat.Message {
	return []chat.Message{
		{ID: 3, ChatID: 10, SenderName: "alice", Text: "photo time", Media: &chat.Media{Kind: chat.KindPhoto, Ref: "r3"}, Timestamp: ts},
		{ID: 2, ChatID: 10, SenderName: "bob", Text: "hi", Timestamp: ts.Add(-time.Minute)},
		{ID: 1, ChatID: 10, SenderName: "alice", Text: "hello", Timestamp: ts.Add(-2 * time.Minute)},
	}
}

func TestDownloadTaskLifecycle(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		dialogs: []chat.Dialog{{ChatID: 10, Title: "Dev Chat", Username: "devchat"}},
		history: map[int64][]chat.Message{10: testMessages(ts)},
	}
	a, mem, prog := newTestApp(t, client)

	taskID, err := a.StartDownload(DownloadRequest{SessionID: 1, Categories: []string{"photo"}})
	if err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	st := waitState(t, prog, taskID, progress.StateCompleted)
	if st.Result["downloaded"] != 1 {
		t.Fatalf("result = %v, want downloaded=1", st.Result)
	}
	if mem.StoredFileCount() != 1 {
		t.Fatalf("stored rows = %d, want 1", mem.StoredFileCount())
	}
}

func TestDownloadStagingIsolatedPerTask(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		dialogs: []chat.Dialog{{ChatID: 10, Title: "Dev Chat", Username: "devchat"}},
		history: map[int64][]chat.Message{10: testMessages(ts)},
	}
	a, _, prog := newTestApp(t, client)

	for i := 0; i < 2; i++ {
		taskID, err := a.StartDownload(DownloadRequest{SessionID: 1, Categories: []string{"photo"}})
		if err != nil {
			t.Fatalf("StartDownload: %v", err)
		}
		waitState(t, prog, taskID, progress.StateCompleted)
	}

	client.mu.Lock()
	dirs := append([]string(nil), client.destDirs...)
	client.mu.Unlock()
	if len(dirs) != 2 {
		t.Fatalf("downloads = %d, want 2", len(dirs))
	}
	if dirs[0] == dirs[1] {
		t.Fatalf("both tasks staged into %s, want one directory per task", dirs[0])
	}
	for _, dir := range dirs {
		if filepath.Dir(dir) != a.stagingDir {
			t.Fatalf("staging dir %s is not under root %s", dir, a.stagingDir)
		}
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Fatalf("staging dir %s not cleaned up after task end (stat err = %v)", dir, err)
		}
	}
}

func TestDownloadRequiresCategory(t *testing.T) {
	a, _, _ := newTestApp(t, &fakeClient{})
	if _, err := a.StartDownload(DownloadRequest{SessionID: 1}); err == nil {
		t.Fatalf("StartDownload accepted empty category set")
	}
}

func TestDumpTaskRecordsMessages(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		dialogs: []chat.Dialog{{ChatID: 10, Title: "Dev Chat", Username: "devchat"}},
		history: map[int64][]chat.Message{10: testMessages(ts)},
	}
	a, mem, prog := newTestApp(t, client)

	taskID, err := a.StartDump(DumpRequest{SessionID: 1})
	if err != nil {
		t.Fatalf("StartDump: %v", err)
	}
	st := waitState(t, prog, taskID, progress.StateCompleted)
	if st.Result["messages"] != 3 {
		t.Fatalf("result = %v, want messages=3", st.Result)
	}
	if mem.DumpedMessageCount() != 3 {
		t.Fatalf("dumped rows = %d, want 3", mem.DumpedMessageCount())
	}
	run, ok := mem.DumpRun(1)
	if !ok || run.Status != domain.RunCompleted {
		t.Fatalf("dump run = %+v, want completed", run)
	}
}

// rejectingStore fails inserts for one message ID, leaving the rest intact.
type rejectingStore struct {
	*store.MemoryStore
	rejectMessageID int64
}

func (s *rejectingStore) RecordDumpedMessage(r domain.DumpedRecord) error {
	if r.MessageID == s.rejectMessageID {
		return errors.New("insert rejected")
	}
	return s.MemoryStore.RecordDumpedMessage(r)
}

func TestDumpSkipsFailedWrites(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		dialogs: []chat.Dialog{{ChatID: 10, Title: "Dev Chat", Username: "devchat"}},
		history: map[int64][]chat.Message{10: testMessages(ts)},
	}
	mem := store.NewMemoryStore()
	a, prog := newTestAppWith(t, client, &rejectingStore{MemoryStore: mem, rejectMessageID: 3})

	taskID, err := a.StartDump(DumpRequest{SessionID: 1})
	if err != nil {
		t.Fatalf("StartDump: %v", err)
	}
	st := waitState(t, prog, taskID, progress.StateCompleted)
	if st.Result["messages"] != 2 || st.Result["failed"] != 1 {
		t.Fatalf("result = %v, want messages=2 failed=1", st.Result)
	}
	if mem.DumpedMessageCount() != 2 {
		t.Fatalf("dumped rows = %d, want 2", mem.DumpedMessageCount())
	}
	run, ok := mem.DumpRun(1)
	if !ok || run.Status != domain.RunCompleted {
		t.Fatalf("dump run = %+v, want completed", run)
	}
}

func TestCancelTask(t *testing.T) {
	a, _, prog := newTestApp(t, &fakeClient{blockDialogs: true})
	taskID, err := a.StartDump(DumpRequest{SessionID: 1})
	if err != nil {
		t.Fatalf("StartDump: %v", err)
	}
	a.CancelTask(taskID)
	waitState(t, prog, taskID, progress.StateCancelled)
	// Revoking again, or revoking a finished task, is a no-op.
	a.CancelTask(taskID)
	a.CancelTask("unknown")
}

func TestBroadcastTask(t *testing.T) {
	client := &fakeClient{}
	a, _, prog := newTestApp(t, client)
	taskID, err := a.StartBroadcast(BroadcastRequest{SessionID: 1, Chats: []string{"a", "b", "c"}, Text: "hi"})
	if err != nil {
		t.Fatalf("StartBroadcast: %v", err)
	}
	st := waitState(t, prog, taskID, progress.StateCompleted)
	if st.Result["sent"] != 3 || st.Result["failed"] != 0 {
		t.Fatalf("result = %v, want sent=3 failed=0", st.Result)
	}
}

func TestRunAutoDumpIdempotent(t *testing.T) {
	ts := time.Now()
	client := &fakeClient{
		dialogs: []chat.Dialog{{ChatID: 10, Title: "Dev Chat", Username: "devchat"}},
		history: map[int64][]chat.Message{10: testMessages(ts)},
	}
	a, mem, _ := newTestApp(t, client)
	mem.PutSession(domain.Session{ID: 1, Name: "main", Active: true})

	started, err := a.RunAutoDump(context.Background())
	if err != nil {
		t.Fatalf("RunAutoDump: %v", err)
	}
	if started != 1 {
		t.Fatalf("started = %d, want 1", started)
	}

	// Wait for the submitted run to finish, then sweep again: the completed
	// run for today must suppress any new task.
	deadline := time.Now().Add(5 * time.Second)
	for a.RunningTasks() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	run, ok := mem.DumpRun(1)
	if !ok || run.Status != domain.RunCompleted {
		t.Fatalf("dump run = %+v, want completed", run)
	}

	started, err = a.RunAutoDump(context.Background())
	if err != nil {
		t.Fatalf("RunAutoDump second sweep: %v", err)
	}
	if started != 0 {
		t.Fatalf("second sweep started %d tasks, want 0", started)
	}
}
