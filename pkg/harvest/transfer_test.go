package harvest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chatvault/pkg/chat"
	"chatvault/pkg/domain"
	"chatvault/pkg/store"
)

type fakeDownloader struct {
	chat.Client
	fail bool
}

func (f *fakeDownloader) Download(ctx context.Context, media chat.Media, destDir string) (string, error) {
	if f.fail {
		return "", errors.New("flood wait")
	}
	path := filepath.Join(destDir, media.FileName)
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeObjects struct {
	keys    []string
	mimes   []string
	failPut bool
}

func (f *fakeObjects) PutFile(ctx context.Context, key, path, contentType string) (int64, error) {
	if f.failPut {
		return 0, errors.New("bucket unavailable")
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	f.keys = append(f.keys, key)
	f.mimes = append(f.mimes, contentType)
	return info.Size(), nil
}

func (f *fakeObjects) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://example.invalid/" + key, nil
}

func (f *fakeObjects) Delete(ctx context.Context, key string) error        { return nil }
func (f *fakeObjects) DeleteMany(ctx context.Context, keys []string) error { return nil }

func testItem() domain.MatchedItem {
	return domain.MatchedItem{
		MessageID: 101,
		ChatID:    55,
		Category:  domain.CategoryPhoto,
		FileName:  "photo_101.jpg",
		MimeType:  "image/jpeg",
		MediaRef:  "ref-101",
	}
}

func TestTransferEndToEnd(t *testing.T) {
	staging := t.TempDir()
	export := t.TempDir()
	objects := &fakeObjects{}
	mem := store.NewMemoryStore()
	tx := &Transactor{Objects: objects, Store: mem, StagingDir: staging, ExportRoot: export}
	target := domain.HarvestTarget{ChatID: 55, DisplayName: "Dev Chat", Username: "devchat"}

	if err := tx.Transfer(context.Background(), &fakeDownloader{}, 3, target, testItem(), true); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if len(objects.keys) != 1 || objects.keys[0] != "3/devchat/photo_101.jpg" {
		t.Fatalf("uploaded keys = %v, want [3/devchat/photo_101.jpg]", objects.keys)
	}
	if objects.mimes[0] != "image/jpeg" {
		t.Fatalf("uploaded mime = %q, want image/jpeg", objects.mimes[0])
	}
	if mem.StoredFileCount() != 1 {
		t.Fatalf("stored rows = %d, want 1", mem.StoredFileCount())
	}
	if _, err := os.Stat(filepath.Join(export, "devchat", "photo_101.jpg")); err != nil {
		t.Fatalf("export copy missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(staging, "photo_101.jpg")); !os.IsNotExist(err) {
		t.Fatalf("staging file not cleaned up: %v", err)
	}
}

func TestTransferIdempotent(t *testing.T) {
	staging := t.TempDir()
	mem := store.NewMemoryStore()
	tx := &Transactor{Objects: &fakeObjects{}, Store: mem, StagingDir: staging}
	target := domain.HarvestTarget{ChatID: 55, DisplayName: "Dev Chat", Username: "devchat"}

	for i := 0; i < 3; i++ {
		if err := tx.Transfer(context.Background(), &fakeDownloader{}, 3, target, testItem(), false); err != nil {
			t.Fatalf("Transfer #%d: %v", i, err)
		}
	}
	if mem.StoredFileCount() != 1 {
		t.Fatalf("stored rows = %d after re-runs, want 1", mem.StoredFileCount())
	}
}

func TestTransferCleansStagingOnUploadFailure(t *testing.T) {
	staging := t.TempDir()
	tx := &Transactor{Objects: &fakeObjects{failPut: true}, Store: store.NewMemoryStore(), StagingDir: staging}
	target := domain.HarvestTarget{ChatID: 55, Username: "devchat"}

	if err := tx.Transfer(context.Background(), &fakeDownloader{}, 3, target, testItem(), false); err == nil {
		t.Fatalf("Transfer succeeded, want upload error")
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging dir has %d leftover entries, want 0", len(entries))
	}
}

func TestFolderName(t *testing.T) {
	withUser := domain.HarvestTarget{Username: "alice", DisplayName: "Alice W"}
	if got := FolderName(7, withUser); got != "alice" {
		t.Fatalf("FolderName = %q, want alice", got)
	}
	noUser := domain.HarvestTarget{DisplayName: "My Chat / 2026"}
	if got := FolderName(7, noUser); got != "7_My_Chat___2026" {
		t.Fatalf("FolderName = %q, want 7_My_Chat___2026", got)
	}
}
