package harvest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"chatvault/pkg/chat"
	"chatvault/pkg/domain"
	"chatvault/pkg/storage"
	"chatvault/pkg/store"
)

// Transactor moves one matched item end to end: download into the staging
// directory, upload to the object store, record the durable row, optionally
// copy into the local export tree. The staging copy is always removed, even
// on a partial failure.
type Transactor struct {
	Objects    storage.ObjectStore
	Store      store.Store
	StagingDir string
	// ExportRoot, when non-empty, receives a local copy of every transferred
	// file under a per-chat folder.
	ExportRoot string
}

// Transfer processes one matched item for the given session and target.
// Failures are returned to the caller, which logs and moves on; a failed
// item never aborts the task.
func (t *Transactor) Transfer(ctx context.Context, client chat.Client, sessionID int64, target domain.HarvestTarget, item domain.MatchedItem, exportLocally bool) error {
	media := chat.Media{FileName: item.FileName, MimeType: item.MimeType, Ref: item.MediaRef}
	localPath, err := client.Download(ctx, media, t.StagingDir)
	if err != nil {
		return fmt.Errorf("download message %d: %w", item.MessageID, err)
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove staged file", "path", localPath, "error", err)
		}
	}()

	folder := FolderName(sessionID, target)
	key := fmt.Sprintf("%d/%s/%s", sessionID, folder, filepath.Base(localPath))
	size, err := t.Objects.PutFile(ctx, key, localPath, item.MimeType)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	if err := t.Store.RecordStoredFile(domain.StoredFile{
		SessionID:  sessionID,
		ChatID:     target.ChatID,
		ChatName:   target.DisplayName,
		MessageID:  item.MessageID,
		FileName:   item.FileName,
		StorageKey: key,
		Category:   item.Category,
		SizeBytes:  size,
	}); err != nil {
		return fmt.Errorf("record stored file %s: %w", key, err)
	}

	if exportLocally && t.ExportRoot != "" {
		dest := filepath.Join(t.ExportRoot, folder, filepath.Base(localPath))
		if err := copyFile(localPath, dest); err != nil {
			// The durable copy already exists; a local export failure is
			// not worth failing the item over.
			slog.Warn("local export copy failed", "dest", dest, "error", err)
		}
	}
	return nil
}

// FolderName derives the per-chat folder used in storage keys and local
// exports. Targets with a username use it directly; otherwise the display
// name is sanitized and prefixed with the session ID to keep folders unique
// across sessions.
func FolderName(sessionID int64, target domain.HarvestTarget) string {
	if target.Username != "" {
		return target.Username
	}
	return fmt.Sprintf("%d_%s", sessionID, sanitizeName(target.DisplayName))
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "chat"
	}
	return b.String()
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
