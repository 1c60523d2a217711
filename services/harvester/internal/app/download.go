package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"chatvault/pkg/domain"
	"chatvault/pkg/harvest"
)

// DownloadRequest describes one media-harvest task.
type DownloadRequest struct {
	SessionID     int64      `json:"sessionId"`
	Chats         []string   `json:"chats"`
	Categories    []string   `json:"categories"`
	Start         *time.Time `json:"start,omitempty"`
	End           *time.Time `json:"end,omitempty"`
	MaxItems      int        `json:"maxItems,omitempty"`
	ExportLocally bool       `json:"exportLocally,omitempty"`
}

func (r DownloadRequest) filter() domain.ScanFilter {
	f := domain.ScanFilter{
		Categories: make(map[domain.MediaCategory]bool, len(r.Categories)),
		MaxItems:   r.MaxItems,
	}
	for _, c := range r.Categories {
		f.Categories[domain.MediaCategory(c)] = true
	}
	if r.Start != nil {
		f.StartBound = *r.Start
	}
	if r.End != nil {
		f.EndBound = *r.End
	}
	return f
}

// StartDownload launches an asynchronous media harvest and returns its task ID.
func (a *App) StartDownload(req DownloadRequest) (string, error) {
	if len(req.Categories) == 0 {
		return "", fmt.Errorf("at least one category is required")
	}
	return a.startTask("download", func(ctx context.Context, taskID string) (map[string]any, error) {
		return a.runDownload(ctx, taskID, req)
	})
}

func (a *App) runDownload(ctx context.Context, taskID string, req DownloadRequest) (map[string]any, error) {
	a.report(ctx, taskID, "connect", 0, 0, "Connecting session...")
	client, err := a.registry.Acquire(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	targets, err := harvest.ResolveTargets(ctx, client, req.Chats)
	if err != nil {
		return nil, fmt.Errorf("resolve targets: %w", err)
	}

	// Each task stages into its own directory; concurrent tasks can hit the
	// same basename and must not clobber each other's files.
	staging := filepath.Join(a.stagingDir, taskID)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			slog.Warn("failed to remove staging dir", "path", staging, "error", err)
		}
	}()

	tx := &harvest.Transactor{
		Objects:    a.objects,
		Store:      a.store,
		StagingDir: staging,
		ExportRoot: a.exportRoot,
	}
	filter := req.filter()

	var downloaded, failed, scanned int
	for ti, target := range targets {
		a.report(ctx, taskID, "scan", ti, len(targets),
			fmt.Sprintf("Scanning %s (%d/%d)...", target.DisplayName, ti+1, len(targets)))

		var matched []domain.MatchedItem
		stats, err := harvest.ScanMedia(ctx, client.History(ctx, target.ChatID), filter, func(it domain.MatchedItem) error {
			matched = append(matched, it)
			return nil
		})
		scanned += stats.Scanned
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// One broken chat must not sink the whole run.
			slog.Warn("history scan failed, skipping chat", "chat", target.ChatID, "error", err)
			continue
		}

		for i, item := range matched {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := tx.Transfer(ctx, client, req.SessionID, target, item, req.ExportLocally); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				failed++
				slog.Warn("transfer failed, skipping item", "chat", target.ChatID, "message", item.MessageID, "error", err)
			} else {
				downloaded++
			}
			if a.shouldTick(i+1, len(matched)) {
				a.report(ctx, taskID, "download", i+1, len(matched),
					fmt.Sprintf("Downloading file %d of %d from %s...", i+1, len(matched), target.DisplayName))
			}
		}
	}

	return map[string]any{
		"downloaded": downloaded,
		"failed":     failed,
		"scanned":    scanned,
		"chats":      len(targets),
	}, nil
}
