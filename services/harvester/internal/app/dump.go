package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatvault/pkg/domain"
	"chatvault/pkg/harvest"
)

// dumpCheckpoint is how many recorded messages pass between durable progress
// writes and cancellation checks.
const dumpCheckpoint = 50

// DumpRequest describes one text-history dump task.
type DumpRequest struct {
	SessionID int64      `json:"sessionId"`
	Chats     []string   `json:"chats"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	MaxItems  int        `json:"maxItems,omitempty"`
	// TargetDate labels the run for the daily idempotency check. Zero means
	// the run is on-demand and not counted by the auto-dump scheduler.
	TargetDate time.Time `json:"targetDate,omitempty"`
}

func (r DumpRequest) filter() domain.ScanFilter {
	f := domain.ScanFilter{MaxItems: r.MaxItems}
	if r.Start != nil {
		f.StartBound = *r.Start
	}
	if r.End != nil {
		f.EndBound = *r.End
	}
	return f
}

func (r DumpRequest) chatLabel() string {
	if len(r.Chats) == 0 || strings.TrimSpace(r.Chats[0]) == "" {
		return "all"
	}
	return strings.Join(r.Chats, ",")
}

// StartDump launches an asynchronous history dump and returns its task ID.
func (a *App) StartDump(req DumpRequest) (string, error) {
	run := &domain.DumpRun{
		SessionID:  req.SessionID,
		ChatLabel:  req.chatLabel(),
		Status:     domain.RunPending,
		TargetDate: req.TargetDate,
	}
	if err := a.store.CreateDumpRun(run); err != nil {
		return "", fmt.Errorf("create dump run: %w", err)
	}
	taskID, err := a.startTask("dump", func(ctx context.Context, taskID string) (map[string]any, error) {
		return a.runDump(ctx, taskID, run.ID, req)
	})
	if err != nil {
		return "", err
	}
	if err := a.store.SetDumpRunTask(run.ID, taskID); err != nil {
		slog.Warn("recording dump task id failed", "run", run.ID, "error", err)
	}
	return taskID, nil
}

func (a *App) runDump(ctx context.Context, taskID string, runID int64, req DumpRequest) (result map[string]any, err error) {
	defer func() {
		status := domain.RunCompleted
		errMsg := ""
		switch {
		case ctx.Err() != nil:
			status = domain.RunCancelled
		case err != nil:
			status = domain.RunFailed
			errMsg = err.Error()
		}
		if serr := a.store.SetDumpRunStatus(runID, status, errMsg); serr != nil {
			slog.Error("recording dump run status failed", "run", runID, "error", serr)
		}
	}()

	if serr := a.store.SetDumpRunStatus(runID, domain.RunRunning, ""); serr != nil {
		slog.Warn("marking dump run running failed", "run", runID, "error", serr)
	}

	a.report(ctx, taskID, "connect", 0, 0, "Connecting session...")
	client, err := a.registry.Acquire(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	targets, err := harvest.ResolveTargets(ctx, client, req.Chats)
	if err != nil {
		return nil, fmt.Errorf("resolve targets: %w", err)
	}

	filter := req.filter()
	total, failed := 0, 0
	for ti, target := range targets {
		a.report(ctx, taskID, "dump", ti, len(targets),
			fmt.Sprintf("Dumping %s (%d/%d)...", target.DisplayName, ti+1, len(targets)))

		_, err := harvest.ScanText(ctx, client.History(ctx, target.ChatID), filter, func(rec domain.TextRecord) error {
			if werr := a.store.RecordDumpedMessage(domain.DumpedRecord{
				SessionID:      req.SessionID,
				ChatID:         target.ChatID,
				ChatName:       target.DisplayName,
				MessageID:      rec.MessageID,
				SenderID:       rec.SenderID,
				SenderName:     rec.SenderName,
				SenderUsername: rec.SenderUsername,
				Content:        rec.Text,
				Category:       rec.Category,
				MessageDate:    rec.Timestamp,
			}); werr != nil {
				// A failed insert skips the message, not the chat.
				failed++
				slog.Warn("recording dumped message failed, skipping item",
					"chat", target.ChatID, "message", rec.MessageID, "error", werr)
				return nil
			}
			total++
			if total%dumpCheckpoint == 0 {
				if serr := a.store.SetDumpRunProgress(runID, total, 0); serr != nil {
					slog.Warn("dump run checkpoint failed", "run", runID, "error", serr)
				}
				a.report(ctx, taskID, "dump", ti, len(targets),
					fmt.Sprintf("Dumped %d messages...", total))
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("history dump failed, skipping chat", "chat", target.ChatID, "error", err)
		}
	}

	if serr := a.store.SetDumpRunProgress(runID, total, 100); serr != nil {
		slog.Warn("dump run final progress failed", "run", runID, "error", serr)
	}
	return map[string]any{"messages": total, "failed": failed, "chats": len(targets)}, nil
}
