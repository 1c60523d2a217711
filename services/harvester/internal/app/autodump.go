package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// StartAutoDump registers the daily auto-dump job and starts the scheduler.
// The returned cron can be stopped on shutdown.
func (a *App) StartAutoDump(schedule string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		started, err := a.RunAutoDump(context.Background())
		if err != nil {
			slog.Error("auto-dump sweep failed", "error", err)
			return
		}
		slog.Info("auto-dump sweep finished", "started", started)
	}); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

// RunAutoDump submits a full-history dump for today's window for every active
// session that does not yet have a completed run for today. Re-invoking it on
// the same day starts no additional tasks: at most one completed auto-dump
// per session per calendar day.
func (a *App) RunAutoDump(ctx context.Context) (int, error) {
	sessions, err := a.store.ListActiveSessions()
	if err != nil {
		return 0, err
	}
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())

	started := 0
	for _, sess := range sessions {
		if err := ctx.Err(); err != nil {
			return started, err
		}
		done, err := a.store.HasCompletedDumpRun(sess.ID, dayStart, dayEnd)
		if err != nil {
			slog.Error("auto-dump idempotency check failed", "session", sess.ID, "error", err)
			continue
		}
		if done {
			slog.Debug("auto-dump already completed today", "session", sess.ID)
			continue
		}
		taskID, err := a.StartDump(DumpRequest{
			SessionID:  sess.ID,
			Start:      &dayStart,
			End:        &dayEnd,
			TargetDate: dayStart,
		})
		if err != nil {
			slog.Error("auto-dump submit failed", "session", sess.ID, "error", err)
			continue
		}
		slog.Info("auto-dump submitted", "session", sess.ID, "task", taskID)
		started++
	}
	return started, nil
}
