package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"chatvault/pkg/progress"
)

// taskFunc is the body of one asynchronous task. The returned map becomes
// the terminal result payload on success.
type taskFunc func(ctx context.Context, taskID string) (map[string]any, error)

// startTask registers a new task, marks it pending and runs fn in its own
// goroutine. The returned identifier is immediately pollable.
func (a *App) startTask(kind string, fn taskFunc) (string, error) {
	taskID := uuid.NewString()
	if err := a.progress.SetPending(context.Background(), taskID); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.tasksMu.Lock()
	a.cancels[taskID] = cancel
	a.tasksMu.Unlock()

	go func() {
		defer func() {
			cancel()
			a.tasksMu.Lock()
			delete(a.cancels, taskID)
			a.tasksMu.Unlock()
		}()

		slog.Info("task started", "kind", kind, "task", taskID)
		result, err := fn(ctx, taskID)
		// Terminal status writes use a fresh context: the task context is
		// already cancelled when the task was revoked.
		bg := context.Background()
		switch {
		case errors.Is(err, context.Canceled):
			slog.Info("task cancelled", "kind", kind, "task", taskID)
			if serr := a.progress.SetCancelled(bg, taskID); serr != nil {
				slog.Error("marking task cancelled failed", "task", taskID, "error", serr)
			}
		case err != nil:
			slog.Error("task failed", "kind", kind, "task", taskID, "error", err)
			if serr := a.progress.SetFailed(bg, taskID, err.Error(), result); serr != nil {
				slog.Error("marking task failed failed", "task", taskID, "error", serr)
			}
		default:
			slog.Info("task completed", "kind", kind, "task", taskID)
			if serr := a.progress.SetCompleted(bg, taskID, result); serr != nil {
				slog.Error("marking task completed failed", "task", taskID, "error", serr)
			}
		}
	}()
	return taskID, nil
}

// TaskStatus returns the latest pollable status for a task.
func (a *App) TaskStatus(ctx context.Context, taskID string) (progress.Status, bool, error) {
	return a.progress.Get(ctx, taskID)
}

// CancelTask requests cooperative cancellation. Cancelling an unknown or
// already-finished task is a no-op.
func (a *App) CancelTask(taskID string) {
	a.tasksMu.Lock()
	cancel, ok := a.cancels[taskID]
	a.tasksMu.Unlock()
	if ok {
		cancel()
	}
}

// RunningTasks reports how many tasks are currently in flight.
func (a *App) RunningTasks() int {
	a.tasksMu.Lock()
	defer a.tasksMu.Unlock()
	return len(a.cancels)
}
