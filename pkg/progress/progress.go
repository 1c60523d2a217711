package progress

import (
	"context"

	"chatvault/pkg/domain"
)

// Task states. Pending and Running are transient; the rest are terminal and
// retained for later polling.
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// Status is the pollable view of one task.
type Status struct {
	ID       string              `json:"id"`
	State    string              `json:"state"`
	Progress domain.TaskProgress `json:"progress"`
	Result   map[string]any      `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Store holds the latest status per task identifier.
type Store interface {
	SetPending(ctx context.Context, taskID string) error
	// Report overwrites the running-state progress tuple. It must stay cheap;
	// the scanning loop calls it inline.
	Report(ctx context.Context, taskID string, p domain.TaskProgress) error
	SetCompleted(ctx context.Context, taskID string, result map[string]any) error
	SetFailed(ctx context.Context, taskID, errMsg string, result map[string]any) error
	SetCancelled(ctx context.Context, taskID string) error
	Get(ctx context.Context, taskID string) (Status, bool, error)
}

// Percent computes floor(current/total*100). A zero or negative total yields
// zero instead of dividing by zero.
func Percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return current * 100 / total
}

// ShouldReport bounds reporting overhead: per item for small scans, every
// N-th item (and the final one) for large ones.
func ShouldReport(index, total int) bool {
	if total <= 100 {
		return true
	}
	step := total / 100
	return index%step == 0 || index == total
}
