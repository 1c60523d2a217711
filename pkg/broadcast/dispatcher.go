package broadcast

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"chatvault/pkg/chat"
	"chatvault/pkg/domain"
)

// Dispatcher sends one message to a list of targets sequentially, pausing a
// randomized interval between consecutive sends to avoid tripping remote
// flood limits. There is no pause after the final send.
type Dispatcher struct {
	DelayMin time.Duration
	DelayMax time.Duration
	// Sleep is swappable in tests; nil means time.Sleep via context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Send delivers text to every target in order. Per-target failures are
// counted, logged and skipped; they never abort the run. report, when
// non-nil, is called after each attempt with the 1-based position.
func (d *Dispatcher) Send(ctx context.Context, client chat.Client, targets []string, text string, report func(done, total int)) (domain.BroadcastResult, error) {
	res := domain.BroadcastResult{Total: len(targets)}
	for i, raw := range targets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ref := domain.ParseChatRef(raw)
		if err := client.SendText(ctx, ref, text); err != nil {
			res.Failed++
			slog.Warn("broadcast send failed", "chat", raw, "error", err)
		} else {
			res.Sent++
		}
		if report != nil {
			report(i+1, len(targets))
		}
		if i < len(targets)-1 {
			if err := d.wait(ctx, d.delay()); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (d *Dispatcher) delay() time.Duration {
	if d.DelayMax <= d.DelayMin {
		return d.DelayMin
	}
	return d.DelayMin + time.Duration(rand.Int63n(int64(d.DelayMax-d.DelayMin)+1))
}

func (d *Dispatcher) wait(ctx context.Context, delay time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, delay)
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
