package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chatvault/pkg/domain"
)

// SummaryRequest describes one synchronous summarization call.
type SummaryRequest struct {
	SessionID int64      `json:"sessionId"`
	ChatIDs   []int64    `json:"chatIds"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	// Hours is a convenience window ending now, used when Start/End are absent.
	Hours int `json:"hours,omitempty"`
}

// Summarize generates and persists a summary over previously dumped messages.
func (a *App) Summarize(ctx context.Context, req SummaryRequest) (domain.SummaryLog, error) {
	start, end := req.window(time.Now())
	labels := make([]string, 0, len(req.ChatIDs))
	for _, id := range req.ChatIDs {
		labels = append(labels, strconv.FormatInt(id, 10))
	}
	label := strings.Join(labels, ",")
	if label == "" {
		label = "all"
	}
	log, err := a.summarizer.Summarize(ctx, req.SessionID, req.ChatIDs, label, start, end)
	if err != nil {
		return domain.SummaryLog{}, fmt.Errorf("summarize session %d: %w", req.SessionID, err)
	}
	return log, nil
}

func (r SummaryRequest) window(now time.Time) (time.Time, time.Time) {
	if r.Start != nil || r.End != nil {
		var start, end time.Time
		if r.Start != nil {
			start = *r.Start
		}
		if r.End != nil {
			end = *r.End
		}
		return start, end
	}
	hours := r.Hours
	if hours <= 0 {
		hours = 24
	}
	return now.Add(-time.Duration(hours) * time.Hour), now
}
