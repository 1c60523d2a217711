package harvest

import (
	"context"

	"chatvault/pkg/chat"
	"chatvault/pkg/domain"
)

// ScanStats summarizes one pass over a dialog's history.
type ScanStats struct {
	Scanned int
	Matched int
}

// ScanMedia walks a history cursor newest to oldest and calls fn for every
// media message the filter accepts. Messages newer than the end bound are
// skipped; the first message older than the start bound terminates the scan,
// since everything past it is older still. A non-nil error from fn aborts
// the scan.
func ScanMedia(ctx context.Context, cur chat.Cursor, filter domain.ScanFilter, fn func(domain.MatchedItem) error) (ScanStats, error) {
	var stats ScanStats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		msg, ok, err := cur.Next(ctx)
		if err != nil {
			return stats, err
		}
		if !ok {
			return stats, nil
		}
		stats.Scanned++
		if !filter.EndBound.IsZero() && msg.Timestamp.After(filter.EndBound) {
			continue
		}
		if !filter.StartBound.IsZero() && msg.Timestamp.Before(filter.StartBound) {
			return stats, nil
		}
		if msg.Media == nil {
			continue
		}
		c := Classify(msg)
		if !filter.Wants(c.Category) {
			continue
		}
		item := domain.MatchedItem{
			MessageID: msg.ID,
			ChatID:    msg.ChatID,
			Category:  c.Category,
			FileName:  c.FileName,
			MimeType:  c.MimeType,
			MediaRef:  msg.Media.Ref,
			Timestamp: msg.Timestamp,
		}
		if err := fn(item); err != nil {
			return stats, err
		}
		stats.Matched++
		if filter.MaxItems > 0 && stats.Matched >= filter.MaxItems {
			return stats, nil
		}
	}
}

// ScanText walks a history cursor newest to oldest and calls fn for every
// message inside the time window, media-bearing or not. Used by the dump
// pipeline; the window semantics match ScanMedia.
func ScanText(ctx context.Context, cur chat.Cursor, filter domain.ScanFilter, fn func(domain.TextRecord) error) (ScanStats, error) {
	var stats ScanStats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		msg, ok, err := cur.Next(ctx)
		if err != nil {
			return stats, err
		}
		if !ok {
			return stats, nil
		}
		stats.Scanned++
		if !filter.EndBound.IsZero() && msg.Timestamp.After(filter.EndBound) {
			continue
		}
		if !filter.StartBound.IsZero() && msg.Timestamp.Before(filter.StartBound) {
			return stats, nil
		}
		rec := domain.TextRecord{
			MessageID:      msg.ID,
			ChatID:         msg.ChatID,
			SenderID:       msg.SenderID,
			SenderName:     msg.SenderName,
			SenderUsername: msg.SenderUsername,
			Text:           msg.Text,
			Timestamp:      msg.Timestamp,
		}
		if msg.Media != nil {
			rec.Category = Classify(msg).Category
		}
		if err := fn(rec); err != nil {
			return stats, err
		}
		stats.Matched++
		if filter.MaxItems > 0 && stats.Matched >= filter.MaxItems {
			return stats, nil
		}
	}
}
