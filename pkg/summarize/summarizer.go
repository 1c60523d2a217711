package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatvault/pkg/ai"
	"chatvault/pkg/domain"
	"chatvault/pkg/store"
)

const systemPrompt = "You summarize chat history. Produce a concise digest of the " +
	"important updates, decisions, errors, announcements and action items. " +
	"Keep the original language of the messages."

// Summarizer produces an LLM summary over previously dumped messages.
type Summarizer struct {
	Store      store.Store
	Generator  ai.TextGenerator
	Compressor *Compressor
	// MaxMessages caps how many dumped rows are fetched per request.
	MaxMessages int
}

// Summarize fetches the dumped messages for the window, compresses them when
// oversized, generates the summary and persists a SummaryLog row.
func (s *Summarizer) Summarize(ctx context.Context, sessionID int64, chatIDs []int64, chatLabels string, start, end time.Time) (domain.SummaryLog, error) {
	records, err := s.Store.ListDumpedMessages(sessionID, chatIDs, start, end, s.MaxMessages)
	if err != nil {
		return domain.SummaryLog{}, fmt.Errorf("list dumped messages: %w", err)
	}
	if len(records) == 0 {
		return domain.SummaryLog{}, fmt.Errorf("no messages for session %d in window", sessionID)
	}

	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, formatLine(r))
	}
	lines = s.Compressor.Compress(ctx, lines)

	content, err := s.Generator.GenerateText(ctx, systemPrompt, strings.Join(lines, "\n"))
	if err != nil {
		return domain.SummaryLog{}, fmt.Errorf("generate summary: %w", err)
	}

	log := domain.SummaryLog{
		SessionID:    sessionID,
		ChatLabels:   chatLabels,
		Content:      content,
		MessageCount: len(records),
		StartTime:    start,
		EndTime:      end,
	}
	if err := s.Store.SaveSummary(&log); err != nil {
		return domain.SummaryLog{}, fmt.Errorf("save summary: %w", err)
	}
	return log, nil
}

func formatLine(r domain.DumpedRecord) string {
	sender := r.SenderName
	if sender == "" {
		sender = r.SenderUsername
	}
	if sender == "" {
		sender = "unknown"
	}
	text := r.Content
	if text == "" && r.Category != "" {
		text = fmt.Sprintf("[%s]", r.Category)
	}
	return fmt.Sprintf("[%s] %s: %s", r.MessageDate.Format("2006-01-02 15:04"), sender, text)
}
