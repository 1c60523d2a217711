package summarize

import (
	"context"
	"strings"
	"testing"
	"time"

	"chatvault/pkg/domain"
	"chatvault/pkg/store"
)

type recordingGenerator struct {
	prompt string
}

func (g *recordingGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.prompt = userPrompt
	return "summary of the day", nil
}

func TestSummarizePersistsLog(t *testing.T) {
	mem := store.NewMemoryStore()
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := mem.RecordDumpedMessage(domain.DumpedRecord{
			SessionID:   1,
			ChatID:      10,
			MessageID:   int64(i + 1),
			SenderName:  "alice",
			Content:     "message",
			MessageDate: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	gen := &recordingGenerator{}
	s := &Summarizer{
		Store:      mem,
		Generator:  gen,
		Compressor: &Compressor{Embedder: &scriptedEmbedder{}, Threshold: 100},
	}
	log, err := s.Summarize(context.Background(), 1, []int64{10}, "10", base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if log.Content != "summary of the day" || log.MessageCount != 3 {
		t.Fatalf("log = %+v, want generated content over 3 messages", log)
	}
	if len(mem.Summaries()) != 1 {
		t.Fatalf("persisted %d summaries, want 1", len(mem.Summaries()))
	}
	if !strings.Contains(gen.prompt, "alice") {
		t.Fatalf("prompt %q does not carry sender names", gen.prompt)
	}
}

func TestSummarizeEmptyWindow(t *testing.T) {
	s := &Summarizer{
		Store:      store.NewMemoryStore(),
		Generator:  &recordingGenerator{},
		Compressor: &Compressor{Embedder: &scriptedEmbedder{}, Threshold: 100},
	}
	if _, err := s.Summarize(context.Background(), 1, nil, "", time.Time{}, time.Time{}); err == nil {
		t.Fatalf("Summarize on empty window succeeded, want error")
	}
}
