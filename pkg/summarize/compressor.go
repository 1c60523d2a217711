package summarize

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"chatvault/pkg/ai"
)

// intentQuery steers line ranking towards content worth summarizing.
const intentQuery = "important updates, decisions, errors, announcements, action items"

// Compressor reduces an oversized text corpus to a relevance-ranked subset
// before the generation call. Selection ranks lines by embedding similarity
// to a fixed intent query; presentation keeps the original chronological
// order. On embedding failure it degrades to trailing-window truncation
// instead of failing the request.
type Compressor struct {
	Embedder ai.Embedder
	// Threshold is the corpus line count above which compression kicks in.
	Threshold int
	// PrefixLimit bounds how many leading lines are embedded and considered.
	PrefixLimit int
	// Fraction of the considered window to keep, subject to Floor.
	Fraction float64
	Floor    int
	// TailFallback is how many trailing lines survive when embedding fails.
	TailFallback int
	// Concurrency bounds parallel per-line embedding calls when the embedder
	// has no batch endpoint. Zero means 4.
	Concurrency int
}

// Compress returns the corpus unchanged when it is at or below the
// threshold, otherwise a strict subset in original order.
func (c *Compressor) Compress(ctx context.Context, lines []string) []string {
	if len(lines) <= c.Threshold {
		return lines
	}
	window := lines
	if c.PrefixLimit > 0 && len(window) > c.PrefixLimit {
		window = window[:c.PrefixLimit]
	}

	vectors, queryVec, err := c.embedWindow(ctx, window)
	if err != nil {
		slog.Warn("embedding failed, falling back to trailing window", "error", err)
		return tail(lines, c.TailFallback)
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(window))
	for i, v := range vectors {
		ranked[i] = scored{index: i, score: cosineSimilarity(v, queryVec)}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	keep := int(c.Fraction * float64(len(window)))
	if keep < c.Floor {
		keep = c.Floor
	}
	if keep > len(window) {
		keep = len(window)
	}
	selected := ranked[:keep]
	sort.Slice(selected, func(i, j int) bool { return selected[i].index < selected[j].index })

	out := make([]string, 0, keep)
	for _, s := range selected {
		out = append(out, window[s.index])
	}
	return out
}

func (c *Compressor) embedWindow(ctx context.Context, window []string) ([][]float32, []float32, error) {
	if batch, ok := c.Embedder.(ai.BatchEmbedder); ok {
		texts := append(append(make([]string, 0, len(window)+1), window...), intentQuery)
		vectors, err := batch.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, nil, err
		}
		return vectors[:len(window)], vectors[len(window)], nil
	}

	vectors := make([][]float32, len(window))
	var queryVec []float32
	g, gctx := errgroup.WithContext(ctx)
	limit := c.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)
	for i, line := range window {
		g.Go(func() error {
			v, err := c.Embedder.EmbedText(gctx, line)
			if err != nil {
				return err
			}
			vectors[i] = v
			return nil
		})
	}
	g.Go(func() error {
		v, err := c.Embedder.EmbedText(gctx, intentQuery)
		if err != nil {
			return err
		}
		queryVec = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vectors, queryVec, nil
}

func tail(lines []string, n int) []string {
	if n <= 0 || n >= len(lines) {
		return lines
	}
	return lines[len(lines)-n:]
}

// cosineSimilarity returns dot(a,b) / (||a||*||b||), or 0 when either vector
// has zero norm.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
