package docanalysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Sliding-window sizes for summarization. The windows are large so most
// documents take the single-chunk fast path.
const (
	summarizeMaxChunkSize = 10000
	summarizeOverlap      = 400
)

// SummarizeOptions configures the summarization orchestrator.
type SummarizeOptions struct {
	// Model overrides the agent's default model when non-empty.
	Model string
	// Concurrency bounds the number of in-flight map calls. Non-positive
	// means serial.
	Concurrency int
}

// Summarize produces a single summary of text with a map-reduce strategy:
// each chunk is summarized independently, then the partial summaries are
// combined by a final reduce call. A document that fits in one chunk goes
// straight to the reduce call. Failed map calls are skipped; the operation
// fails with ErrSummarization only when every map call failed or the reduce
// call failed. Empty text yields an empty summary.
func Summarize(ctx context.Context, text string, agent Agent, opts SummarizeOptions, logger *slog.Logger) (string, error) {
	log := logger.With(
		slog.String("package", "docanalysis"),
		slog.String("function", "Summarize"),
	)

	chunks := ChunkText(text, ChunkOptions{
		MaxChunkSize: summarizeMaxChunkSize,
		Overlap:      summarizeOverlap,
	})

	switch len(chunks) {
	case 0:
		return "", nil
	case 1:
		out, err := agent.Generate(ctx, reduceSummaryPrompt,
			[]Message{{Role: RoleUser, Content: chunks[0].Text}},
			GenerateOptions{Model: opts.Model})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrSummarization, err)
		}
		return strings.TrimSpace(out), nil
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	partials := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			out, err := agent.Generate(gctx, mapSummaryPrompt,
				[]Message{{Role: RoleUser, Content: chunk.Text}},
				GenerateOptions{Model: opts.Model})
			if err != nil {
				log.Warn("Skipping chunk after map failure",
					slog.Int("chunkIndex", chunk.Index),
					slog.String("error", err.Error()))
				return nil
			}

			partials[i] = strings.TrimSpace(out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var combined strings.Builder
	succeeded := 0
	for i, partial := range partials {
		if partial == "" {
			continue
		}
		succeeded++
		fmt.Fprintf(&combined, "--- Chunk %d Summary ---\n%s\n\n", i+1, partial)
	}
	if succeeded == 0 {
		return "", fmt.Errorf("%w: all chunk summaries failed", ErrSummarization)
	}

	log.Debug("Reducing chunk summaries",
		slog.Int("chunkCount", len(chunks)),
		slog.Int("succeeded", succeeded))

	out, err := agent.Generate(ctx, reduceSummaryPrompt,
		[]Message{{Role: RoleUser, Content: combined.String()}},
		GenerateOptions{Model: opts.Model})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummarization, err)
	}
	return strings.TrimSpace(out), nil
}
