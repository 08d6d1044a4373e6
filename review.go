package docanalysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"golang.org/x/sync/errgroup"
)

// Sliding-window sizes for the review orchestrators.
const (
	reviewMaxChunkSize = 1500
	reviewOverlap      = 200
)

// ReviewOptions configures the review orchestrators.
type ReviewOptions struct {
	// Model overrides the agent's default model when non-empty.
	Model string
	// Concurrency bounds the number of in-flight agent calls. Non-positive
	// means serial.
	Concurrency int
}

// Criticism is one critical observation anchored to a quote from the text.
type Criticism struct {
	Quote     string `json:"quote"`
	Criticism string `json:"criticism"`
}

// Suggestion is one proposed edit anchored to a quote from the text.
type Suggestion struct {
	Quote      string `json:"quote"`
	Suggestion string `json:"suggestion"`
	Reason     string `json:"reason"`
}

// Criticize slides a window over text and asks the agent for criticisms of
// each window. Chunks whose agent call fails or whose output cannot be parsed
// are skipped; the remaining results are concatenated in chunk order.
func Criticize(ctx context.Context, text string, agent Agent, opts ReviewOptions, logger *slog.Logger) ([]Criticism, error) {
	log := logger.With(
		slog.String("package", "docanalysis"),
		slog.String("function", "Criticize"),
	)

	perChunk, err := reviewChunks(ctx, text, agent, criticismPrompt, opts, log,
		func(raw string) ([]Criticism, error) {
			var items []Criticism
			if err := decodeAgentJSON(raw, &items); err != nil {
				return nil, err
			}
			return items, nil
		})
	if err != nil {
		return nil, err
	}

	var out []Criticism
	for _, items := range perChunk {
		out = append(out, items...)
	}
	if out == nil {
		out = []Criticism{}
	}
	return out, nil
}

// SuggestChanges slides a window over text and asks the agent for concrete
// edit suggestions for each window. Failed chunks are skipped; the remaining
// results are concatenated in chunk order.
func SuggestChanges(ctx context.Context, text string, agent Agent, opts ReviewOptions, logger *slog.Logger) ([]Suggestion, error) {
	log := logger.With(
		slog.String("package", "docanalysis"),
		slog.String("function", "SuggestChanges"),
	)

	perChunk, err := reviewChunks(ctx, text, agent, suggestionPrompt, opts, log,
		func(raw string) ([]Suggestion, error) {
			var items []Suggestion
			if err := decodeAgentJSON(raw, &items); err != nil {
				return nil, err
			}
			return items, nil
		})
	if err != nil {
		return nil, err
	}

	var out []Suggestion
	for _, items := range perChunk {
		out = append(out, items...)
	}
	if out == nil {
		out = []Suggestion{}
	}
	return out, nil
}

// reviewChunks fans the chunks out to the agent under a bounded semaphore and
// collects parsed results into an index-addressed slice so aggregate order
// matches chunk order. Per-chunk failures leave a nil entry.
func reviewChunks[T any](
	ctx context.Context,
	text string,
	agent Agent,
	systemPrompt string,
	opts ReviewOptions,
	logger *slog.Logger,
	parse func(raw string) ([]T, error),
) ([][]T, error) {
	chunks := ChunkText(text, ChunkOptions{
		MaxChunkSize: reviewMaxChunkSize,
		Overlap:      reviewOverlap,
	})

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	results := make([][]T, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			raw, err := agent.Generate(gctx, systemPrompt,
				[]Message{{Role: RoleUser, Content: chunk.Text}},
				GenerateOptions{Model: opts.Model})
			if err != nil {
				logger.Warn("Skipping chunk after agent failure",
					slog.Int("chunkIndex", chunk.Index),
					slog.String("error", err.Error()))
				return nil
			}

			items, err := parse(raw)
			if err != nil {
				logger.Warn("Skipping chunk after parse failure",
					slog.Int("chunkIndex", chunk.Index),
					slog.String("error", err.Error()))
				return nil
			}

			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// decodeAgentJSON parses agent output into v: fences are stripped, a strict
// parse is tried first, and malformed output goes through json-repair before
// giving up.
func decodeAgentJSON(raw string, v any) error {
	cleaned := stripJSONFence(raw)

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.RepairJSON(cleaned)
	if err != nil {
		return fmt.Errorf("failed to repair agent JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("failed to parse agent JSON: %w", err)
	}
	return nil
}

func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
