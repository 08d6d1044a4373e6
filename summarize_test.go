package docanalysis_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
)

func TestSummarize(t *testing.T) {
	t.Run("Empty text yields empty summary without agent calls", func(t *testing.T) {
		agent := &MockAgent{}

		summary, err := docanalysis.Summarize(context.Background(), "",
			agent, docanalysis.SummarizeOptions{}, discardLogger())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if summary != "" {
			t.Errorf("Expected empty summary, got %q", summary)
		}
		if agent.callCount() != 0 {
			t.Errorf("Expected no agent calls, got %d", agent.callCount())
		}
	})

	t.Run("Single chunk goes straight to the reduce call", func(t *testing.T) {
		agent := &MockAgent{
			respond: func(_, _ string) (string, error) {
				return "  A tidy summary.  ", nil
			},
		}

		summary, err := docanalysis.Summarize(context.Background(), "A short document that fits one window.",
			agent, docanalysis.SummarizeOptions{}, discardLogger())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if summary != "A tidy summary." {
			t.Errorf("Expected trimmed summary, got %q", summary)
		}
		if agent.callCount() != 1 {
			t.Errorf("Expected 1 agent call, got %d", agent.callCount())
		}
	})

	t.Run("Map-reduce over multiple chunks", func(t *testing.T) {
		// Two 6000-character paragraphs exceed the 10000-character window.
		text := strings.Repeat("a", 6000) + "\n\n" + strings.Repeat("b", 6000)

		agent := &MockAgent{
			respond: func(_, content string) (string, error) {
				if strings.Contains(content, "--- Chunk") {
					return "the final summary", nil
				}
				return "a partial summary", nil
			},
		}

		summary, err := docanalysis.Summarize(context.Background(), text,
			agent, docanalysis.SummarizeOptions{Concurrency: 2}, discardLogger())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if summary != "the final summary" {
			t.Errorf("Expected the reduce output, got %q", summary)
		}
		// Two map calls plus one reduce call.
		if agent.callCount() != 3 {
			t.Errorf("Expected 3 agent calls, got %d", agent.callCount())
		}
	})

	t.Run("Surviving map results still reduce", func(t *testing.T) {
		text := strings.Repeat("a", 6000) + "\n\n" + strings.Repeat("b", 6000)

		agent := &MockAgent{
			respond: func(_, content string) (string, error) {
				if strings.Contains(content, "--- Chunk") {
					if !strings.Contains(content, "Chunk 1 Summary") {
						return "", errors.New("missing first chunk")
					}
					return "reduced from one", nil
				}
				if strings.Contains(content, "b") {
					return "", errors.New("rate limited")
				}
				return "partial one", nil
			},
		}

		summary, err := docanalysis.Summarize(context.Background(), text,
			agent, docanalysis.SummarizeOptions{}, discardLogger())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if summary != "reduced from one" {
			t.Errorf("Expected the reduce output, got %q", summary)
		}
	})

	t.Run("All map calls failing yields ErrSummarization", func(t *testing.T) {
		text := strings.Repeat("a", 6000) + "\n\n" + strings.Repeat("b", 6000)

		agent := &MockAgent{
			respond: func(_, _ string) (string, error) {
				return "", errors.New("service down")
			},
		}

		_, err := docanalysis.Summarize(context.Background(), text,
			agent, docanalysis.SummarizeOptions{}, discardLogger())
		if !errors.Is(err, docanalysis.ErrSummarization) {
			t.Fatalf("Expected ErrSummarization, got %v", err)
		}
	})

	t.Run("Reduce failure yields ErrSummarization", func(t *testing.T) {
		text := strings.Repeat("a", 6000) + "\n\n" + strings.Repeat("b", 6000)

		agent := &MockAgent{
			respond: func(_, content string) (string, error) {
				if strings.Contains(content, "--- Chunk") {
					return "", errors.New("context too long")
				}
				return "a partial summary", nil
			},
		}

		_, err := docanalysis.Summarize(context.Background(), text,
			agent, docanalysis.SummarizeOptions{}, discardLogger())
		if !errors.Is(err, docanalysis.ErrSummarization) {
			t.Fatalf("Expected ErrSummarization, got %v", err)
		}
	})

	t.Run("Single chunk failure yields ErrSummarization", func(t *testing.T) {
		agent := &MockAgent{
			respond: func(_, _ string) (string, error) {
				return "", errors.New("service down")
			},
		}

		_, err := docanalysis.Summarize(context.Background(), "A short document.",
			agent, docanalysis.SummarizeOptions{}, discardLogger())
		if !errors.Is(err, docanalysis.ErrSummarization) {
			t.Fatalf("Expected ErrSummarization, got %v", err)
		}
	})
}
