package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
	"github.com/MegaGrindStone/go-doc-analysis/server"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

func (stubEmbedder) Dimensions() int { return 2 }

type stubStore struct {
	records []docanalysis.ChunkRecord
}

func (s *stubStore) Insert(_ context.Context, records []docanalysis.ChunkRecord) error {
	s.records = append(s.records, records...)
	return nil
}

func (s *stubStore) VectorSearch(_ context.Context, _ []float32, limit int) ([]docanalysis.SearchResult, error) {
	results := []docanalysis.SearchResult{}
	for i, rec := range s.records {
		if limit > 0 && i >= limit {
			break
		}
		results = append(results, docanalysis.SearchResult{Record: rec, Distance: float64(i) * 0.1})
	}
	return results, nil
}

func (s *stubStore) Reset(_ context.Context) error {
	s.records = nil
	return nil
}

func (s *stubStore) Count(_ context.Context) (int, error) {
	return len(s.records), nil
}

type stubAgent struct {
	response string
	err      error
}

func (a stubAgent) Generate(_ context.Context, _ string, _ []docanalysis.Message, _ docanalysis.GenerateOptions) (string, error) {
	return a.response, a.err
}

func newTestServer(agent docanalysis.Agent) *server.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	embedder := stubEmbedder{}
	store := &stubStore{}
	syncManager := docanalysis.NewDocSyncManager(embedder, store,
		docanalysis.DefaultChunkOptions(), docanalysis.DefaultHierarchyOptions(), logger)

	return server.New(syncManager, agent, embedder, store, server.Config{
		ChunkOptions:     docanalysis.DefaultChunkOptions(),
		HierarchyOptions: docanalysis.DefaultHierarchyOptions(),
	}, logger)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Stats(t *testing.T) {
	srv := newTestServer(stubAgent{})

	t.Run("Valid text returns counters", func(t *testing.T) {
		rec := postJSON(t, srv.Handler(), "/analyze/stats", map[string]any{
			"text": "Hello world.\n\nSecond paragraph.",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp map[string]int
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if resp["totalParagraphs"] != 2 {
			t.Errorf("Expected 2 paragraphs, got %d", resp["totalParagraphs"])
		}
		if resp["totalTokens"] == 0 {
			t.Error("Expected non-zero token count")
		}
	})

	t.Run("Missing text returns 400", func(t *testing.T) {
		rec := postJSON(t, srv.Handler(), "/analyze/stats", map[string]any{})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("Expected status 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "error") {
			t.Errorf("Expected an error body, got %s", rec.Body.String())
		}
	})
}

func TestServer_Chunk(t *testing.T) {
	srv := newTestServer(stubAgent{})

	t.Run("Explicit zero overlap is honored", func(t *testing.T) {
		rec := postJSON(t, srv.Handler(), "/analyze/chunk", map[string]any{
			"text": "One two three. Four five six. Seven eight nine.",
			"options": map[string]any{
				"maxChunkSize": 20,
				"overlap":      0,
			},
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp docanalysis.AnalysisResult
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if len(resp.Chunks) != 3 {
			t.Fatalf("Expected 3 chunks, got %d", len(resp.Chunks))
		}
		if resp.Chunks[1].Text != "Four five six." {
			t.Errorf("Expected no overlap prefix, got %q", resp.Chunks[1].Text)
		}
	})

	t.Run("Hierarchy-aware chunking attaches the hierarchy", func(t *testing.T) {
		rec := postJSON(t, srv.Handler(), "/analyze/chunk", map[string]any{
			"text":         "# Title\n\nSome content here.",
			"useHierarchy": true,
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp docanalysis.AnalysisResult
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if resp.Hierarchy == nil {
			t.Fatal("Expected the hierarchy to be attached")
		}
		if len(resp.Chunks) == 0 || resp.Chunks[0].SectionTitle != "Title" {
			t.Errorf("Expected section-annotated chunks, got %+v", resp.Chunks)
		}
	})
}

func TestServer_Query(t *testing.T) {
	srv := newTestServer(stubAgent{})

	t.Run("Returns results and hierarchy", func(t *testing.T) {
		rec := postJSON(t, srv.Handler(), "/analyze/query", map[string]any{
			"text":     "# Title\n\nAlpha content.\n\nBeta content.",
			"question": "what is alpha?",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp docanalysis.QueryResult
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if len(resp.Results) == 0 {
			t.Error("Expected results")
		}
		if resp.Hierarchy == nil {
			t.Error("Expected the hierarchy to be attached")
		}
	})

	t.Run("Missing question returns 400", func(t *testing.T) {
		rec := postJSON(t, srv.Handler(), "/analyze/query", map[string]any{
			"text": "Some text.",
		})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("Expected status 400, got %d", rec.Code)
		}
	})
}

func TestServer_Criticize(t *testing.T) {
	srv := newTestServer(stubAgent{
		response: `[{"quote": "Some text.", "criticism": "too short"}]`,
	})

	rec := postJSON(t, srv.Handler(), "/analyze/criticize", map[string]any{
		"text": "Some text.",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var criticisms []docanalysis.Criticism
	if err := json.Unmarshal(rec.Body.Bytes(), &criticisms); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(criticisms) != 1 || criticisms[0].Criticism != "too short" {
		t.Errorf("Unexpected criticisms: %+v", criticisms)
	}
}

func TestServer_Summarize(t *testing.T) {
	t.Run("Returns the summary", func(t *testing.T) {
		srv := newTestServer(stubAgent{response: "A summary."})

		rec := postJSON(t, srv.Handler(), "/analyze/summarize", map[string]any{
			"text": "Some document text.",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if resp["summary"] != "A summary." {
			t.Errorf("Expected summary %q, got %q", "A summary.", resp["summary"])
		}
	})

	t.Run("Agent failure returns 500", func(t *testing.T) {
		srv := newTestServer(stubAgent{err: errors.New("service down")})

		rec := postJSON(t, srv.Handler(), "/analyze/summarize", map[string]any{
			"text": "Some document text.",
		})

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("Expected status 500, got %d", rec.Code)
		}
	})
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(stubAgent{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("Expected an ok status, got %s", rec.Body.String())
	}
}

func TestServer_CORS(t *testing.T) {
	srv := newTestServer(stubAgent{})

	req := httptest.NewRequest(http.MethodOptions, "/analyze/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Expected permissive CORS header, got %q",
			rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
