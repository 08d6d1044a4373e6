package docanalysis_test

import (
	"context"
	"errors"
	"sync"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
)

// MockEmbedder returns small deterministic vectors and records every call so
// tests can assert how many embeddings were requested and for which texts.
type MockEmbedder struct {
	mu sync.Mutex

	// vectors maps input text to a fixed vector; unmapped texts get a default.
	vectors map[string][]float32
	err     error

	// rejectEmptyBatch mimics real embedding APIs, which refuse zero inputs.
	rejectEmptyBatch bool

	embedCalls []string
	batchCalls [][]string
}

func (m *MockEmbedder) vectorFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return []float32{1, 0, 0}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.embedCalls = append(m.embedCalls, text)
	return m.vectorFor(text), nil
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.rejectEmptyBatch && len(texts) == 0 {
		return nil, errors.New("input must not be empty")
	}
	m.batchCalls = append(m.batchCalls, append([]string(nil), texts...))
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = m.vectorFor(t)
	}
	return vectors, nil
}

func (m *MockEmbedder) Dimensions() int { return 3 }

func (m *MockEmbedder) totalBatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batchCalls)
}

// MockStore keeps records in memory and records Insert/Reset/Search activity.
type MockStore struct {
	mu sync.Mutex

	records []docanalysis.ChunkRecord

	insertCalls int
	resetCalls  int
	searchCalls int

	insertErr error
	resetErr  error
}

func (m *MockStore) Insert(_ context.Context, records []docanalysis.ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.insertCalls++
	m.records = append(m.records, records...)
	return nil
}

func (m *MockStore) VectorSearch(_ context.Context, _ []float32, limit int) ([]docanalysis.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++

	results := []docanalysis.SearchResult{}
	for i, rec := range m.records {
		if limit > 0 && i >= limit {
			break
		}
		results = append(results, docanalysis.SearchResult{
			Record:   rec,
			Distance: float64(i) * 0.1,
		})
	}
	return results, nil
}

func (m *MockStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resetCalls++
	m.records = nil
	return nil
}

func (m *MockStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *MockStore) storedHashes() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	hashes := make(map[string]int)
	for _, rec := range m.records {
		hashes[rec.ChunkHash]++
	}
	return hashes
}

// MockAgent answers Generate from a caller-provided function and records
// every call it receives.
type MockAgent struct {
	mu sync.Mutex

	// respond receives the system prompt and the last message content.
	respond func(systemPrompt, content string) (string, error)

	calls []mockAgentCall
}

type mockAgentCall struct {
	systemPrompt string
	content      string
	model        string
}

func (m *MockAgent) Generate(_ context.Context, systemPrompt string, messages []docanalysis.Message, opts docanalysis.GenerateOptions) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("no messages")
	}

	content := messages[len(messages)-1].Content

	m.mu.Lock()
	m.calls = append(m.calls, mockAgentCall{
		systemPrompt: systemPrompt,
		content:      content,
		model:        opts.Model,
	})
	m.mu.Unlock()

	if m.respond == nil {
		return "", errors.New("no responder configured")
	}
	return m.respond(systemPrompt, content)
}

func (m *MockAgent) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
