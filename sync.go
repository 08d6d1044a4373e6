package docanalysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultQueryLimit is the number of results QueryWithSync returns when the
// caller passes a non-positive limit.
const DefaultQueryLimit = 10

// DocSyncManager keeps a vector store consistent with a single evolving
// document. Synchronization is two-tiered: an unchanged document hash is a
// no-op, and otherwise the chunk-hash sets are diffed so pure appends embed
// only the new chunks. Any chunk removal triggers a full resync. All methods
// are safe for concurrent use; bookkeeping is committed only after store
// writes succeed.
type DocSyncManager struct {
	embedder Embedder
	store    VectorStore

	chunkOpts ChunkOptions
	hierOpts  HierarchyOptions
	logger    *slog.Logger

	mu            sync.Mutex
	lastDocHash   string
	storedHashes  map[string]struct{}
	lastHierarchy *HierarchyMap
}

// QueryResult is the outcome of QueryWithSync: ranked matches plus the
// hierarchy of the synced document.
type QueryResult struct {
	Results   []SearchResult `json:"results"`
	Hierarchy *HierarchyMap  `json:"hierarchy,omitempty"`
}

// NewDocSyncManager creates a manager bound to one embedder and one store.
// Zero-valued options fall back to the package defaults.
func NewDocSyncManager(embedder Embedder, store VectorStore, chunkOpts ChunkOptions, hierOpts HierarchyOptions, logger *slog.Logger) *DocSyncManager {
	return &DocSyncManager{
		embedder:     embedder,
		store:        store,
		chunkOpts:    chunkOpts.normalized(),
		hierOpts:     hierOpts.normalized(),
		logger:       logger.With(slog.String("package", "docanalysis")),
		storedHashes: make(map[string]struct{}),
	}
}

// SyncIfNeeded brings the store up to date with text. It returns false when
// the document hash matches the last synced state and nothing was done, true
// otherwise. On error the previous bookkeeping is left intact, so the next
// call retries the same work.
func (m *DocSyncManager) SyncIfNeeded(ctx context.Context, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncLocked(ctx, text)
}

// QueryWithSync synchronizes the store with text, embeds the question, and
// returns the nearest chunks together with the document hierarchy. A
// non-positive limit falls back to DefaultQueryLimit.
func (m *DocSyncManager) QueryWithSync(ctx context.Context, text, question string, limit int) (QueryResult, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.syncLocked(ctx, text); err != nil {
		return QueryResult{}, err
	}

	vector, err := m.embedder.Embed(ctx, question)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := m.store.VectorSearch(ctx, vector, limit)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to search vector store: %w", err)
	}
	if results == nil {
		results = []SearchResult{}
	}

	return QueryResult{Results: results, Hierarchy: m.lastHierarchy}, nil
}

// Reset drops every stored record and clears the sync bookkeeping.
func (m *DocSyncManager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset vector store: %w", err)
	}

	m.lastDocHash = ""
	m.storedHashes = make(map[string]struct{})
	m.lastHierarchy = nil
	return nil
}

func (m *DocSyncManager) syncLocked(ctx context.Context, text string) (bool, error) {
	logger := m.logger.With(slog.String("function", "SyncIfNeeded"))

	docHash := HashDocument(text)
	if docHash == m.lastDocHash {
		logger.Debug("Document unchanged, skipping sync")
		return false, nil
	}

	hierarchy, err := ExtractHierarchy(ctx, text, m.embedder, m.hierOpts)
	if err != nil {
		return false, fmt.Errorf("failed to extract hierarchy: %w", err)
	}

	chunks := ChunkWithHierarchy(text, hierarchy, m.chunkOpts)

	currentHashes := make(map[string]struct{}, len(chunks))
	var added []Chunk
	for _, c := range chunks {
		currentHashes[c.Hash] = struct{}{}
		if _, ok := m.storedHashes[c.Hash]; !ok {
			added = append(added, c)
		}
	}

	removed := false
	for h := range m.storedHashes {
		if _, ok := currentHashes[h]; !ok {
			removed = true
			break
		}
	}

	switch {
	case removed:
		// A removal means stale records with unknown identity may remain, so
		// rebuild the whole index from the current chunks. A cleared document
		// has no chunks to embed; real embedding APIs reject empty input.
		logger.Info("Chunks removed, performing full resync",
			slog.Int("chunkCount", len(chunks)))
		var records []ChunkRecord
		if len(chunks) > 0 {
			var err error
			records, err = m.embedChunks(ctx, chunks)
			if err != nil {
				return false, err
			}
		}
		if err := m.store.Reset(ctx); err != nil {
			return false, fmt.Errorf("failed to reset vector store: %w", err)
		}
		if len(records) > 0 {
			if err := m.store.Insert(ctx, records); err != nil {
				return false, fmt.Errorf("failed to insert chunk records: %w", err)
			}
		}
	case len(added) > 0:
		logger.Info("Appending new chunks",
			slog.Int("addedCount", len(added)))
		records, err := m.embedChunks(ctx, added)
		if err != nil {
			return false, err
		}
		if err := m.store.Insert(ctx, records); err != nil {
			return false, fmt.Errorf("failed to insert chunk records: %w", err)
		}
	}

	m.lastDocHash = docHash
	m.storedHashes = currentHashes
	m.lastHierarchy = &hierarchy
	return true, nil
}

func (m *DocSyncManager) embedChunks(ctx context.Context, chunks []Chunk) ([]ChunkRecord, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = ChunkRecord{
			Text:          c.Text,
			ChunkHash:     c.Hash,
			ChunkIndex:    c.Index,
			Start:         c.Start,
			End:           c.End,
			TokenSize:     c.TokenSize,
			SectionTitle:  c.SectionTitle,
			SectionPath:   c.SectionPath,
			ContextPrefix: c.ContextPrefix,
			Vector:        vectors[i],
		}
	}
	return records, nil
}
