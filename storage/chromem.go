package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
)

const chromemCollection = "chunks"

// Chromem provides a VectorStore implementation backed by a chromem-go
// collection. Embeddings are supplied by the caller, so the collection's
// embedding function is never invoked.
type Chromem struct {
	db *chromem.DB

	mu   sync.RWMutex
	coll *chromem.Collection
}

// NewChromem creates a new Chromem store. An empty dbPath keeps the database
// in memory; otherwise it is persisted under dbPath.
func NewChromem(dbPath string) (*Chromem, error) {
	var db *chromem.DB
	var err error
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create chromem db: %w", err)
		}
	}

	coll, err := db.GetOrCreateCollection(chromemCollection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunks collection: %w", err)
	}

	return &Chromem{db: db, coll: coll}, nil
}

// Insert stores the chunk records with their precomputed embeddings.
func (c *Chromem) Insert(ctx context.Context, records []docanalysis.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		docs[i] = chromem.Document{
			ID:        uuid.New().String(),
			Content:   rec.Text,
			Embedding: rec.Vector,
			Metadata: map[string]string{
				"chunk_hash":     rec.ChunkHash,
				"chunk_index":    strconv.Itoa(rec.ChunkIndex),
				"start":          strconv.Itoa(rec.Start),
				"end":            strconv.Itoa(rec.End),
				"token_size":     strconv.Itoa(rec.TokenSize),
				"section_title":  rec.SectionTitle,
				"section_path":   rec.SectionPath,
				"context_prefix": rec.ContextPrefix,
			},
		}
	}

	c.mu.RLock()
	coll := c.coll
	c.mu.RUnlock()

	if err := coll.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// VectorSearch returns up to limit records ordered by ascending cosine
// distance from the query vector. The limit is clamped to the collection size
// since chromem rejects oversized result counts.
func (c *Chromem) VectorSearch(ctx context.Context, vector []float32, limit int) ([]docanalysis.SearchResult, error) {
	c.mu.RLock()
	coll := c.coll
	c.mu.RUnlock()

	if count := coll.Count(); limit > count {
		limit = count
	}
	if limit <= 0 {
		return []docanalysis.SearchResult{}, nil
	}

	vecRes, err := coll.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	results := make([]docanalysis.SearchResult, len(vecRes))
	for i, res := range vecRes {
		results[i] = docanalysis.SearchResult{
			Record:   recordFromMetadata(res.Content, res.Embedding, res.Metadata),
			Distance: 1 - float64(res.Similarity),
		}
	}
	return results, nil
}

// Reset drops the chunks collection and recreates it empty.
func (c *Chromem) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.DeleteCollection(chromemCollection); err != nil {
		return fmt.Errorf("failed to delete chunks collection: %w", err)
	}
	coll, err := c.db.GetOrCreateCollection(chromemCollection, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to recreate chunks collection: %w", err)
	}
	c.coll = coll
	return nil
}

// Count returns the number of stored records.
func (c *Chromem) Count(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.coll.Count(), nil
}

func recordFromMetadata(content string, embedding []float32, metadata map[string]string) docanalysis.ChunkRecord {
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	return docanalysis.ChunkRecord{
		Text:          content,
		ChunkHash:     metadata["chunk_hash"],
		ChunkIndex:    atoi(metadata["chunk_index"]),
		Start:         atoi(metadata["start"]),
		End:           atoi(metadata["end"]),
		TokenSize:     atoi(metadata["token_size"]),
		SectionTitle:  metadata["section_title"],
		SectionPath:   metadata["section_path"],
		ContextPrefix: metadata["context_prefix"],
		Vector:        embedding,
	}
}
