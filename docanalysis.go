package docanalysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Embedder defines the interface for text embedding operations.
// Implementations must return vectors aligned with their inputs: the vector at
// index i of EmbedBatch's result corresponds to texts[i].
type Embedder interface {
	// Embed converts a single text into an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch converts multiple texts into embedding vectors in one call,
	// preserving index-to-vector alignment.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the dimensionality of the vectors this embedder produces.
	Dimensions() int
}

// VectorStore defines the interface for vector index operations.
// It stores chunk records with their embeddings and answers nearest-neighbor
// queries ordered by ascending distance.
type VectorStore interface {
	Insert(ctx context.Context, records []ChunkRecord) error
	VectorSearch(ctx context.Context, vector []float32, limit int) ([]SearchResult, error)
	// Reset drops all stored records.
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// Agent defines the interface for language model generation.
// Content may be wrapped in markdown code fences; callers are expected to
// strip them before parsing.
type Agent interface {
	Generate(ctx context.Context, systemPrompt string, messages []Message, opts GenerateOptions) (string, error)
}

// Message is a single turn in an agent conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation roles understood by the Agent implementations.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerateOptions carries per-call generation settings.
type GenerateOptions struct {
	Model string
}

// ChunkRecord is a row in the vector store: the chunk's text, provenance
// metadata, and its embedding. ChunkHash is the identity key used for diffing.
type ChunkRecord struct {
	Text          string    `json:"text"`
	ChunkHash     string    `json:"chunkHash"`
	ChunkIndex    int       `json:"chunkIndex"`
	Start         int       `json:"start"`
	End           int       `json:"end"`
	TokenSize     int       `json:"tokenSize,omitempty"`
	SectionTitle  string    `json:"sectionTitle,omitempty"`
	SectionPath   string    `json:"sectionPath,omitempty"`
	ContextPrefix string    `json:"contextPrefix,omitempty"`
	Vector        []float32 `json:"vector,omitempty"`
}

// SearchResult pairs a stored record with its distance from the query vector.
// Distance is ascending: smaller means closer.
type SearchResult struct {
	Record   ChunkRecord `json:"record"`
	Distance float64     `json:"_distance"`
}

var (
	// ErrEmptyText is returned when an operation requires non-empty document text.
	ErrEmptyText = errors.New("text must be a non-empty string")
	// ErrEmptyQuestion is returned when a query operation receives no question.
	ErrEmptyQuestion = errors.New("question must be a non-empty string")
	// ErrSummarization is returned when summarization cannot produce any result:
	// every map call failed, or the reduce call failed.
	ErrSummarization = errors.New("summarization failed")
)

// HashDocument returns the SHA-256 hex digest of the UTF-8 bytes of text.
// The same function produces chunk hashes, so two chunks are identical exactly
// when their (overlap-included) texts are identical.
func HashDocument(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
