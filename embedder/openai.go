package embedder

import (
	"context"
	"fmt"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an implementation of the Embedder interface backed by
// OpenAI's embeddings API.
type OpenAI struct {
	model      string
	dimensions int

	client *goopenai.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI embedder. An empty model falls back to
// text-embedding-3-small; a non-positive dimensions keeps the model's native
// dimensionality.
func NewOpenAI(apiKey, model string, dimensions int, logger *slog.Logger) OpenAI {
	if model == "" {
		model = string(goopenai.SmallEmbedding3)
	}
	return OpenAI{
		model:      model,
		dimensions: dimensions,
		client:     goopenai.NewClient(apiKey),
		logger:     logger.With(slog.String("module", "openai-embedder")),
	}
}

// Embed converts a single text into an embedding vector.
func (o OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts into embedding vectors in one API call.
// The response is reordered by the returned indices so vectors stay aligned
// with their inputs.
func (o OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(o.model),
	}
	if o.dimensions > 0 {
		req.Dimensions = o.dimensions
	}

	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("error creating embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Dimensions returns the configured vector dimensionality, or 0 when the
// model's native dimensionality is used.
func (o OpenAI) Dimensions() int {
	return o.dimensions
}
