package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the Embedder interface backed by a
// local Ollama server's embed endpoint.
type Ollama struct {
	host       string
	model      string
	dimensions int

	client *api.Client
	logger *slog.Logger
}

// NewOllama creates a new Ollama embedder with the specified host URL and
// model name. If the provided host URL is invalid, the function will panic.
func NewOllama(host, model string, dimensions int, logger *slog.Logger) Ollama {
	u, err := url.Parse(host)
	if err != nil {
		panic(err)
	}

	return Ollama{
		host:       host,
		model:      model,
		dimensions: dimensions,
		client:     api.NewClient(u, &http.Client{}),
		logger:     logger.With(slog.String("module", "ollama-embedder")),
	}
}

// Embed converts a single text into an embedding vector.
func (o Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts into embedding vectors in one request.
// Ollama returns embeddings in input order.
func (o Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	return resp.Embeddings, nil
}

// Dimensions returns the configured vector dimensionality, or 0 when unknown.
func (o Ollama) Dimensions() int {
	return o.dimensions
}
