package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
)

// Ollama provides an implementation of the Agent interface for interacting
// with language models served by a local Ollama instance. It handles
// streaming chat completions and strips reasoning tags from the output.
type Ollama struct {
	host  string
	model string

	params Parameters

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The host
// parameter should be a valid URL pointing to an Ollama server. If the provided host URL is invalid,
// the function will panic.
func NewOllama(host, model string, params Parameters, logger *slog.Logger) Ollama {
	u, err := url.Parse(host)
	if err != nil {
		panic(err)
	}

	return Ollama{
		host:   host,
		model:  model,
		params: params,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}
}

// Generate sends the conversation to the Ollama API and returns the
// accumulated completion text. An empty opts.Model falls back to the
// configured model.
func (o Ollama) Generate(ctx context.Context, systemPrompt string, messages []docanalysis.Message, opts docanalysis.GenerateOptions) (string, error) {
	msgs := make([]api.Message, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, api.Message{
			Role:    "system",
			Content: systemPrompt,
		})
	}
	for _, msg := range messages {
		role := "user"
		if msg.Role == docanalysis.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, api.Message{
			Role:    role,
			Content: msg.Content,
		})
	}

	model := opts.Model
	if model == "" {
		model = o.model
	}
	req := o.chatRequest(model, msgs)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var result strings.Builder

	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		result.WriteString(res.Message.Content)
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	return RemoveThinkTags(result.String()), nil
}

func (o Ollama) chatRequest(model string, messages []api.Message) api.ChatRequest {
	req := api.ChatRequest{
		Model:    model,
		Messages: messages,
	}

	opts := make(map[string]any)

	if o.params.Temperature != nil {
		opts["temperature"] = *o.params.Temperature
	}
	if o.params.Seed != nil {
		opts["seed"] = *o.params.Seed
	}
	if o.params.Stop != nil {
		opts["stop"] = o.params.Stop
	}
	if o.params.TopK != nil {
		opts["top_k"] = *o.params.TopK
	}
	if o.params.TopP != nil {
		opts["top_p"] = *o.params.TopP
	}
	if o.params.MinP != nil {
		opts["min_p"] = *o.params.MinP
	}
	if o.params.IncludeReasoning != nil {
		req.Think = o.params.IncludeReasoning
	}

	req.Options = opts

	return req
}
