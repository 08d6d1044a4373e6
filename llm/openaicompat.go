package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
)

// OpenAICompat provides an implementation of the Agent interface for any
// OpenAI-compatible API server (llama.cpp, vLLM, LM Studio, and the like).
type OpenAICompat struct {
	BaseURL string
	model   string
	params  Parameters

	client *goopenai.Client
	logger *slog.Logger
}

// NewOpenAICompat creates a new OpenAICompat instance with the specified host
// URL and model name. The host parameter should be a valid URL pointing to an
// OpenAI-compatible API server.
func NewOpenAICompat(host, apiKey, model string, params Parameters, logger *slog.Logger) OpenAICompat {
	baseURL := strings.TrimSuffix(host, "/")

	config := goopenai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	client := goopenai.NewClientWithConfig(config)

	return OpenAICompat{
		BaseURL: baseURL,
		model:   model,
		params:  params,
		client:  client,
		logger:  logger.With(slog.String("module", "openaicompat")),
	}
}

// Generate sends the conversation to the compatible server and returns the
// completion text. An empty opts.Model falls back to the configured model.
func (o OpenAICompat) Generate(ctx context.Context, systemPrompt string, messages []docanalysis.Message, opts docanalysis.GenerateOptions) (string, error) {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, msg := range messages {
		role := goopenai.ChatMessageRoleUser
		if msg.Role == docanalysis.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	model := opts.Model
	if model == "" {
		model = o.model
	}

	req := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}
	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}
	if o.params.PresencePenalty != nil {
		req.PresencePenalty = *o.params.PresencePenalty
	}
	if o.params.FrequencyPenalty != nil {
		req.FrequencyPenalty = *o.params.FrequencyPenalty
	}
	if o.params.Seed != nil {
		req.Seed = o.params.Seed
	}
	if o.params.LogitBias != nil {
		req.LogitBias = o.params.LogitBias
	}
	if o.params.MaxTokens != nil {
		req.MaxTokens = *o.params.MaxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, 110*time.Second)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices found")
	}

	// Local servers often emit reasoning traces inline.
	return RemoveThinkTags(resp.Choices[0].Message.Content), nil
}
