package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/metrics"
)

// Chat is a chat completion provider using the OpenAI-compatible API.
type Chat struct {
	client      *openai.Client
	model       string
	temperature float32
	call        metrics.ProviderCall
	logger      *zap.Logger
}

// ChatConfig holds the chat completion provider settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Provider    string
	Logger      *zap.Logger
}

// NewChat creates an OpenAI-compatible chat completion provider.
func NewChat(cfg *ChatConfig) *Chat {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chat{
		client:      openai.NewClientWithConfig(clientConfig(cfg.APIKey, cfg.BaseURL)),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		call:        metrics.ProviderCall{Kind: metrics.KindChat, Provider: cfg.Provider, Model: cfg.Model},
		logger:      logger,
	}
}

// Complete sends the system prompt and the user message and returns the first choice.
// Failures are wrapped with domain.ErrCompletionProviderError.
func (c *Chat) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		c.call.Failed("api_error")
		return "", wrapAPIError("chat", err, domain.ErrCompletionProviderError)
	}

	if len(resp.Choices) == 0 {
		c.call.Failed("empty_response")
		return "", fmt.Errorf("empty chat response: %w", domain.ErrCompletionProviderError)
	}

	c.call.Succeeded(duration, map[string]int{
		"prompt":     resp.Usage.PromptTokens,
		"completion": resp.Usage.CompletionTokens,
	})

	c.logger.Debug("Chat completion",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", duration),
	)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
