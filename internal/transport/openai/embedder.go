// Package openai talks to OpenAI-compatible embedding and chat completion endpoints.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/metrics"
)

// defaultMaxInputs matches the per-request input limit of the Gemini compatible endpoint.
const defaultMaxInputs = 100

// Embedder is an embedding provider using the OpenAI-compatible API (Gemini by default).
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	maxInputs  int
	call       metrics.ProviderCall
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	// MaxInputs caps the texts sent in one request; larger batches are split.
	MaxInputs int
	Provider  string
	Logger    *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxInputs := cfg.MaxInputs
	if maxInputs <= 0 {
		maxInputs = defaultMaxInputs
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientConfig(cfg.APIKey, cfg.BaseURL)),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		maxInputs:  maxInputs,
		call:       metrics.ProviderCall{Kind: metrics.KindEmbedding, Provider: cfg.Provider, Model: cfg.Model},
		logger:     logger,
	}
}

func clientConfig(apiKey, baseURL string) openai.ClientConfig {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return cfg
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.create(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder. Texts go out in requests of at
// most MaxInputs; vectors come back in input order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for start := 0; start < len(texts); start += e.maxInputs {
		end := min(start+e.maxInputs, len(texts))
		res, err := e.create(ctx, texts[start:end])
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// create issues one embeddings request and records its metrics and usage.
func (e *Embedder) create(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}
	metrics.EmbeddingBatchInputs.Observe(float64(len(texts)))

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		e.call.Failed("api_error")
		return domain.BatchEmbeddingResult{}, wrapAPIError("embedding", err, domain.ErrEmbeddingProviderError)
	}
	if len(resp.Data) != len(texts) {
		e.call.Failed("count_mismatch")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("asked for %d embeddings, got %d: %w",
			len(texts), len(resp.Data), domain.ErrEmbeddingProviderError)
	}

	// Some compatible servers list vectors out of order.
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	embeddings := make([][]float32, len(resp.Data))
	for i := range resp.Data {
		if len(resp.Data[i].Embedding) == 0 {
			e.call.Failed("empty_vector")
			return domain.BatchEmbeddingResult{}, fmt.Errorf("empty vector at %d: %w", i, domain.ErrEmbeddingProviderError)
		}
		embeddings[i] = resp.Data[i].Embedding
	}

	e.call.Succeeded(elapsed, map[string]int{
		"prompt": resp.Usage.PromptTokens,
		"total":  resp.Usage.TotalTokens,
	})
	domain.UsageFromContext(ctx).AddTokens(resp.Usage.TotalTokens)

	e.logger.Debug("Embedded texts",
		zap.Int("texts", len(texts)),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", elapsed),
	)

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// wrapAPIError turns a client error into a readable message wrapping sentinel.
func wrapAPIError(kind string, err, sentinel error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s request: %w: %w", kind, err, sentinel)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := detailOf(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		return fmt.Errorf("%s API returned %d: %s: %w", kind, reqErr.HTTPStatusCode, msg, sentinel)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API returned %d: %s: %w", kind, apiErr.HTTPStatusCode, apiErr.Message, sentinel)
	}

	return fmt.Errorf("%s request failed: %v: %w", kind, err, sentinel)
}

// detailOf reads the "detail" field some compatible providers put in error bodies.
func detailOf(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	return parsed.Detail
}
