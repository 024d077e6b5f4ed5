// Package embedding checks provider output before any vector reaches a collection index.
package embedding

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/domain"
)

// GuardedEmbedder rejects vectors whose dimension differs from the one the
// collection indexes were built for. The index schema fixes the dimension, so
// a provider or model change must fail loudly instead of writing unsearchable
// fragments.
type GuardedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	dim      atomic.Int64 // 0 until configured or learned
	logger   *zap.Logger
}

// NewGuardedEmbedder wraps inner. dimensions <= 0 learns the dimension from
// the first vector returned.
func NewGuardedEmbedder(inner domain.Embedder, provider, model string, dimensions int, logger *zap.Logger) *GuardedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &GuardedEmbedder{inner: inner, provider: provider, model: model, logger: logger}
	if dimensions > 0 {
		g.dim.Store(int64(dimensions))
	}
	return g
}

// Dimensions returns the expected vector length, or 0 before the first call
// when none was configured.
func (g *GuardedEmbedder) Dimensions() int { return int(g.dim.Load()) }

// Embed implements domain.Embedder.
func (g *GuardedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := g.inner.Embed(ctx, text)
	if err != nil {
		g.logFailure(err, 1, start)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	if err := g.check(res.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}
	return res, nil
}

// BatchEmbed implements domain.BatchEmbedder. Every vector is checked; one
// bad vector fails the whole batch.
func (g *GuardedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	res, err := domain.EmbedAll(ctx, g.inner, texts)
	if err != nil {
		g.logFailure(err, len(texts), start)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	for i, vec := range res.Embeddings {
		if err := g.check(vec); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("text %d: %w", i, err)
		}
	}

	g.logger.Debug("Batch embedded",
		zap.String("model", g.model),
		zap.Int("texts", len(texts)),
		zap.Int("total_tokens", res.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// HealthCheck forwards to the inner embedder when it supports it.
func (g *GuardedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := g.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (g *GuardedEmbedder) check(vec []float32) error {
	n := int64(len(vec))
	if n == 0 {
		return fmt.Errorf("empty vector from %s: %w", g.model, domain.ErrEmbeddingProviderError)
	}
	if g.dim.CompareAndSwap(0, n) {
		g.logger.Info("Embedding dimension learned", zap.String("model", g.model), zap.Int64("dimensions", n))
		return nil
	}
	if want := g.dim.Load(); n != want {
		g.logger.Error("Embedding dimension changed",
			zap.String("provider", g.provider),
			zap.String("model", g.model),
			zap.Int64("want", want),
			zap.Int64("got", n),
		)
		return fmt.Errorf("vector has %d dimensions, index expects %d: %w", n, want, domain.ErrEmbeddingProviderError)
	}
	return nil
}

func (g *GuardedEmbedder) logFailure(err error, texts int, start time.Time) {
	g.logger.Error("Embedding request failed",
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.Int("texts", texts),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
}
