// Package embcache stores embeddings in the key-value side of the vector store.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/db"
	"github.com/kailas-cloud/knowchain/internal/domain"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder caches embeddings keyed by model and the SHA-256 of the text.
// Re-indexing unchanged content and repeated questions then cost no provider tokens.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	model      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. Entries written for one model are never
// served for another. cacheTotal is a counter vec with label "result"
// ("hit"/"miss") and may be nil.
func New(
	inner domain.Embedder,
	s store,
	model string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		model:      model,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// WithTTL expires cache entries ttl after they are written. Zero keeps them.
func (c *CachedEmbedder) WithTTL(ttl time.Duration) *CachedEmbedder {
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

// Embed returns a cached embedding or calls the inner embedder.
// A hit reports zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.putToCache(ctx, key, result.Embedding)
	return result, nil
}

// BatchEmbed serves cached texts from the store and sends the remaining
// distinct texts to the inner embedder in one call. Texts repeated inside the
// batch are embedded once. The result order matches texts.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	embeddings := make([][]float32, len(texts))
	// pending maps a missed key to the positions waiting for it.
	pending := make(map[string][]int)
	var missKeys, missTexts []string

	for i, text := range texts {
		key := c.cacheKey(text)
		if waiting, ok := pending[key]; ok {
			pending[key] = append(waiting, i)
			continue
		}
		if vec, ok := c.getFromCache(ctx, key); ok {
			c.incCache("hit")
			embeddings[i] = vec
			continue
		}
		c.incCache("miss")
		pending[key] = []int{i}
		missKeys = append(missKeys, key)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
	}

	res, err := domain.EmbedAll(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d texts: %w", len(missTexts), err)
	}

	for j, key := range missKeys {
		for _, i := range pending[key] {
			embeddings[i] = res.Embeddings[j]
		}
		c.putToCache(ctx, key, res.Embeddings[j])
	}

	c.logger.Debug("Batch embedded through cache",
		zap.Int("texts", len(texts)),
		zap.Int("embedded", len(missTexts)),
	)

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// HealthCheck forwards to the inner embedder when it supports it.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return domain.KeyPrefix + "emb_cache:" + c.model + ":" + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("Dropping malformed cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

// putToCache never fails the caller: a lost write only costs a later miss.
func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) {
	if err := c.store.Set(ctx, key, encodeVector(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

// encodeVector lays out float32 values little-endian, 4 bytes each.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("cached embedding has %d bytes, not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
