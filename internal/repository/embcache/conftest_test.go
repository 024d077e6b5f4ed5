package embcache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/db"
	"github.com/kailas-cloud/knowchain/internal/domain"
)

// fakeProvider embeds a text as [len(text)] and records what it was asked.
type fakeProvider struct {
	err        error
	singles    []string
	batches    [][]string
	healthErr  error
	tokensEach int
}

func (p *fakeProvider) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if p.err != nil {
		return domain.EmbeddingResult{}, p.err
	}
	p.singles = append(p.singles, text)
	return domain.EmbeddingResult{
		Embedding:   []float32{float32(len(text))},
		TotalTokens: p.tokensEach,
	}, nil
}

func (p *fakeProvider) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if p.err != nil {
		return domain.BatchEmbeddingResult{}, p.err
	}
	p.batches = append(p.batches, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return domain.BatchEmbeddingResult{
		Embeddings:  out,
		TotalTokens: p.tokensEach * len(texts),
	}, nil
}

func (p *fakeProvider) HealthCheck(context.Context) error { return p.healthErr }

// memKV is an in-memory key-value store.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memKV) keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func newTestCache(t *testing.T, model string) (*CachedEmbedder, *fakeProvider, *memKV) {
	t.Helper()
	p := &fakeProvider{tokensEach: 4}
	kv := newMemKV()
	return New(p, kv, model, nil, zap.NewNop()), p, kv
}
