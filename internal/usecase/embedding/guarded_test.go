package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/knowchain/internal/domain"
)

// fixedDim embeds every text as a vector of dim values; it has no batch call.
type fixedDim struct {
	dim       int
	err       error
	healthErr error
}

func (f *fixedDim) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: make([]float32, f.dim), TotalTokens: 1}, nil
}

func (f *fixedDim) HealthCheck(context.Context) error { return f.healthErr }

// ragged returns vectors whose lengths come from dims, one per text.
type ragged struct{ dims []int }

func (r *ragged) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New("not used")
}

func (r *ragged) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, r.dims[i])
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

func TestGuardedEmbedder_LearnsDimension(t *testing.T) {
	inner := &fixedDim{dim: 3}
	g := NewGuardedEmbedder(inner, "p", "m", 0, zap.NewNop())

	if g.Dimensions() != 0 {
		t.Fatalf("Dimensions before first call = %d", g.Dimensions())
	}
	if _, err := g.Embed(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Dimensions() != 3 {
		t.Errorf("Dimensions = %d, want 3", g.Dimensions())
	}

	inner.dim = 4
	if _, err := g.Embed(context.Background(), "b"); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("changed dimension: expected provider error, got %v", err)
	}
}

func TestGuardedEmbedder_ConfiguredDimension(t *testing.T) {
	g := NewGuardedEmbedder(&fixedDim{dim: 768}, "p", "m", 1536, nil)

	_, err := g.Embed(context.Background(), "a")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if g.Dimensions() != 1536 {
		t.Errorf("configured dimension must not be replaced, got %d", g.Dimensions())
	}
}

func TestGuardedEmbedder_EmptyVector(t *testing.T) {
	g := NewGuardedEmbedder(&fixedDim{dim: 0}, "p", "m", 0, nil)
	if _, err := g.Embed(context.Background(), "a"); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if g.Dimensions() != 0 {
		t.Errorf("empty vector must not set the dimension, got %d", g.Dimensions())
	}
}

func TestGuardedEmbedder_BatchEmbed(t *testing.T) {
	tests := []struct {
		name    string
		dims    []int
		wantErr bool
	}{
		{name: "uniform", dims: []int{2, 2, 2}},
		{name: "ragged", dims: []int{2, 3, 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuardedEmbedder(&ragged{dims: tt.dims}, "p", "m", 0, nil)
			res, err := g.BatchEmbed(context.Background(), make([]string, len(tt.dims)))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrEmbeddingProviderError) {
					t.Fatalf("expected provider error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Embeddings) != len(tt.dims) || res.TotalTokens != len(tt.dims) {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestGuardedEmbedder_BatchEmbedFallback(t *testing.T) {
	g := NewGuardedEmbedder(&fixedDim{dim: 2}, "p", "m", 0, nil)

	res, err := g.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestGuardedEmbedder_EmptyBatch(t *testing.T) {
	g := NewGuardedEmbedder(&fixedDim{dim: 2}, "p", "m", 0, nil)
	res, err := g.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil {
		t.Errorf("empty batch = %+v, %v", res, err)
	}
}

func TestGuardedEmbedder_InnerErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	down := errors.New("provider down")
	g := NewGuardedEmbedder(&fixedDim{err: down}, "gemini", "m", 0, zap.New(core))

	if _, err := g.Embed(context.Background(), "a"); !errors.Is(err, down) {
		t.Fatalf("expected wrapped inner error, got %v", err)
	}
	if logs.FilterMessage("Embedding request failed").Len() != 1 {
		t.Errorf("expected one failure log, got %v", logs.All())
	}
}

func TestGuardedEmbedder_ConcurrentFirstCalls(t *testing.T) {
	g := NewGuardedEmbedder(&fixedDim{dim: 8}, "p", "m", 0, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Embed(context.Background(), "x"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if g.Dimensions() != 8 {
		t.Errorf("Dimensions = %d, want 8", g.Dimensions())
	}
}

func TestGuardedEmbedder_HealthCheck(t *testing.T) {
	down := errors.New("down")
	if err := NewGuardedEmbedder(&fixedDim{healthErr: down}, "p", "m", 0, nil).HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("expected forwarded error, got %v", err)
	}
	if err := NewGuardedEmbedder(&ragged{}, "p", "m", 0, nil).HealthCheck(context.Background()); err != nil {
		t.Errorf("non-checker inner must be healthy, got %v", err)
	}
}
