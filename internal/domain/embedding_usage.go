package domain

import (
	"context"
	"sync"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects embedding token usage for a single index or answer call.
// The caller puts a pointer into the context; embedders add to it after each request.
type EmbeddingUsage struct {
	mu          sync.Mutex
	totalTokens int
	calls       int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens. Safe on a nil receiver.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.totalTokens += n
	u.calls++
	u.mu.Unlock()
}

// TotalTokens returns the tokens recorded so far.
func (u *EmbeddingUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totalTokens
}

// Calls returns how many embedding requests were recorded.
func (u *EmbeddingUsage) Calls() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}
