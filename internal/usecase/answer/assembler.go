package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/knowchain/internal/domain"
)

// Prompt is the retrieval context of one answer turn.
type Prompt struct {
	Hits    []domain.Hit
	Context string // rendered fragments, most similar first
	History string // rendered prior messages, oldest first
}

// Assembler gathers the fragments and history a question is answered from.
type Assembler struct {
	embedder domain.Embedder
	searcher Searcher
	sessions Sessions
	topK     int
}

// NewAssembler creates an Assembler. topK <= 0 uses domain.DefaultTopK.
func NewAssembler(embedder domain.Embedder, searcher Searcher, sessions Sessions, topK int) *Assembler {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	return &Assembler{embedder: embedder, searcher: searcher, sessions: sessions, topK: topK}
}

// Assemble embeds query, fetches the nearest fragments of collectionName and
// renders them together with the session history. It never modifies the session.
// Failures are returned as *domain.RetrievalError; for a collection that was
// never indexed the chain also matches domain.ErrCollectionNotFound.
func (a *Assembler) Assemble(ctx context.Context, sessionID, query, collectionName string) (Prompt, error) {
	res, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return Prompt{}, &domain.RetrievalError{Collection: collectionName, Err: fmt.Errorf("embed query: %w", err)}
	}

	hits, err := a.searcher.SearchKNN(ctx, collectionName, res.Embedding, a.topK)
	if err != nil {
		return Prompt{}, &domain.RetrievalError{Collection: collectionName, Err: err}
	}

	return Prompt{
		Hits:    hits,
		Context: renderHits(hits),
		History: renderHistory(a.sessions.History(sessionID)),
	}, nil
}

func renderHits(hits []domain.Hit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		source := h.Source
		if source == "" {
			source = "unknown"
		}
		if h.Page > 0 {
			source = fmt.Sprintf("%s (page %d)", source, h.Page)
		}
		blocks[i] = "Source: " + source + "\n" + h.Text + "\n"
	}
	return strings.Join(blocks, "\n\n")
}

func renderHistory(msgs []domain.Message) string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = string(m.Role) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}
