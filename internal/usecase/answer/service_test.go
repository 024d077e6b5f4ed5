package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/session"
)

// --- Mocks ---

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

type mockSearcher struct {
	searchFn func(ctx context.Context, coll string, vec []float32, k int) ([]domain.Hit, error)
}

func (m *mockSearcher) SearchKNN(ctx context.Context, coll string, vec []float32, k int) ([]domain.Hit, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, coll, vec, k)
	}
	return []domain.Hit{
		{Source: "https://ex.com/a", Text: "alpha text", Score: 0.9},
		{Source: "manual.pdf", Text: "beta text", Page: 4, Score: 0.8},
	}, nil
}

type mockCompleter struct {
	prompts []string
	replies []string
	err     error
}

func (m *mockCompleter) Complete(_ context.Context, system, user string) (string, error) {
	m.prompts = append(m.prompts, system)
	if m.err != nil {
		return "", m.err
	}
	reply := fmt.Sprintf("answer %d to %s", len(m.prompts), user)
	m.replies = append(m.replies, reply)
	return reply, nil
}

func newTestService(t *testing.T, emb *mockEmbedder, srch *mockSearcher, comp *mockCompleter) (*Service, *session.Store) {
	t.Helper()
	store := session.New(0, zap.NewNop())
	t.Cleanup(store.Close)
	asm := NewAssembler(emb, srch, store, 0)
	return New(asm, comp, store, "", zap.NewNop()), store
}

// --- Tests ---

func TestAnswer_RecordsTurn(t *testing.T) {
	comp := &mockCompleter{}
	svc, store := newTestService(t, &mockEmbedder{}, &mockSearcher{}, comp)

	reply, err := svc.Answer(context.Background(), "s1", "what is alpha?", "website_docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "answer 1 to what is alpha?" {
		t.Errorf("reply = %q", reply)
	}

	h := store.History("s1")
	if len(h) != 2 {
		t.Fatalf("history len = %d, want 2", len(h))
	}
	if h[0] != (domain.Message{Role: domain.RoleUser, Content: "what is alpha?"}) {
		t.Errorf("first message = %+v", h[0])
	}
	if h[1] != (domain.Message{Role: domain.RoleAssistant, Content: reply}) {
		t.Errorf("second message = %+v", h[1])
	}

	prompt := comp.prompts[0]
	if !strings.HasPrefix(prompt, DefaultInstructions) {
		t.Error("system prompt must start with the instructions")
	}
	wantCtx := "Source: https://ex.com/a\nalpha text\n\n\nSource: manual.pdf (page 4)\nbeta text\n"
	if !strings.Contains(prompt, "Context: "+wantCtx) {
		t.Errorf("system prompt missing rendered context:\n%s", prompt)
	}
}

func TestAnswer_SecondCallSeesFirstTurn(t *testing.T) {
	comp := &mockCompleter{}
	svc, _ := newTestService(t, &mockEmbedder{}, &mockSearcher{}, comp)
	ctx := context.Background()

	first, err := svc.Answer(ctx, "s1", "first question", "text")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Answer(ctx, "s1", "second question", "text"); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(comp.prompts[0], "first question") {
		t.Error("first prompt must have empty history")
	}
	wantHistory := "Previous conversation:\nuser: first question\nassistant: " + first + "\n"
	if !strings.HasSuffix(comp.prompts[1], wantHistory) {
		t.Errorf("second prompt history mismatch:\n%s", comp.prompts[1])
	}
}

func TestAnswer_SessionsAreIsolated(t *testing.T) {
	comp := &mockCompleter{}
	svc, store := newTestService(t, &mockEmbedder{}, &mockSearcher{}, comp)
	ctx := context.Background()

	if _, err := svc.Answer(ctx, "a", "from a", "text"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Answer(ctx, "b", "from b", "text"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(comp.prompts[1], "from a") {
		t.Error("session b must not see session a's history")
	}
	if len(store.History("a")) != 2 || len(store.History("b")) != 2 {
		t.Error("each session should hold one turn")
	}
}

func TestAnswer_CompletionFailureLeavesSession(t *testing.T) {
	comp := &mockCompleter{}
	svc, store := newTestService(t, &mockEmbedder{}, &mockSearcher{}, comp)
	ctx := context.Background()

	if _, err := svc.Answer(ctx, "s1", "ok", "text"); err != nil {
		t.Fatal(err)
	}
	comp.err = fmt.Errorf("rate limited: %w", domain.ErrCompletionProviderError)

	_, err := svc.Answer(ctx, "s1", "fails", "text")
	var ce *domain.CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompletionError, got %v", err)
	}
	if !errors.Is(err, domain.ErrCompletionProviderError) {
		t.Errorf("provider sentinel lost: %v", err)
	}
	if n := len(store.History("s1")); n != 2 {
		t.Errorf("history len = %d, want 2 (no partial turn)", n)
	}
}

func TestAnswer_RetrievalFailure(t *testing.T) {
	srch := &mockSearcher{searchFn: func(context.Context, string, []float32, int) ([]domain.Hit, error) {
		return nil, errors.New("connection refused")
	}}
	comp := &mockCompleter{}
	svc, store := newTestService(t, &mockEmbedder{}, srch, comp)

	_, err := svc.Answer(context.Background(), "s1", "q", "docs")
	var re *domain.RetrievalError
	if !errors.As(err, &re) || re.Collection != "docs" {
		t.Fatalf("expected RetrievalError for docs, got %v", err)
	}
	if len(comp.prompts) != 0 {
		t.Error("completion must not be called")
	}
	if len(store.History("s1")) != 0 {
		t.Error("session must not be created")
	}
}

func TestAnswer_QueryEmbeddingFailure(t *testing.T) {
	emb := &mockEmbedder{err: fmt.Errorf("down: %w", domain.ErrEmbeddingProviderError)}
	svc, _ := newTestService(t, emb, &mockSearcher{}, &mockCompleter{})

	_, err := svc.Answer(context.Background(), "s1", "q", "docs")
	var re *domain.RetrievalError
	if !errors.As(err, &re) || !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected RetrievalError wrapping provider error, got %v", err)
	}
}

func TestAnswer_UnknownCollection(t *testing.T) {
	srch := &mockSearcher{searchFn: func(context.Context, string, []float32, int) ([]domain.Hit, error) {
		return nil, fmt.Errorf("search knn nope: %w", domain.ErrCollectionNotFound)
	}}
	svc, _ := newTestService(t, &mockEmbedder{}, srch, &mockCompleter{})

	_, err := svc.Answer(context.Background(), "s1", "q", "nope")
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestAnswer_Validation(t *testing.T) {
	svc, _ := newTestService(t, &mockEmbedder{}, &mockSearcher{}, &mockCompleter{})
	tests := []struct {
		name, session, query, collection string
	}{
		{"no session", "", "q", "text"},
		{"blank query", "s1", "  ", "text"},
		{"no collection", "s1", "q", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Answer(context.Background(), tt.session, tt.query, tt.collection)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAssembler_TopK(t *testing.T) {
	var gotK int
	var gotColl string
	srch := &mockSearcher{searchFn: func(_ context.Context, coll string, _ []float32, k int) ([]domain.Hit, error) {
		gotK, gotColl = k, coll
		return nil, nil
	}}
	store := session.New(0, zap.NewNop())
	defer store.Close()

	p, err := NewAssembler(&mockEmbedder{}, srch, store, 0).Assemble(context.Background(), "s", "q", "pdf")
	if err != nil {
		t.Fatal(err)
	}
	if gotK != domain.DefaultTopK || gotColl != "pdf" {
		t.Errorf("k = %d, collection = %q", gotK, gotColl)
	}
	if p.Context != "" || p.History != "" {
		t.Errorf("empty prompt expected, got %+v", p)
	}
}

func TestRenderHits_UnknownSource(t *testing.T) {
	got := renderHits([]domain.Hit{{Text: "t"}})
	if got != "Source: unknown\nt\n" {
		t.Errorf("renderHits = %q", got)
	}
}

func TestNew_CustomInstructions(t *testing.T) {
	comp := &mockCompleter{}
	store := session.New(0, zap.NewNop())
	defer store.Close()
	svc := New(NewAssembler(&mockEmbedder{}, &mockSearcher{}, store, 1), comp, store, "Answer in French.", zap.NewNop())

	if _, err := svc.Answer(context.Background(), "s", "q", "text"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(comp.prompts[0], "Answer in French.\nContext: ") {
		t.Errorf("prompt = %q", comp.prompts[0])
	}
}
