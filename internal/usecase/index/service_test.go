package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/split"
)

// --- Mocks ---

type mockCrawler struct {
	crawlFn func(ctx context.Context, seed string) ([]domain.Document, error)
}

func (m *mockCrawler) Crawl(ctx context.Context, seed string) ([]domain.Document, error) {
	return m.crawlFn(ctx, seed)
}

type mockSplitter struct {
	frags []domain.Fragment
}

func (m *mockSplitter) Documents(_ []domain.Document) []domain.Fragment { return m.frags }

type mockEmbedder struct {
	calls int
	err   error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New("single embed not expected")
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(i), 1}
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs, TotalTokens: len(texts) * 10}, nil
}

type upsertCall struct {
	collection string
	texts      []string
}

type mockRepo struct {
	calls    []upsertCall
	upsertFn func(call int) error
}

func (m *mockRepo) Upsert(_ context.Context, collectionName string, frags []domain.Fragment, vectors [][]float32) error {
	if len(frags) != len(vectors) {
		return fmt.Errorf("mismatch %d/%d", len(frags), len(vectors))
	}
	texts := make([]string, len(frags))
	for i, f := range frags {
		texts[i] = f.Text
	}
	m.calls = append(m.calls, upsertCall{collection: collectionName, texts: texts})
	if m.upsertFn != nil {
		return m.upsertFn(len(m.calls))
	}
	return nil
}

type mockCollections struct {
	err     error
	dropErr error
	dropped []string
}

func (m *mockCollections) ValidateName(_ string) error { return m.err }

func (m *mockCollections) Drop(_ context.Context, name string) error {
	m.dropped = append(m.dropped, name)
	return m.dropErr
}

func fragments(n int) []domain.Fragment {
	out := make([]domain.Fragment, n)
	for i := range out {
		out[i] = domain.Fragment{Source: "text", Text: fmt.Sprintf("f%d", i), Seq: i}
	}
	return out
}

func newTestService(sp Splitter, emb domain.Embedder, repo Repository, batchSize int) *Service {
	return New(nil, nil, sp, emb, repo, &mockCollections{}, batchSize, zap.NewNop())
}

// --- Tests ---

func TestIndexText_BatchesInOrder(t *testing.T) {
	repo := &mockRepo{}
	emb := &mockEmbedder{}
	svc := newTestService(&mockSplitter{frags: fragments(5)}, emb, repo, 2)

	report, err := svc.IndexText(context.Background(), "some text", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Collection != domain.CollectionText {
		t.Errorf("collection = %q, want default %q", report.Collection, domain.CollectionText)
	}
	if report.Fragments != 5 || report.Batches != 3 || report.Tokens != 50 {
		t.Errorf("report = %+v", report)
	}
	want := [][]string{{"f0", "f1"}, {"f2", "f3"}, {"f4"}}
	if len(repo.calls) != len(want) {
		t.Fatalf("upserts = %d, want %d", len(repo.calls), len(want))
	}
	for i, c := range repo.calls {
		if strings.Join(c.texts, ",") != strings.Join(want[i], ",") {
			t.Errorf("batch %d = %v, want %v", i, c.texts, want[i])
		}
		if c.collection != domain.CollectionText {
			t.Errorf("batch %d collection = %q", i, c.collection)
		}
	}
	if emb.calls != 3 {
		t.Errorf("embed calls = %d, want 3", emb.calls)
	}
}

func TestIndex_SecondOfFourBatchesFails(t *testing.T) {
	repo := &mockRepo{upsertFn: func(call int) error {
		if call == 2 {
			return errors.New("connection reset")
		}
		return nil
	}}
	svc := newTestService(&mockSplitter{frags: fragments(8)}, &mockEmbedder{}, repo, 2)

	report, err := svc.IndexText(context.Background(), "text", "notes")

	var ie *domain.IndexError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IndexError, got %v", err)
	}
	if ie.Completed != 1 || ie.Total != 4 || ie.Collection != "notes" {
		t.Errorf("index error = %+v", ie)
	}
	if len(repo.calls) != 2 {
		t.Errorf("upserts sent = %d, want 2 (batches 3 and 4 must not be sent)", len(repo.calls))
	}
	if report.Batches != 1 {
		t.Errorf("report batches = %d, want 1", report.Batches)
	}
}

func TestIndex_EmbeddingFailureIsIndexError(t *testing.T) {
	repo := &mockRepo{}
	emb := &mockEmbedder{err: fmt.Errorf("quota: %w", domain.ErrEmbeddingProviderError)}
	svc := newTestService(&mockSplitter{frags: fragments(3)}, emb, repo, 2)

	_, err := svc.IndexText(context.Background(), "text", "")
	var ie *domain.IndexError
	if !errors.As(err, &ie) || ie.Completed != 0 {
		t.Fatalf("expected IndexError with 0 completed, got %v", err)
	}
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected provider error in chain, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Errorf("no upsert expected, got %d", len(repo.calls))
	}
}

func TestIndexText_Validation(t *testing.T) {
	svc := newTestService(&mockSplitter{}, &mockEmbedder{}, &mockRepo{}, 2)
	if _, err := svc.IndexText(context.Background(), "   ", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank text: expected ErrInvalidInput, got %v", err)
	}

	svc.collections = &mockCollections{err: domain.ErrInvalidInput}
	if _, err := svc.IndexText(context.Background(), "text", "bad name"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad collection: expected ErrInvalidInput, got %v", err)
	}
}

func TestIndexWeb(t *testing.T) {
	var seed string
	crawler := &mockCrawler{crawlFn: func(_ context.Context, s string) ([]domain.Document, error) {
		seed = s
		return []domain.Document{
			{Source: "https://ex.com/a", Text: "alpha"},
			{Source: "https://ex.com/b", Text: "beta"},
		}, nil
	}}
	sp, err := split.New(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	repo := &mockRepo{}
	svc := New(crawler, nil, sp, &mockEmbedder{}, repo, &mockCollections{}, 100, zap.NewNop())

	report, err := svc.IndexWeb(context.Background(), "https://ex.com/a", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seed != "https://ex.com/a" {
		t.Errorf("seed = %q", seed)
	}
	if report.Collection != domain.CollectionWeb || report.Documents != 2 || report.Fragments != 2 {
		t.Errorf("report = %+v", report)
	}
	if len(repo.calls) != 1 || strings.Join(repo.calls[0].texts, ",") != "alpha,beta" {
		t.Errorf("upserts = %+v", repo.calls)
	}
}

func TestIndexWeb_CrawlError(t *testing.T) {
	fetchErr := &domain.FetchError{Location: "https://ex.com", Attempts: 3, Err: errors.New("timeout")}
	crawler := &mockCrawler{crawlFn: func(context.Context, string) ([]domain.Document, error) {
		return nil, fetchErr
	}}
	repo := &mockRepo{}
	svc := New(crawler, nil, &mockSplitter{}, &mockEmbedder{}, repo, &mockCollections{}, 100, zap.NewNop())

	_, err := svc.IndexWeb(context.Background(), "https://ex.com", "docs")
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Error("nothing should be upserted")
	}
}

func TestIndexPDF(t *testing.T) {
	loader := PDFLoaderFunc(func(_ context.Context, path string) ([]domain.Document, error) {
		return []domain.Document{
			{Source: path, Text: "first page", Page: 1},
			{Source: path, Text: "second page", Page: 2},
		}, nil
	})
	sp, err := split.New(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	repo := &mockRepo{}
	svc := New(nil, loader, sp, &mockEmbedder{}, repo, &mockCollections{}, 1, zap.NewNop())

	report, err := svc.IndexPDF(context.Background(), "/tmp/manual.pdf", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Collection != domain.CollectionPDF || report.Batches != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestIndexPDF_ExtractionError(t *testing.T) {
	loader := PDFLoaderFunc(func(_ context.Context, path string) ([]domain.Document, error) {
		return nil, &domain.ExtractionError{Source: path, Err: domain.ErrEmptyDocument}
	})
	svc := New(nil, loader, &mockSplitter{}, &mockEmbedder{}, &mockRepo{}, &mockCollections{}, 1, zap.NewNop())

	_, err := svc.IndexPDF(context.Background(), "/tmp/blank.pdf", "")
	if !errors.Is(err, domain.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestIndex_NoFragments(t *testing.T) {
	svc := newTestService(&mockSplitter{}, &mockEmbedder{}, &mockRepo{}, 2)
	_, err := svc.IndexText(context.Background(), "text", "")
	var ee *domain.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestIndex_DefaultBatchSize(t *testing.T) {
	svc := newTestService(&mockSplitter{}, &mockEmbedder{}, &mockRepo{}, 0)
	if svc.batchSize != 100 {
		t.Errorf("batchSize = %d, want 100", svc.batchSize)
	}
}

func TestReset(t *testing.T) {
	colls := &mockCollections{}
	svc := New(nil, nil, &mockSplitter{}, &mockEmbedder{}, &mockRepo{}, colls, 1, zap.NewNop())

	if err := svc.Reset(context.Background(), "pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(colls.dropped) != 1 || colls.dropped[0] != "pdf" {
		t.Errorf("dropped = %v, want [pdf]", colls.dropped)
	}
}

func TestReset_Errors(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		colls      *mockCollections
		want       error
	}{
		{name: "empty name", collection: "", colls: &mockCollections{}, want: domain.ErrInvalidInput},
		{name: "invalid name", collection: "a b", colls: &mockCollections{err: domain.ErrInvalidInput}, want: domain.ErrInvalidInput},
		{name: "unknown", collection: "gone", colls: &mockCollections{dropErr: domain.ErrCollectionNotFound}, want: domain.ErrCollectionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(nil, nil, &mockSplitter{}, &mockEmbedder{}, &mockRepo{}, tt.colls, 1, zap.NewNop())
			if err := svc.Reset(context.Background(), tt.collection); !errors.Is(err, tt.want) {
				t.Errorf("Reset() error = %v, want %v", err, tt.want)
			}
		})
	}
}
