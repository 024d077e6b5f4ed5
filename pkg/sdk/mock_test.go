package knowchain

import (
	"context"

	"github.com/kailas-cloud/knowchain/internal/db"
	healthuc "github.com/kailas-cloud/knowchain/internal/usecase/health"
	indexuc "github.com/kailas-cloud/knowchain/internal/usecase/index"
)

// --- indexUseCase mock ---

type mockIndexUC struct {
	webFn   func(ctx context.Context, seed, coll string) (indexuc.Report, error)
	pdfFn   func(ctx context.Context, path, coll string) (indexuc.Report, error)
	textFn  func(ctx context.Context, text, coll string) (indexuc.Report, error)
	resetFn func(ctx context.Context, coll string) error
}

func (m *mockIndexUC) Reset(ctx context.Context, coll string) error {
	return m.resetFn(ctx, coll)
}

func (m *mockIndexUC) IndexWeb(ctx context.Context, seed, coll string) (indexuc.Report, error) {
	return m.webFn(ctx, seed, coll)
}

func (m *mockIndexUC) IndexPDF(ctx context.Context, path, coll string) (indexuc.Report, error) {
	return m.pdfFn(ctx, path, coll)
}

func (m *mockIndexUC) IndexText(ctx context.Context, text, coll string) (indexuc.Report, error) {
	return m.textFn(ctx, text, coll)
}

// --- answerUseCase mock ---

type mockAnswerUC struct {
	answerFn func(ctx context.Context, sessionID, query, coll string) (string, error)
}

func (m *mockAnswerUC) Answer(ctx context.Context, sessionID, query, coll string) (string, error) {
	return m.answerFn(ctx, sessionID, query, coll)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- db.Store stub; wiring only stores the handle ---

type stubStore struct {
	db.Store
	pingErr error
	closed  bool
}

func (s *stubStore) Ping(context.Context) error { return s.pingErr }

func (s *stubStore) Close() { s.closed = true }

// --- public provider mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

type mockCompleter struct {
	fn func(ctx context.Context, system, user string) (string, error)
}

func (m *mockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return m.fn(ctx, system, user)
}

// --- helpers ---

func testClient(indexSvc indexUseCase, answerSvc answerUseCase) *Client {
	return &Client{
		indexSvc:  indexSvc,
		answerSvc: answerSvc,
	}
}
