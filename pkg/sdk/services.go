package knowchain

import (
	"context"
	"time"

	indexuc "github.com/kailas-cloud/knowchain/internal/usecase/index"
)

// IndexService ingests content into one collection.
type IndexService struct {
	collection string
	svc        indexUseCase
	obs        *observer
}

// Web crawls every same-origin page reachable from seed and indexes its text.
func (s *IndexService) Web(ctx context.Context, seed string) (rep IndexReport, err error) {
	start := time.Now()
	defer func() { s.observe("index.web", start, rep, err) }()

	r, err := s.svc.IndexWeb(ctx, seed, s.collection)
	return fromReport(r), err
}

// PDF indexes the pages of the PDF file at path.
func (s *IndexService) PDF(ctx context.Context, path string) (rep IndexReport, err error) {
	start := time.Now()
	defer func() { s.observe("index.pdf", start, rep, err) }()

	r, err := s.svc.IndexPDF(ctx, path, s.collection)
	return fromReport(r), err
}

// Text indexes a block of raw text.
func (s *IndexService) Text(ctx context.Context, text string) (rep IndexReport, err error) {
	start := time.Now()
	defer func() { s.observe("index.text", start, rep, err) }()

	r, err := s.svc.IndexText(ctx, text, s.collection)
	return fromReport(r), err
}

// Reset deletes the collection with every fragment stored in it. Resetting a
// collection that was never indexed returns ErrCollectionNotFound.
func (s *IndexService) Reset(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("index.reset", s.collection, start, err) }()

	return s.svc.Reset(ctx, s.collection)
}

func (s *IndexService) observe(op string, start time.Time, rep IndexReport, err error) {
	s.obs.observe(op, s.collection, start, err)
	if err == nil {
		s.obs.indexed(rep.Collection, rep.Fragments)
	}
}

func fromReport(r indexuc.Report) IndexReport {
	return IndexReport{
		Collection: r.Collection,
		Documents:  r.Documents,
		Fragments:  r.Fragments,
		Batches:    r.Batches,
		Tokens:     r.Tokens,
		Duration:   r.Duration,
	}
}

// ChatService answers questions from one collection.
type ChatService struct {
	collection string
	svc        answerUseCase
	obs        *observer
}

// Ask answers query within the conversation sessionID. The exchange is added
// to the conversation only when an answer was produced.
func (s *ChatService) Ask(ctx context.Context, sessionID, query string) (answer string, err error) {
	start := time.Now()
	defer func() { s.obs.observe("chat.ask", s.collection, start, err) }()

	collection := s.collection
	if collection == "" {
		collection = CollectionText
	}
	return s.svc.Answer(ctx, sessionID, query, collection)
}
