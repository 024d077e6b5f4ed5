// Package index turns web sites, PDF files and raw text into vectorized
// fragments stored under a collection.
package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/domain/batch"
	"github.com/kailas-cloud/knowchain/internal/metrics"
)

// Report summarizes a finished indexing call.
type Report struct {
	Collection string
	Documents  int
	Fragments  int
	Batches    int
	Tokens     int
	Duration   time.Duration
}

// Service runs the ingestion pipeline: extract, split, batch, embed, upsert.
type Service struct {
	crawler     Crawler
	pdf         PDFLoader
	splitter    Splitter
	embedder    domain.Embedder
	repo        Repository
	collections Collections
	batchSize   int
	logger      *zap.Logger
}

// New creates an indexing service. batchSize <= 0 uses the default capacity.
func New(
	crawler Crawler, pdf PDFLoader, splitter Splitter,
	embedder domain.Embedder, repo Repository, collections Collections,
	batchSize int, logger *zap.Logger,
) *Service {
	if batchSize <= 0 {
		batchSize = domain.DefaultIngestConfig().BatchSize
	}
	return &Service{
		crawler:     crawler,
		pdf:         pdf,
		splitter:    splitter,
		embedder:    embedder,
		repo:        repo,
		collections: collections,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// IndexWeb crawls seed and indexes every page reached. Pages that cannot be
// fetched are skipped by the crawler.
func (s *Service) IndexWeb(ctx context.Context, seed, collectionName string) (Report, error) {
	collectionName = orDefault(collectionName, domain.CollectionWeb)
	if err := s.validate(seed, "url", collectionName); err != nil {
		return Report{}, err
	}

	docs, err := s.crawler.Crawl(ctx, seed)
	if err != nil {
		return Report{}, fmt.Errorf("crawl %s: %w", seed, err)
	}
	return s.index(ctx, collectionName, docs)
}

// IndexPDF indexes the pages of the PDF file at path.
func (s *Service) IndexPDF(ctx context.Context, path, collectionName string) (Report, error) {
	collectionName = orDefault(collectionName, domain.CollectionPDF)
	if err := s.validate(path, "file", collectionName); err != nil {
		return Report{}, err
	}

	docs, err := s.pdf.Load(ctx, path)
	if err != nil {
		return Report{}, fmt.Errorf("load pdf: %w", err)
	}
	return s.index(ctx, collectionName, docs)
}

// IndexText indexes text as a single document.
func (s *Service) IndexText(ctx context.Context, text, collectionName string) (Report, error) {
	collectionName = orDefault(collectionName, domain.CollectionText)
	if err := s.validate(text, "text", collectionName); err != nil {
		return Report{}, err
	}

	docs := []domain.Document{{Source: domain.SourceText, Text: text}}
	return s.index(ctx, collectionName, docs)
}

func (s *Service) validate(input, what, collectionName string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%s is required: %w", what, domain.ErrInvalidInput)
	}
	if s.collections != nil {
		if err := s.collections.ValidateName(collectionName); err != nil {
			return err
		}
	}
	return nil
}

// Reset removes a collection together with its fragments. Indexing a source
// again appends fresh fragments, so a full re-index starts with a reset.
func (s *Service) Reset(ctx context.Context, collectionName string) error {
	if collectionName == "" {
		return fmt.Errorf("collection is required: %w", domain.ErrInvalidInput)
	}
	if err := s.collections.ValidateName(collectionName); err != nil {
		return err
	}
	if err := s.collections.Drop(ctx, collectionName); err != nil {
		return fmt.Errorf("reset %s: %w", collectionName, err)
	}
	s.logger.Info("Collection reset", zap.String("collection", collectionName))
	return nil
}

// index splits docs and upserts the fragments batch by batch. A batch is sent
// only after the previous one was stored; the first failure stops the run and
// is returned as *domain.IndexError.
func (s *Service) index(ctx context.Context, collectionName string, docs []domain.Document) (Report, error) {
	start := time.Now()

	frags := s.splitter.Documents(docs)
	if len(frags) == 0 {
		return Report{}, &domain.ExtractionError{Source: firstSource(docs), Err: domain.ErrEmptyDocument}
	}
	metrics.FragmentsTotal.WithLabelValues(collectionName).Add(float64(len(frags)))

	batches := batch.Partition(frags, s.batchSize)
	report := Report{
		Collection: collectionName,
		Documents:  len(docs),
		Fragments:  len(frags),
	}

	for i, b := range batches {
		tokens, err := s.upsertBatch(ctx, collectionName, b)
		if err != nil {
			metrics.BatchesTotal.WithLabelValues(collectionName, "error").Inc()
			s.logger.Error("Batch upsert failed",
				zap.String("collection", collectionName),
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
				zap.Int("completed", i),
				zap.Error(err),
			)
			return report, &domain.IndexError{
				Collection: collectionName,
				Completed:  i,
				Total:      len(batches),
				Err:        err,
			}
		}

		metrics.BatchesTotal.WithLabelValues(collectionName, "ok").Inc()
		report.Batches++
		report.Tokens += tokens
		s.logger.Debug("Batch upserted",
			zap.String("collection", collectionName),
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Int("fragments", len(b)),
		)
	}

	report.Duration = time.Since(start)
	s.logger.Info("Indexing finished",
		zap.String("collection", collectionName),
		zap.Int("documents", report.Documents),
		zap.Int("fragments", report.Fragments),
		zap.Int("batches", report.Batches),
		zap.Int("tokens", report.Tokens),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (s *Service) upsertBatch(ctx context.Context, collectionName string, frags []domain.Fragment) (int, error) {
	texts := make([]string, len(frags))
	for i, f := range frags {
		texts[i] = f.Text
	}

	res, err := domain.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	if err := s.repo.Upsert(ctx, collectionName, frags, res.Embeddings); err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}
	return res.TotalTokens, nil
}

func orDefault(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

func firstSource(docs []domain.Document) string {
	if len(docs) == 0 {
		return ""
	}
	return docs[0].Source
}
