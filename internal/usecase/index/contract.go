package index

import (
	"context"

	"github.com/kailas-cloud/knowchain/internal/domain"
)

// Crawler returns the documents of every page reachable from a seed location.
type Crawler interface {
	Crawl(ctx context.Context, seed string) ([]domain.Document, error)
}

// PDFLoader extracts one document per page of a PDF file.
type PDFLoader interface {
	Load(ctx context.Context, path string) ([]domain.Document, error)
}

// Splitter cuts documents into ordered fragments.
type Splitter interface {
	Documents(docs []domain.Document) []domain.Fragment
}

// Repository stores one batch of vectorized fragments.
type Repository interface {
	Upsert(ctx context.Context, collectionName string, frags []domain.Fragment, vectors [][]float32) error
}

// Collections validates collection names and removes whole collections.
type Collections interface {
	ValidateName(name string) error
	Drop(ctx context.Context, name string) error
}

// PDFLoaderFunc adapts a function to PDFLoader.
type PDFLoaderFunc func(ctx context.Context, path string) ([]domain.Document, error)

// Load calls f.
func (f PDFLoaderFunc) Load(ctx context.Context, path string) ([]domain.Document, error) {
	return f(ctx, path)
}
