package knowchain

import "github.com/kailas-cloud/knowchain/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput            = domain.ErrInvalidInput
	ErrCollectionNotFound      = domain.ErrCollectionNotFound
	ErrEmptyDocument           = domain.ErrEmptyDocument
	ErrEmbeddingProviderError  = domain.ErrEmbeddingProviderError
	ErrCompletionProviderError = domain.ErrCompletionProviderError
)

// Error types re-exported from the domain layer. Use errors.As() to check.
type (
	FetchError      = domain.FetchError
	ExtractionError = domain.ExtractionError
	IndexError      = domain.IndexError
	RetrievalError  = domain.RetrievalError
	CompletionError = domain.CompletionError
)
