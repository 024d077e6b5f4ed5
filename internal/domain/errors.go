package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a malformed caller request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCollectionNotFound signals a query against a collection that was never indexed.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrEmptyDocument signals a source that produced no text at all.
	ErrEmptyDocument = errors.New("empty document")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a chat completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
)

// FetchError is returned once a location could not be fetched within the retry budget.
type FetchError struct {
	Location string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: gave up after %d attempts: %v", e.Location, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError signals a document whose text could not be extracted.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IndexError reports an aborted indexing call. Completed batches were acknowledged
// by the vector store; batch number Completed (zero-based) is the one that failed.
type IndexError struct {
	Collection string
	Completed  int
	Total      int
	Err        error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s: batch %d/%d failed after %d succeeded: %v",
		e.Collection, e.Completed+1, e.Total, e.Completed, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// RetrievalError signals a failed similarity query. No session state was changed.
type RetrievalError struct {
	Collection string
	Err        error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve from %s: %v", e.Collection, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// CompletionError signals a failed language-model call. No session state was changed.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return "completion: " + e.Err.Error()
}

func (e *CompletionError) Unwrap() error { return e.Err }
