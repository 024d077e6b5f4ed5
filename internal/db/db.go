// Package db defines the vector store contract the repositories are written against.
package db

import (
	"context"
	"time"
)

// Store is everything the service needs from the vector store.
// Repositories depend on the narrow interfaces below.
type Store interface {
	Pinger
	FragmentWriter
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one hash written by HSetMulti.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// FragmentWriter stores fragment hashes in pipelined batches.
type FragmentWriter interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
}

// KVStore holds opaque values such as cached embeddings.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A ttl of zero keeps it until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex removes an index and the hashes it covers.
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs nearest-neighbor queries over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
