// Package fragment stores vectorized fragments as Redis hashes under their collection prefix.
package fragment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kailas-cloud/knowchain/internal/db"
	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/repository/collection"
)

// store is the consumer interface for fragments (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
}

// indexer creates the collection index on first write.
type indexer interface {
	EnsureIndex(ctx context.Context, name string, dim int) error
}

// Repo implements usecase/index.Repository.
type Repo struct {
	store   store
	indexes indexer
	newID   func() string
}

// New creates a fragment repository.
func New(s store, indexes indexer) *Repo {
	return &Repo{store: s, indexes: indexes, newID: uuid.NewString}
}

// Upsert writes one batch of fragments with their vectors in a single pipeline.
// The collection index is created from the vector dimension if it does not exist yet.
// Every fragment gets a fresh key, so re-indexing the same source adds new entries.
func (r *Repo) Upsert(ctx context.Context, collectionName string, frags []domain.Fragment, vectors [][]float32) error {
	if len(frags) != len(vectors) {
		return fmt.Errorf("%d fragments with %d vectors: %w", len(frags), len(vectors), domain.ErrInvalidInput)
	}
	if len(frags) == 0 {
		return nil
	}

	if err := r.indexes.EnsureIndex(ctx, collectionName, len(vectors[0])); err != nil {
		return fmt.Errorf("ensure collection %s: %w", collectionName, err)
	}

	prefix := collection.FragmentPrefix(collectionName)
	items := make([]db.HashSetItem, len(frags))
	for i, f := range frags {
		items[i] = db.HashSetItem{
			Key:    prefix + r.newID(),
			Fields: buildHashFields(f, vectors[i]),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset fragments %s: %w", collectionName, err)
	}
	return nil
}
