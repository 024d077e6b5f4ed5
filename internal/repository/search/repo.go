package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/knowchain/internal/db"
	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/repository/collection"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the similarity query side of the vector store.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

var returnFields = []string{
	collection.FieldText,
	collection.FieldSource,
	collection.FieldPage,
}

// SearchKNN returns the k fragments of a collection nearest to vector, most similar first.
// A collection whose index does not exist yields domain.ErrCollectionNotFound.
func (r *Repo) SearchKNN(ctx context.Context, collectionName string, vector []float32, k int) ([]domain.Hit, error) {
	q := &db.KNNQuery{
		IndexName:    collection.IndexName(collectionName),
		VectorField:  collection.FieldVector,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("search knn %s: %w", collectionName, domain.ErrCollectionNotFound)
		}
		return nil, fmt.Errorf("search knn %s: %w", collectionName, err)
	}

	return parseKNNResults(sr, collectionName), nil
}

// parseKNNResults converts db.SearchResult into hits, keeping the store's order.
func parseKNNResults(sr *db.SearchResult, collectionName string) []domain.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	prefix := collection.FragmentPrefix(collectionName)
	hits := make([]domain.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		page, _ := strconv.Atoi(entry.Fields[collection.FieldPage])
		hits = append(hits, domain.Hit{
			ID:     strings.TrimPrefix(entry.Key, prefix),
			Score:  entry.Score,
			Source: entry.Fields[collection.FieldSource],
			Text:   entry.Fields[collection.FieldText],
			Page:   page,
		})
	}
	return hits
}
