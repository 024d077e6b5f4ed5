package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kailas-cloud/knowchain/internal/db"
	"github.com/kailas-cloud/knowchain/internal/domain"
)

// store is the consumer interface for collections (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DropIndex(ctx context.Context, name string) error
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo manages the FT index behind each collection. A collection exists once
// its index exists; the first upsert creates it.
type Repo struct {
	store store
	hnsw  HNSWConfig
	known sync.Map // collection name -> struct{}
}

// New creates a collection repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureIndex creates the collection index for vectors of the given dimension
// unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context, name string, dim int) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, ok := r.known.Load(name); ok {
		return nil
	}

	def, err := buildIndex(name, dim, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", name, err)
	}

	r.known.Store(name, struct{}{})
	return nil
}

// Exists reports whether the collection has been created.
func (r *Repo) Exists(ctx context.Context, name string) (bool, error) {
	if _, ok := r.known.Load(name); ok {
		return true, nil
	}
	ok, err := r.store.IndexExists(ctx, IndexName(name))
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", name, err)
	}
	if ok {
		r.known.Store(name, struct{}{})
	}
	return ok, nil
}

// Drop removes the collection index together with its fragment hashes.
func (r *Repo) Drop(ctx context.Context, name string) error {
	r.known.Delete(name)
	if err := r.store.DropIndex(ctx, IndexName(name)); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return domain.ErrCollectionNotFound
		}
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	return nil
}

// ValidateName implements usecase/index.Collections.
func (r *Repo) ValidateName(name string) error { return ValidateName(name) }

// ValidateName rejects collection names that cannot be used as an index name.
func ValidateName(name string) error {
	if !db.IsValidIdentifier(name) {
		return fmt.Errorf("collection name %q: %w", name, domain.ErrInvalidInput)
	}
	return nil
}

// Redis key patterns: knowchain:idx:{name}, knowchain:frag:{name}:{id}

// IndexName returns the FT index name of a collection.
func IndexName(name string) string {
	return fmt.Sprintf("%sidx:%s", domain.KeyPrefix, name)
}

// FragmentPrefix returns the key prefix of the fragment hashes of a collection.
func FragmentPrefix(name string) string {
	return fmt.Sprintf("%sfrag:%s:", domain.KeyPrefix, name)
}
