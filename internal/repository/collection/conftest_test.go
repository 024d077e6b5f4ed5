package collection

import (
	"context"
	"testing"

	"github.com/kailas-cloud/knowchain/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	dropIndexFn   func(ctx context.Context, name string) error
	creates       int
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	m.creates++
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}
