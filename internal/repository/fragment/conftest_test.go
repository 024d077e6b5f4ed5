package fragment

import (
	"context"
	"strconv"
	"testing"

	"github.com/kailas-cloud/knowchain/internal/db"
)

type mockStore struct {
	hsetMultiFn func(ctx context.Context, items []db.HashSetItem) error
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

type mockIndexer struct {
	ensureFn func(ctx context.Context, name string, dim int) error
}

func (m *mockIndexer) EnsureIndex(ctx context.Context, name string, dim int) error {
	if m.ensureFn != nil {
		return m.ensureFn(ctx, name, dim)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore, *mockIndexer) {
	t.Helper()
	ms := &mockStore{}
	mi := &mockIndexer{}
	repo := New(ms, mi)
	n := 0
	repo.newID = func() string {
		n++
		return "id" + strconv.Itoa(n)
	}
	return repo, ms, mi
}
