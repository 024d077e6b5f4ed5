package collection

import (
	"github.com/kailas-cloud/knowchain/internal/db"
)

// Fragment hash field names.
const (
	FieldText   = "text"
	FieldSource = "source"
	FieldPage   = "page"
	FieldOffset = "offset"
	FieldSeq    = "seq"
	FieldVector = "vector"
)

// buildIndex describes the fragment schema: metadata as TAG/NUMERIC, text as TEXT,
// and an HNSW cosine vector sized to the embedding model.
func buildIndex(name string, dim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(IndexName(name)).
		Prefix(FragmentPrefix(name)).
		Tag(FieldSource).
		Numeric(FieldPage).
		Numeric(FieldSeq).
		Text(FieldText).
		Vector(FieldVector, dim, db.DistanceCosine, hnsw.M, hnsw.EFConstruct).
		Build()
}
