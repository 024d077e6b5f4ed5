package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/kailas-cloud/knowchain/internal/db"
)

// CreateIndex creates an FT index over HASH keys. An existing index yields
// db.ErrIndexExists so concurrent first writers can both proceed.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an FT index and, through DD, every hash it covered.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name, "DD").Build()
	err := s.do(ctx, cmd).Error()
	switch {
	case err == nil:
		return nil
	case isUnknownIndex(err):
		return db.ErrIndexNotFound
	default:
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
}

// IndexExists asks FT.INFO about name; an unknown index is not an error.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case isUnknownIndex(err):
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name, "ON", "HASH"}

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")
	case db.IndexFieldText:
		args = append(args, "TEXT")
	case db.IndexFieldTag:
		args = append(args, "TAG")
	case db.IndexFieldVector:
		vectorArgs, err := buildVectorFieldArgs(f)
		if err != nil {
			return nil, err
		}
		args = append(args, vectorArgs...)
	default:
		return nil, errors.New("unknown field type")
	}

	return args, nil
}

func buildVectorFieldArgs(f *db.IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}
	if f.VectorM > 0 {
		attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
	}
	if f.VectorEFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
	}

	result := make([]string, 0, 3+len(attrs))
	result = append(result, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
	result = append(result, attrs...)

	return result, nil
}
