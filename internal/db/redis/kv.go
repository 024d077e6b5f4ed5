package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/knowchain/internal/db"
)

// Get returns the value at key or db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	switch {
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	case err != nil:
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores value at key, expiring it after ttl when ttl is positive.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value))
	var err error
	if ttl > 0 {
		err = s.do(ctx, cmd.Ex(ttl).Build()).Error()
	} else {
		err = s.do(ctx, cmd.Build()).Error()
	}
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}
