// Package redis implements db.Store on Redis 8 with the query engine, using rueidis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/knowchain/internal/db"
)

var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store is the Redis-backed vector store.
type Store struct {
	client rueidis.Client
}

// NewStore connects to the first reachable address of cfg.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		// FT.SEARCH replies are parsed in their RESP2 array shape.
		AlwaysRESP2: true,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: connect %v: %w", cfg.Addrs, err)
	}

	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings with growing pauses until the store answers or timeout
// passes. The last ping failure is returned.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = timeout

	err := backoff.Retry(func() error { return s.Ping(ctx) }, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("database not ready after %s: %w", timeout, err)
	}
	return nil
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr reports whether err is a server reply mentioning substr, ignoring case.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	return ok && containsIgnoreCase(re.Error(), substr)
}

// isUnknownIndex matches the replies Redis and its forks give for a missing FT index.
func isUnknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
