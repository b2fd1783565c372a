// Package redis provides a ledger store backed by a Redis sorted set, scored
// by the unix time each submission was recorded.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey is the sorted set holding processed submission ids.
const DefaultKey = "snapshotbot:oldposts"

type zsetClient interface {
	ZScore(ctx context.Context, key, member string) *goredis.FloatCmd
	ZAddNX(ctx context.Context, key string, members ...goredis.Z) *goredis.IntCmd
	ZRemRangeByScore(ctx context.Context, key, min, max string) *goredis.IntCmd
	Close() error
}

// Store implements the ledger store on Redis.
type Store struct {
	client zsetClient
	key    string
}

// Config describes the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("ledger.redis_addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, cfg.Key), nil
}

// NewWithClient wraps an existing client (primarily for testing).
func NewWithClient(client zsetClient, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key}
}

// Exists reports whether id is a member of the set.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	err := s.client.ZScore(ctx, s.key, id).Err()
	switch {
	case errors.Is(err, goredis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("zscore: %w", err)
	default:
		return true, nil
	}
}

// Insert adds id with its timestamp; an existing member keeps its original score.
func (s *Store) Insert(ctx context.Context, id string, at time.Time) error {
	z := goredis.Z{Score: epochSeconds(at), Member: id}
	if err := s.client.ZAddNX(ctx, s.key, z).Err(); err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	return nil
}

// DeleteBefore removes members scored at or before cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	upper := strconv.FormatFloat(epochSeconds(cutoff), 'f', -1, 64)
	removed, err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", upper).Result()
	if err != nil {
		return 0, fmt.Errorf("zremrangebyscore: %w", err)
	}
	return removed, nil
}

// Close closes the client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
