package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed Store, grounded on the enrichment pack's
// RedisCache: a single-vs-cluster UniversalClient selected by address
// count, with a namespace prefix to keep session keys out of the way of
// anything else sharing the instance.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisOptions configures RedisStore construction.
type RedisOptions struct {
	Addrs    []string // single: one address; cluster: more than one
	Password string
	DB       int
	Prefix   string // default "rsp2com"
}

// NewRedisStore connects to Redis (single node or cluster, depending on
// len(opts.Addrs)) and verifies the connection with a bounded ping.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if len(opts.Addrs) == 0 {
		return nil, fmt.Errorf("session: at least one redis address is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "rsp2com"
	}

	var client redis.UniversalClient
	if len(opts.Addrs) == 1 {
		client = redis.NewClient(&redis.Options{
			Addr:     opts.Addrs[0],
			Password: opts.Password,
			DB:       opts.DB,
		})
	} else {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    opts.Addrs,
			Password: opts.Password,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: connecting to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) makeKey(key string) string {
	return s.prefix + ":session:" + key
}

// Get returns the value for key, or ok=false on a miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.makeKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session: redis get: %w", err)
	}
	return val, true, nil
}

// Put writes value under key with the given TTL.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.makeKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection(s).
func (s *RedisStore) Close() error {
	return s.client.Close()
}
