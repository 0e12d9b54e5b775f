// Package kv is a thin façade over the Redis server that holds every piece
// of shared state in the system: cached rates, the key registry, lock
// entries, and the quota and hit counters.
//
// All cross-replica coordination flows through this package; no component
// caches its results beyond a single operation.
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the requested key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// compareAndDeleteScript deletes a key only if its current value matches the
// expected one. Runs server-side so check and delete are a single atomic
// round trip.
const compareAndDeleteScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

// Store wraps a Redis client with the small operation set the proxy needs.
type Store struct {
	client redis.Cmdable
}

// New creates a Store over an existing Redis client.
func New(client redis.Cmdable) *Store {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &Store{client: client}
}

// NewFromURL creates a Store from a redis:// URL.
func NewFromURL(url string) (*Store, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return New(redis.NewClient(options)), nil
}

// Get retrieves the value at key. Returns ErrNotFound for a missing key and
// surfaces transport errors otherwise.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrNotFound
		}
		OperationErrors.WithLabelValues("get").Inc()
		return "", fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// SetWithTTL atomically sets key to value with an expiry.
func (s *Store) SetWithTTL(ctx context.Context, key string, ttl time.Duration, value string) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		OperationErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Incr increments the counter at key, initializing to zero if absent.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		OperationErrors.WithLabelValues("incr").Inc()
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return n, nil
}

// IncrBy increments the counter at key by delta.
func (s *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		OperationErrors.WithLabelValues("incrby").Inc()
		return 0, fmt.Errorf("redis incrby: %w", err)
	}
	return n, nil
}

// GetCounter reads the counter at key. A missing key reads as 0.
func (s *Store) GetCounter(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		OperationErrors.WithLabelValues("get").Inc()
		return 0, fmt.Errorf("redis get counter: %w", err)
	}
	return n, nil
}

// SAdd adds member to the set at key.
func (s *Store) SAdd(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		OperationErrors.WithLabelValues("sadd").Inc()
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// SMembers returns all members of the set at key. A missing set reads as
// empty.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		OperationErrors.WithLabelValues("smembers").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	return members, nil
}

// SetIfAbsentWithTTL performs the atomic NX+PX set. Returns true if the key
// was set, false if it already existed.
func (s *Store) SetIfAbsentWithTTL(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		OperationErrors.WithLabelValues("setnx").Inc()
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return acquired, nil
}

// CompareAndDelete atomically deletes key iff its current value equals
// expected. Returns true when the key was deleted.
func (s *Store) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	deleted, err := s.client.Eval(ctx, compareAndDeleteScript, []string{key}, expected).Int64()
	if err != nil {
		OperationErrors.WithLabelValues("eval").Inc()
		return false, fmt.Errorf("redis eval compare-and-delete: %w", err)
	}
	return deleted == 1, nil
}

// Ping reports whether the Redis server is reachable. It never returns an
// error; its callers are the health reporter and the start-up check in
// cmd/rate-proxy.
func (s *Store) Ping(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}
