package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"relay-server/cache"
	"relay-server/logs"
	"relay-server/metrics"
	"relay-server/repositories"

	"github.com/sirupsen/logrus"
)

// DefaultStoreTimeout bounds every repository call.
const DefaultStoreTimeout = 500 * time.Millisecond

// Outcome describes where a store operation was served from.
type Outcome struct {
	Found    bool
	Degraded bool // the repository failed and the fallback cache answered
}

// StoreError wraps a repository failure or timeout.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

type fetched struct {
	raw   []byte
	found bool
	err   error
}

// Store puts a bounded timeout around the key-value repository and falls back
// to the in-process cache whenever the repository errors or is too slow.
// Fallback writes are not replayed to the repository once it recovers.
type Store struct {
	repo    repositories.KeyValueRepository
	cache   *cache.FallbackCache
	timeout time.Duration
	log     *logrus.Entry
}

func NewStore(repo repositories.KeyValueRepository, fallback *cache.FallbackCache, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if fallback == nil {
		fallback = cache.NewFallbackCache()
	}
	return &Store{
		repo:    repo,
		cache:   fallback,
		timeout: timeout,
		log:     logs.Component("store"),
	}
}

// Name reports the backing repository kind.
func (s *Store) Name() string { return s.repo.Name() }

// Cache exposes the fallback cache for inspection.
func (s *Store) Cache() *cache.FallbackCache { return s.cache }

// Get decodes the value at key into dest and mirrors it into the fallback
// cache.
func (s *Store) Get(ctx context.Context, key string, dest any) (Outcome, error) {
	return s.get(ctx, key, dest, true)
}

// Peek is Get without mirroring the repository value into the fallback cache.
// The repository does not report a key's remaining ttl, so keys written with
// an expiry are read this way to keep the cached copy from outliving them.
func (s *Store) Peek(ctx context.Context, key string, dest any) (Outcome, error) {
	return s.get(ctx, key, dest, false)
}

func (s *Store) get(ctx context.Context, key string, dest any, mirror bool) (Outcome, error) {
	res := s.fetch(ctx, "get", key, func(ctx context.Context) ([]byte, bool, error) {
		return s.repo.Get(ctx, key)
	})
	if res.err != nil {
		s.degrade("get", res.err)
		raw, ok := s.cache.Get(key)
		if !ok {
			return Outcome{Degraded: true}, nil
		}
		return Outcome{Found: true, Degraded: true}, decode(raw, dest)
	}
	if !res.found {
		s.cache.Delete(key)
		return Outcome{}, nil
	}
	if mirror {
		s.cache.Put(key, res.raw, 0)
	}
	return Outcome{Found: true}, decode(res.raw, dest)
}

// Set encodes value and writes it with the given ttl (zero never expires).
// The only error returned is an encoding failure.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) (Outcome, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode %s: %w", key, err)
	}
	res := s.fetch(ctx, "set", key, func(ctx context.Context) ([]byte, bool, error) {
		return nil, false, s.repo.Set(ctx, key, raw, ttl)
	})
	s.cache.Put(key, raw, ttl)
	if res.err != nil {
		s.degrade("set", res.err)
		return Outcome{Degraded: true}, nil
	}
	return Outcome{}, nil
}

// Remember writes value to the fallback cache only.
func (s *Store) Remember(key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.cache.Put(key, raw, ttl)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) Outcome {
	res := s.fetch(ctx, "delete", key, func(ctx context.Context) ([]byte, bool, error) {
		return nil, false, s.repo.Delete(ctx, key)
	})
	s.cache.Delete(key)
	if res.err != nil {
		s.degrade("delete", res.err)
		return Outcome{Degraded: true}
	}
	return Outcome{}
}

// Take reads and removes key, decoding the value into dest.
func (s *Store) Take(ctx context.Context, key string, dest any) (Outcome, error) {
	res := s.fetch(ctx, "take", key, func(ctx context.Context) ([]byte, bool, error) {
		return s.repo.Take(ctx, key)
	})
	if res.err != nil {
		s.degrade("take", res.err)
		raw, ok := s.cache.Take(key)
		if !ok {
			return Outcome{Degraded: true}, nil
		}
		return Outcome{Found: true, Degraded: true}, decode(raw, dest)
	}
	s.cache.Delete(key)
	if !res.found {
		return Outcome{}, nil
	}
	return Outcome{Found: true}, decode(res.raw, dest)
}

// Keys lists live keys with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, Outcome) {
	var keys []string
	res := s.fetch(ctx, "keys", prefix, func(ctx context.Context) ([]byte, bool, error) {
		k, err := s.repo.Keys(ctx, prefix)
		if err != nil {
			return nil, false, err
		}
		raw, err := json.Marshal(k)
		return raw, true, err
	})
	if res.err != nil {
		s.degrade("keys", res.err)
		return s.cache.Keys(prefix), Outcome{Found: true, Degraded: true}
	}
	_ = json.Unmarshal(res.raw, &keys)
	return keys, Outcome{Found: true}
}

// fetch runs fn under the store timeout. A repository that ignores its
// context still cannot hold the caller past the deadline.
func (s *Store) fetch(ctx context.Context, op, key string, fn func(context.Context) ([]byte, bool, error)) fetched {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan fetched, 1)
	go func() {
		raw, found, err := fn(ctx)
		done <- fetched{raw: raw, found: found, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			res.err = &StoreError{Op: op, Key: key, Err: res.err}
		}
		return res
	case <-ctx.Done():
		return fetched{err: &StoreError{Op: op, Key: key, Err: ctx.Err()}}
	}
}

func (s *Store) degrade(op string, err error) {
	metrics.IncStoreFallback(op)
	s.log.WithError(err).Warnf("store %s failed, using in-process cache", op)
}

func decode(raw []byte, dest any) error {
	if dest == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
