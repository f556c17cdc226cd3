package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryKeyValueRepository keeps everything in process. It is used when no
// database driver is configured and in tests.
type MemoryKeyValueRepository struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryKeyValueRepository() *MemoryKeyValueRepository {
	return &MemoryKeyValueRepository{entries: make(map[string]memoryEntry), now: time.Now}
}

// WithClock replaces the time source used for expiry.
func (r *MemoryKeyValueRepository) WithClock(now func() time.Time) *MemoryKeyValueRepository {
	r.now = now
	return r
}

func (r *MemoryKeyValueRepository) Name() string { return "in-memory" }

func (r *MemoryKeyValueRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (r *MemoryKeyValueRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = r.now().Add(ttl)
	}
	r.mu.Lock()
	r.entries[key] = e
	r.mu.Unlock()
	return nil
}

func (r *MemoryKeyValueRepository) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
	return nil
}

func (r *MemoryKeyValueRepository) Take(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(key)
	if !ok {
		return nil, false, nil
	}
	delete(r.entries, key)
	return e.value, true, nil
}

func (r *MemoryKeyValueRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if _, ok := r.lookup(k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// lookup must be called with mu held.
func (r *MemoryKeyValueRepository) lookup(key string) (memoryEntry, bool) {
	e, ok := r.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(r.now()) {
		delete(r.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}
