package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	Value     []byte
	StoredAt  time.Time
	ExpiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// FallbackCache mirrors the last value seen for each store key so the
// mailbox keeps working while the store is unreachable. It lives for the
// process lifetime and is only emptied by Clear.
type FallbackCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewFallbackCache() *FallbackCache {
	return &FallbackCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for expiry.
func (fc *FallbackCache) WithClock(now func() time.Time) *FallbackCache {
	fc.now = now
	return fc
}

// Put stores a copy of value under key. ttl of zero never expires.
func (fc *FallbackCache) Put(key string, value []byte, ttl time.Duration) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	now := fc.now()
	e := entry{Value: append([]byte(nil), value...), StoredAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	fc.entries[key] = e
}

// Get returns a copy of the cached value for key.
func (fc *FallbackCache) Get(key string) ([]byte, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	e, ok := fc.entries[key]
	if !ok || e.expired(fc.now()) {
		return nil, false
	}
	return append([]byte(nil), e.Value...), true
}

// Take returns the cached value and drops it.
func (fc *FallbackCache) Take(key string) ([]byte, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	e, ok := fc.entries[key]
	if !ok {
		return nil, false
	}
	delete(fc.entries, key)
	if e.expired(fc.now()) {
		return nil, false
	}
	return e.Value, true
}

func (fc *FallbackCache) Delete(key string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	delete(fc.entries, key)
}

// Keys lists live keys with the given prefix, sorted.
func (fc *FallbackCache) Keys(prefix string) []string {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	now := fc.now()
	keys := make([]string, 0, len(fc.entries))
	for k, e := range fc.entries {
		if strings.HasPrefix(k, prefix) && !e.expired(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// GetCacheStats returns statistics about the current cache
func (fc *FallbackCache) GetCacheStats() map[string]interface{} {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	totalBytes := 0
	for _, e := range fc.entries {
		totalBytes += len(e.Value)
	}
	return map[string]interface{}{
		"total_keys":  len(fc.entries),
		"total_bytes": totalBytes,
	}
}

// Clear drops every cached entry.
func (fc *FallbackCache) Clear() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.entries = make(map[string]entry)
}
