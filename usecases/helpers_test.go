package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"relay-server/cache"
	"relay-server/entities"
	"relay-server/repositories"
	"relay-server/services"
)

type clock struct{ t time.Time }

func newClock() *clock { return &clock{t: time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)} }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type collectingSink struct {
	mu     sync.Mutex
	events []entities.StatsEvent
}

func (s *collectingSink) Emit(event entities.StatsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.CommandType)
	}
	return out
}

func (s *collectingSink) reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

// switchableRepo fails every call while down is set.
type switchableRepo struct {
	*repositories.MemoryKeyValueRepository
	mu     sync.Mutex
	down   bool
	writes int
}

var errRepoDown = errors.New("repository unavailable")

func newSwitchableRepo() *switchableRepo {
	return &switchableRepo{MemoryKeyValueRepository: repositories.NewMemoryKeyValueRepository()}
}

func (r *switchableRepo) setDown(down bool) {
	r.mu.Lock()
	r.down = down
	r.mu.Unlock()
}

func (r *switchableRepo) isDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.down
}

func (r *switchableRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if r.isDown() {
		return nil, false, errRepoDown
	}
	return r.MemoryKeyValueRepository.Get(ctx, key)
}

func (r *switchableRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.isDown() {
		return errRepoDown
	}
	r.mu.Lock()
	r.writes++
	r.mu.Unlock()
	return r.MemoryKeyValueRepository.Set(ctx, key, value, ttl)
}

func (r *switchableRepo) Take(ctx context.Context, key string) ([]byte, bool, error) {
	if r.isDown() {
		return nil, false, errRepoDown
	}
	return r.MemoryKeyValueRepository.Take(ctx, key)
}

func (r *switchableRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func newTestStore(repo repositories.KeyValueRepository) *services.Store {
	return services.NewStore(repo, cache.NewFallbackCache(), 100*time.Millisecond)
}

func intPtr(v int) *int { return &v }
