package cache

import (
	"sync"
	"time"
)

// ScheduleLedger is the in-process view of schedule occurrences that were
// already logged as executed. It is consulted before the persistent ledger
// and forgets entries after the same ttl.
type ScheduleLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewScheduleLedger returns a ledger whose marks expire after ttl. A ttl of
// zero keeps marks for the process lifetime.
func NewScheduleLedger(ttl time.Duration) *ScheduleLedger {
	return &ScheduleLedger{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for expiry.
func (l *ScheduleLedger) WithClock(now func() time.Time) *ScheduleLedger {
	l.now = now
	return l
}

func (l *ScheduleLedger) Seen(dateTime string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	markedAt, ok := l.seen[dateTime]
	if !ok {
		return false
	}
	if l.expired(markedAt, l.now()) {
		delete(l.seen, dateTime)
		return false
	}
	return true
}

// Mark records dateTime and drops every expired mark.
func (l *ScheduleLedger) Mark(dateTime string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, markedAt := range l.seen {
		if l.expired(markedAt, now) {
			delete(l.seen, k)
		}
	}
	l.seen[dateTime] = now
}

func (l *ScheduleLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

func (l *ScheduleLedger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]time.Time)
}

func (l *ScheduleLedger) expired(markedAt, now time.Time) bool {
	return l.ttl > 0 && !now.Before(markedAt.Add(l.ttl))
}
