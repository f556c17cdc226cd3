package usecases

import (
	"context"
	"sync"
	"time"

	"relay-server/cache"
	"relay-server/entities"
	"relay-server/logs"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// MaxStatsEvents caps each stats category; older entries are evicted first.
	MaxStatsEvents = 1000
	// RecentStatsEvents is how many entries per category a query returns.
	RecentStatsEvents = 50

	statsTimeLayout = "02/01/2006, 15:04:05 MST"
)

// StatsSummary holds the aggregate counts of a stats query.
type StatsSummary struct {
	TotalLogins          int            `json:"totalLogins"`
	TotalCommands        int            `json:"totalCommands"`
	Logins24h            int            `json:"logins24h"`
	Logins7d             int            `json:"logins7d"`
	Commands24h          int            `json:"commands24h"`
	Commands7d           int            `json:"commands7d"`
	CommandTypeBreakdown map[string]int `json:"commandTypeBreakdown"`
}

// RecentEvent is a stats event rendered for display.
type RecentEvent struct {
	Timestamp   int64          `json:"timestamp"`
	Time        string         `json:"time"`
	UserAgent   string         `json:"userAgent,omitempty"`
	CommandType string         `json:"commandType,omitempty"`
	CommandData map[string]any `json:"commandData,omitempty"`
}

type StatsReport struct {
	Summary        StatsSummary  `json:"summary"`
	RecentLogins   []RecentEvent `json:"recentLogins"`
	RecentCommands []RecentEvent `json:"recentCommands"`
	Storage        string        `json:"storage"`
	Degraded       bool          `json:"degraded,omitempty"`
}

// StatsDump is the raw view used for diagnosing the stats document.
type StatsDump struct {
	StatsData   *entities.StatsLog     `json:"statsData"`
	StatsIsNull bool                   `json:"statsIsNull"`
	Keys        []string               `json:"allKeys"`
	Storage     string                 `json:"storage"`
	Degraded    bool                   `json:"degraded"`
	Cache       map[string]interface{} `json:"cache"`
	Timestamp   int64                  `json:"timestamp"`
}

// StatsUseCase maintains the bounded login and command event log.
type StatsUseCase struct {
	store Store
	cache *cache.FallbackCache
	loc   *time.Location
	now   func() time.Time
	log   *logrus.Entry

	// serializes the read-modify-write of the stats document within this process
	mu sync.Mutex
}

func NewStatsUseCase(store Store, fallback *cache.FallbackCache, loc *time.Location) *StatsUseCase {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsUseCase{
		store: store,
		cache: fallback,
		loc:   loc,
		now:   time.Now,
		log:   logs.Component("stats"),
	}
}

// WithClock replaces the time source.
func (uc *StatsUseCase) WithClock(now func() time.Time) *StatsUseCase {
	uc.now = now
	return uc
}

// Record appends event to its category. When the stats document could only
// be loaded from the fallback cache the update is kept in the cache and the
// store is left untouched, so a stale copy never overwrites good data.
func (uc *StatsUseCase) Record(ctx context.Context, event entities.StatsEvent) error {
	if event.EventType != entities.EventLogin && event.EventType != entities.EventCommand {
		return invalid("Invalid eventType (must be \"login\" or \"command\")")
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	stats, out, err := uc.load(ctx)
	if err != nil {
		return err
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp == 0 {
		event.Timestamp = millis(uc.now())
	}

	switch event.EventType {
	case entities.EventLogin:
		if event.UserAgent == "" {
			event.UserAgent = "unknown"
		}
		stats.Logins = appendCapped(stats.Logins, event)
	case entities.EventCommand:
		if event.CommandType == "" {
			event.CommandType = "unknown"
		}
		stats.Commands = appendCapped(stats.Commands, event)
	}

	if out.Degraded {
		uc.log.Warn("stats loaded from fallback cache, keeping update in process memory")
		return uc.store.Remember(keyStats, stats, 0)
	}
	_, err = uc.store.Set(ctx, keyStats, stats, 0)
	return err
}

func appendCapped(events []entities.StatsEvent, event entities.StatsEvent) []entities.StatsEvent {
	events = append(events, event)
	if len(events) > MaxStatsEvents {
		events = append([]entities.StatsEvent(nil), events[len(events)-MaxStatsEvents:]...)
	}
	return events
}

func (uc *StatsUseCase) load(ctx context.Context) (entities.StatsLog, Outcome, error) {
	var stats entities.StatsLog
	out, err := uc.store.Get(ctx, keyStats, &stats)
	if err != nil {
		return entities.StatsLog{}, out, err
	}
	if stats.Logins == nil {
		stats.Logins = []entities.StatsEvent{}
	}
	if stats.Commands == nil {
		stats.Commands = []entities.StatsEvent{}
	}
	return stats, out, nil
}

// Query summarizes the stored events.
func (uc *StatsUseCase) Query(ctx context.Context) (StatsReport, error) {
	stats, out, err := uc.load(ctx)
	if err != nil {
		return StatsReport{}, err
	}

	now := uc.now()
	day := millis(now.Add(-24 * time.Hour))
	week := millis(now.Add(-7 * 24 * time.Hour))

	summary := StatsSummary{
		TotalLogins:          len(stats.Logins),
		TotalCommands:        len(stats.Commands),
		CommandTypeBreakdown: map[string]int{},
	}
	for _, e := range stats.Logins {
		if e.Timestamp > day {
			summary.Logins24h++
		}
		if e.Timestamp > week {
			summary.Logins7d++
		}
	}
	for _, e := range stats.Commands {
		if e.Timestamp > day {
			summary.Commands24h++
		}
		if e.Timestamp > week {
			summary.Commands7d++
		}
		kind := e.CommandType
		if kind == "" {
			kind = "unknown"
		}
		summary.CommandTypeBreakdown[kind]++
	}

	return StatsReport{
		Summary:        summary,
		RecentLogins:   uc.recent(stats.Logins),
		RecentCommands: uc.recent(stats.Commands),
		Storage:        uc.store.Name(),
		Degraded:       out.Degraded,
	}, nil
}

// recent returns the newest RecentStatsEvents entries, newest first.
func (uc *StatsUseCase) recent(events []entities.StatsEvent) []RecentEvent {
	start := len(events) - RecentStatsEvents
	if start < 0 {
		start = 0
	}
	out := make([]RecentEvent, 0, len(events)-start)
	for i := len(events) - 1; i >= start; i-- {
		e := events[i]
		out = append(out, RecentEvent{
			Timestamp:   e.Timestamp,
			Time:        time.UnixMilli(e.Timestamp).In(uc.loc).Format(statsTimeLayout),
			UserAgent:   e.UserAgent,
			CommandType: e.CommandType,
			CommandData: e.CommandData,
		})
	}
	return out
}

// Clear wipes both categories.
func (uc *StatsUseCase) Clear(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	_, err := uc.store.Set(ctx, keyStats, entities.StatsLog{
		Logins:   []entities.StatsEvent{},
		Commands: []entities.StatsEvent{},
	}, 0)
	return err
}

// Dump returns the raw stats document together with every relay key.
func (uc *StatsUseCase) Dump(ctx context.Context) (StatsDump, error) {
	var stats entities.StatsLog
	out, err := uc.store.Get(ctx, keyStats, &stats)
	if err != nil {
		return StatsDump{}, err
	}
	keys, keysOut := uc.store.Keys(ctx, KeyPrefix)
	dump := StatsDump{
		StatsIsNull: !out.Found,
		Keys:        keys,
		Storage:     uc.store.Name(),
		Degraded:    out.Degraded || keysOut.Degraded,
		Timestamp:   millis(uc.now()),
	}
	if out.Found {
		dump.StatsData = &stats
	}
	if uc.cache != nil {
		dump.Cache = uc.cache.GetCacheStats()
	}
	return dump, nil
}
