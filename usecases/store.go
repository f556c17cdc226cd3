package usecases

import (
	"context"
	"encoding/json"
	"time"

	"relay-server/entities"
	"relay-server/services"
)

// Store keys.
const (
	keyPendingCommand = "relay:pending_command"
	keyState          = "relay:state"
	keyErrorLog       = "relay:error_log"
	keyStats          = "relay:stats"
	keyScheduleLogged = "relay:schedule_logged:"

	// KeyPrefix covers every key the relay writes.
	KeyPrefix = "relay:"
)

// Store is the document store the use cases run on; *services.Store
// satisfies it.
type Store interface {
	Get(ctx context.Context, key string, dest any) (services.Outcome, error)
	Peek(ctx context.Context, key string, dest any) (services.Outcome, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) (services.Outcome, error)
	Remember(key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) services.Outcome
	Take(ctx context.Context, key string, dest any) (services.Outcome, error)
	Keys(ctx context.Context, prefix string) ([]string, services.Outcome)
	Name() string
}

// Outcome reports whether a store call found its key and whether it was
// served by the fallback cache.
type Outcome = services.Outcome

// EventSink receives stats events without blocking the caller.
type EventSink interface {
	Emit(event entities.StatsEvent)
}

func millis(t time.Time) int64 { return t.UnixMilli() }

// toMap renders v as a generic JSON object for stats payloads.
func toMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
