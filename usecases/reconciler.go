package usecases

import (
	"context"
	"time"

	"relay-server/cache"
	"relay-server/entities"
	"relay-server/logs"

	"github.com/sirupsen/logrus"
)

// DefaultLedgerTTL keeps schedule execution markers for 30 days.
const DefaultLedgerTTL = 30 * 24 * time.Hour

// Transition is a classified change between two device reports.
type Transition struct {
	Kind string
	Data map[string]any
}

// Reconciler diffs consecutive device reports and deduplicates schedule
// executions across repeated heartbeats and process restarts.
type Reconciler struct {
	store     Store
	ledger    *cache.ScheduleLedger
	ledgerTTL time.Duration
	now       func() time.Time
	log       *logrus.Entry
}

func NewReconciler(store Store, ledger *cache.ScheduleLedger, ledgerTTL time.Duration) *Reconciler {
	if ledgerTTL <= 0 {
		ledgerTTL = DefaultLedgerTTL
	}
	if ledger == nil {
		ledger = cache.NewScheduleLedger(ledgerTTL)
	}
	return &Reconciler{
		store:     store,
		ledger:    ledger,
		ledgerTTL: ledgerTTL,
		now:       time.Now,
		log:       logs.Component("reconciler"),
	}
}

// WithClock replaces the time source.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Classify returns the transitions between prev and next. A nil prev means
// the previous state could not be recovered and nothing is classified.
// The relay change is evaluated first so an execution is never also
// reported as a cancellation.
func (r *Reconciler) Classify(ctx context.Context, prev *entities.DeviceState, next entities.DeviceState) []Transition {
	if prev == nil {
		return nil
	}
	var out []Transition

	relayChanged := prev.RelayState != "" && prev.RelayState != next.RelayState
	if relayChanged {
		out = append(out, r.relayTransition(ctx, prev, next))
	}

	if !prev.Schedule.IsActive() && next.Schedule.IsActive() {
		out = append(out, Transition{
			Kind: entities.TransitionScheduleSet,
			Data: map[string]any{
				"scheduledDateTime": next.Schedule.ResolvedDateTime(),
				"action":            next.Schedule.Action,
			},
		})
	}

	if prev.Schedule.IsActive() && !next.Schedule.IsActive() && !relayChanged && !next.Schedule.IsExecuted() {
		out = append(out, Transition{
			Kind: entities.TransitionScheduleCanceled,
			Data: map[string]any{
				"scheduledDateTime": prev.Schedule.ResolvedDateTime(),
				"action":            prev.Schedule.Action,
			},
		})
	}
	return out
}

func (r *Reconciler) relayTransition(ctx context.Context, prev *entities.DeviceState, next entities.DeviceState) Transition {
	t := Transition{
		Kind: entities.TransitionManualExecuted,
		Data: map[string]any{
			"action":        next.RelayState,
			"previousState": prev.RelayState,
		},
	}
	s := next.Schedule
	if !s.IsExecuted() || s.Action != next.RelayState {
		return t
	}
	dateTime := s.ResolvedDateTime()
	if !r.firstExecution(ctx, dateTime) {
		r.log.WithField("scheduledDateTime", dateTime).Debug("schedule execution already logged")
		return t
	}
	t.Kind = entities.TransitionScheduleExecuted
	t.Data["scheduledDateTime"] = dateTime
	t.Data["scheduleAction"] = s.Action
	return t
}

// firstExecution checks the in-process ledger, then the persistent one, and
// marks both when dateTime has not been logged yet.
func (r *Reconciler) firstExecution(ctx context.Context, dateTime string) bool {
	if r.ledger.Seen(dateTime) {
		return false
	}
	key := keyScheduleLogged + dateTime
	var loggedAt int64
	out, err := r.store.Peek(ctx, key, &loggedAt)
	if err != nil {
		r.log.WithError(err).Warn("unreadable schedule ledger entry, treating as logged")
		r.ledger.Mark(dateTime)
		return false
	}
	if out.Found {
		r.ledger.Mark(dateTime)
		return false
	}
	if out.Degraded {
		r.log.WithField("scheduledDateTime", dateTime).Warn("schedule ledger unavailable, treating as logged")
		r.ledger.Mark(dateTime)
		return false
	}
	if _, err := r.store.Set(ctx, key, millis(r.now()), r.ledgerTTL); err != nil {
		r.log.WithError(err).Warn("could not write schedule ledger entry")
	}
	r.ledger.Mark(dateTime)
	return true
}
