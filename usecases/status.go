package usecases

import (
	"context"
	"time"

	"relay-server/entities"
	"relay-server/logs"
	"relay-server/metrics"

	"github.com/sirupsen/logrus"
)

// DefaultConnectionTimeout matches a 60s device heartbeat with headroom.
const DefaultConnectionTimeout = 90 * time.Second

// IsConnected reports whether a heartbeat at lastUpdate (epoch ms) is still fresh at now.
func IsConnected(lastUpdate *int64, now time.Time, timeout time.Duration) bool {
	if lastUpdate == nil {
		return false
	}
	return now.UnixMilli()-*lastUpdate < timeout.Milliseconds()
}

// StatusUseCase owns the device-reported state and error log.
type StatusUseCase struct {
	store             Store
	reconciler        *Reconciler
	sink              EventSink
	connectionTimeout time.Duration
	now               func() time.Time
	log               *logrus.Entry
}

func NewStatusUseCase(store Store, reconciler *Reconciler, sink EventSink, connectionTimeout time.Duration) *StatusUseCase {
	if connectionTimeout <= 0 {
		connectionTimeout = DefaultConnectionTimeout
	}
	return &StatusUseCase{
		store:             store,
		reconciler:        reconciler,
		sink:              sink,
		connectionTimeout: connectionTimeout,
		now:               time.Now,
		log:               logs.Component("status"),
	}
}

// WithClock replaces the time source.
func (uc *StatusUseCase) WithClock(now func() time.Time) *StatusUseCase {
	uc.now = now
	return uc
}

// Report stores a device heartbeat and classifies what changed since the
// previous one. Reports must arrive serially from a single device: the
// load/replace/diff sequence is not transactional.
func (uc *StatusUseCase) Report(ctx context.Context, report entities.StateReport) error {
	if report.RelayState == "" {
		report.RelayState = entities.ActionOff
	}
	if !entities.IsAction(report.RelayState) {
		return invalid("Invalid relayState %q", report.RelayState)
	}
	if s := report.Schedule; s != nil && s.Action != "" && !entities.IsAction(s.Action) {
		return invalid("Invalid schedule action %q", s.Action)
	}

	prev := uc.previous(ctx)

	now := uc.now()
	lastUpdate := millis(now)
	next := entities.DeviceState{
		RelayState: report.RelayState,
		Schedule:   report.Schedule,
		LastUpdate: &lastUpdate,
	}
	if _, err := uc.store.Set(ctx, keyState, next, 0); err != nil {
		return err
	}
	metrics.IncStateReport()
	metrics.SetDeviceConnected(true)

	for _, t := range uc.reconciler.Classify(ctx, prev, next) {
		metrics.IncTransition(t.Kind)
		uc.log.WithField("kind", t.Kind).Info("device transition")
		if uc.sink != nil {
			uc.sink.Emit(entities.StatsEvent{
				Timestamp:   lastUpdate,
				EventType:   entities.EventCommand,
				CommandType: t.Kind,
				CommandData: t.Data,
			})
		}
	}

	if report.Errors != nil {
		return uc.ReplaceErrors(ctx, report.Errors)
	}
	return nil
}

// previous loads the last stored state. It returns an empty state when the
// store positively has none, and nil when the store is unavailable and the
// cache cannot stand in for it.
func (uc *StatusUseCase) previous(ctx context.Context) *entities.DeviceState {
	var prev entities.DeviceState
	out, err := uc.store.Get(ctx, keyState, &prev)
	switch {
	case err != nil:
		uc.log.WithError(err).Warn("stored device state unreadable, skipping transition detection")
		return nil
	case out.Found:
		return &prev
	case out.Degraded:
		uc.log.Warn("previous device state unavailable, skipping transition detection")
		return nil
	default:
		return &entities.DeviceState{}
	}
}

// Get returns the authoritative device state for the panel. The error log
// is only loaded when asked for, keeping the polling path to one read.
func (uc *StatusUseCase) Get(ctx context.Context, includeErrors bool) (entities.StatusView, error) {
	var st entities.DeviceState
	out, err := uc.store.Get(ctx, keyState, &st)
	if err != nil {
		return entities.StatusView{}, err
	}
	if !out.Found || st.RelayState == "" {
		st.RelayState = entities.ActionOff
	}

	view := entities.StatusView{
		RelayState:  st.RelayState,
		Schedule:    st.Schedule,
		LastUpdate:  st.LastUpdate,
		IsConnected: IsConnected(st.LastUpdate, uc.now(), uc.connectionTimeout),
	}
	metrics.SetDeviceConnected(view.IsConnected)

	if includeErrors {
		log, err := uc.Errors(ctx)
		if err != nil {
			return entities.StatusView{}, err
		}
		view.Errors = log.Errors
	}
	return view, nil
}

// Errors returns the stored device error log.
func (uc *StatusUseCase) Errors(ctx context.Context) (entities.ErrorLog, error) {
	var log entities.ErrorLog
	if _, err := uc.store.Get(ctx, keyErrorLog, &log); err != nil {
		return entities.ErrorLog{}, err
	}
	if log.Errors == nil {
		log.Errors = []entities.ErrorLogEntry{}
	}
	return log, nil
}

// ReplaceErrors overwrites the error log with the normalized reports.
func (uc *StatusUseCase) ReplaceErrors(ctx context.Context, reports []entities.ErrorReport) error {
	log := entities.ErrorLog{Errors: NormalizeErrors(reports)}
	_, err := uc.store.Set(ctx, keyErrorLog, log, 0)
	return err
}

// NormalizeErrors renders device error timestamps (epoch seconds) as ISO-8601.
func NormalizeErrors(reports []entities.ErrorReport) []entities.ErrorLogEntry {
	out := make([]entities.ErrorLogEntry, 0, len(reports))
	for _, r := range reports {
		out = append(out, entities.ErrorLogEntry{
			Timestamp: r.Timestamp,
			Time:      time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339),
			Message:   r.Message,
		})
	}
	return out
}
