package usecases

import (
	"context"
	"reflect"
	"testing"

	"relay-server/cache"
	"relay-server/entities"
)

func executedOn() *entities.Schedule {
	return &entities.Schedule{Day: 5, Month: 1, Year: 2025, Hour: 10, Minute: 0, Action: "on", Executed: true}
}

func TestScheduleExecutedThenDeduplicated(t *testing.T) {
	ctx := context.Background()
	uc, sink, _ := newStatusFixture(newSwitchableRepo())

	_ = uc.Report(ctx, entities.StateReport{RelayState: "off"})
	_ = uc.Report(ctx, entities.StateReport{RelayState: "on", Schedule: executedOn()})

	if got := sink.kinds(); !reflect.DeepEqual(got, []string{entities.TransitionScheduleExecuted}) {
		t.Fatalf("expected schedule_executed, got %v", got)
	}
	data := sink.events[0].CommandData
	if data["scheduledDateTime"] != "2025-01-05T10:00:00" || data["scheduleAction"] != "on" || data["previousState"] != "off" {
		t.Fatalf("unexpected data %v", data)
	}

	sink.reset()
	_ = uc.Report(ctx, entities.StateReport{RelayState: "off", Schedule: executedOn()})
	_ = uc.Report(ctx, entities.StateReport{RelayState: "on", Schedule: executedOn()})

	want := []string{entities.TransitionManualExecuted, entities.TransitionManualExecuted}
	if got := sink.kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("repeat of a logged schedule should be manual, got %v", got)
	}
}

func TestScheduleLedgerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	repo := newSwitchableRepo()
	store := newTestStore(repo)

	first := NewReconciler(store, cache.NewScheduleLedger(DefaultLedgerTTL), DefaultLedgerTTL)
	prev := &entities.DeviceState{RelayState: "off"}
	next := entities.DeviceState{RelayState: "on", Schedule: executedOn()}
	if got := first.Classify(ctx, prev, next); got[0].Kind != entities.TransitionScheduleExecuted {
		t.Fatalf("expected schedule_executed, got %+v", got)
	}

	// a fresh process only has the persistent ledger
	restarted := NewReconciler(newTestStore(repo), cache.NewScheduleLedger(DefaultLedgerTTL), DefaultLedgerTTL)
	if got := restarted.Classify(ctx, prev, next); got[0].Kind != entities.TransitionManualExecuted {
		t.Fatalf("persisted ledger should suppress the repeat, got %+v", got)
	}
}

func TestScheduleLedgerUnavailableAfterRestart(t *testing.T) {
	ctx := context.Background()
	repo := newSwitchableRepo()

	first := NewReconciler(newTestStore(repo), cache.NewScheduleLedger(DefaultLedgerTTL), DefaultLedgerTTL)
	prev := &entities.DeviceState{RelayState: "off"}
	next := entities.DeviceState{RelayState: "on", Schedule: executedOn()}
	if got := first.Classify(ctx, prev, next); got[0].Kind != entities.TransitionScheduleExecuted {
		t.Fatalf("expected schedule_executed, got %+v", got)
	}

	// new process, empty fallback cache, repository down
	repo.setDown(true)
	restarted := NewReconciler(newTestStore(repo), cache.NewScheduleLedger(DefaultLedgerTTL), DefaultLedgerTTL)
	if got := restarted.Classify(ctx, prev, next); got[0].Kind != entities.TransitionManualExecuted {
		t.Fatalf("unreadable ledger must not log the schedule again, got %+v", got)
	}
	if got := restarted.Classify(ctx, prev, next); got[0].Kind != entities.TransitionManualExecuted {
		t.Fatalf("in-process ledger should keep suppressing, got %+v", got)
	}
}

func TestScheduleSet(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(newTestStore(newSwitchableRepo()), nil, 0)

	prev := &entities.DeviceState{RelayState: "off"}
	next := entities.DeviceState{RelayState: "off", Schedule: &entities.Schedule{
		Day: 5, Month: 1, Year: 2025, Hour: 10, Minute: 0, Action: "on", Active: true,
	}}
	got := r.Classify(ctx, prev, next)
	if len(got) != 1 || got[0].Kind != entities.TransitionScheduleSet {
		t.Fatalf("expected schedule_set, got %+v", got)
	}
	if got[0].Data["scheduledDateTime"] != "2025-01-05T10:00:00" || got[0].Data["action"] != "on" {
		t.Fatalf("unexpected data %v", got[0].Data)
	}
}

func TestScheduleCancelled(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(newTestStore(newSwitchableRepo()), nil, 0)

	active := &entities.Schedule{Day: 5, Month: 1, Year: 2025, Hour: 10, Action: "off", Active: true}
	prev := &entities.DeviceState{RelayState: "on", Schedule: active}

	got := r.Classify(ctx, prev, entities.DeviceState{RelayState: "on"})
	if len(got) != 1 || got[0].Kind != entities.TransitionScheduleCanceled {
		t.Fatalf("expected schedule_cancelled, got %+v", got)
	}
	if got[0].Data["action"] != "off" || got[0].Data["scheduledDateTime"] != "2025-01-05T10:00:00" {
		t.Fatalf("cancellation should describe the previous schedule, got %v", got[0].Data)
	}
}

func TestExecutionIsNotACancellation(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(newTestStore(newSwitchableRepo()), nil, 0)

	active := &entities.Schedule{Day: 5, Month: 1, Year: 2025, Hour: 10, Action: "off", Active: true}
	prev := &entities.DeviceState{RelayState: "on", Schedule: active}
	fired := &entities.Schedule{Day: 5, Month: 1, Year: 2025, Hour: 10, Action: "off", Executed: true}

	got := r.Classify(ctx, prev, entities.DeviceState{RelayState: "off", Schedule: fired})
	if len(got) != 1 || got[0].Kind != entities.TransitionScheduleExecuted {
		t.Fatalf("expected only schedule_executed, got %+v", got)
	}

	// executed but relay already in the target state: neither executed nor cancelled
	got = r.Classify(ctx, &entities.DeviceState{RelayState: "off", Schedule: active},
		entities.DeviceState{RelayState: "off", Schedule: fired})
	if len(got) != 0 {
		t.Fatalf("expected no transitions, got %+v", got)
	}
}

func TestClassifyUnknownPrevious(t *testing.T) {
	r := NewReconciler(newTestStore(newSwitchableRepo()), nil, 0)
	if got := r.Classify(context.Background(), nil, entities.DeviceState{RelayState: "on"}); got != nil {
		t.Fatalf("nil previous state must classify nothing, got %+v", got)
	}
}

func TestResolvedDateTimePrefersDeviceValue(t *testing.T) {
	s := &entities.Schedule{Day: 5, Month: 1, Year: 2025, Hour: 10, DateTime: "2025-01-05T10:00:30"}
	if s.ResolvedDateTime() != "2025-01-05T10:00:30" {
		t.Fatalf("device supplied dateTime should win, got %s", s.ResolvedDateTime())
	}
}
