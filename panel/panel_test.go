package panel

import (
	"errors"
	"testing"
	"time"

	"relay-server/entities"
)

var t0 = time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)

func connected(relay string, sched *entities.Schedule) entities.StatusView {
	last := t0.UnixMilli()
	return entities.StatusView{RelayState: relay, Schedule: sched, LastUpdate: &last, IsConnected: true}
}

func TestToggleConfirmedByPoll(t *testing.T) {
	p := New(0)
	p.Observe(connected("off", nil))
	if !p.ControlsEnabled() {
		t.Fatalf("controls should be enabled when connected and idle")
	}

	cmd, err := p.RequestRelay("on", t0)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if cmd.Type != entities.CommandManual || cmd.Action != "on" {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if p.RelayPhase() != AwaitingConfirmation || p.ControlsEnabled() {
		t.Fatalf("toggle should await confirmation with controls locked")
	}
	if p.RelayState() != "on" {
		t.Fatalf("display should be optimistic while awaiting, got %s", p.RelayState())
	}
	if _, err := p.RequestRelay("off", t0); !errors.Is(err, ErrAwaiting) {
		t.Fatalf("second request while awaiting should be rejected, got %v", err)
	}

	p.Observe(connected("off", nil))
	if p.RelayPhase() != AwaitingConfirmation {
		t.Fatalf("a mismatching poll must keep waiting")
	}
	p.Observe(connected("on", nil))
	if p.RelayPhase() != Idle || !p.ControlsEnabled() {
		t.Fatalf("matching poll should return to idle")
	}
}

func TestToggleTimesOutWithoutSuccess(t *testing.T) {
	p := New(0)
	p.Observe(connected("off", nil))
	_, _ = p.RequestRelay("on", t0)

	if p.Tick(t0.Add(DefaultConfirmTimeout - time.Second)) {
		t.Fatalf("should still be waiting before the timeout")
	}
	p.Observe(connected("off", nil))
	if !p.Tick(t0.Add(DefaultConfirmTimeout)) {
		t.Fatalf("expected a timeout at %v", DefaultConfirmTimeout)
	}
	if p.RelayPhase() != Idle {
		t.Fatalf("timeout should force idle")
	}
	if p.RelayState() != "off" {
		t.Fatalf("timeout must not assume success, display shows %s", p.RelayState())
	}
	if p.Banner() != TimedOutText {
		t.Fatalf("unexpected banner %q", p.Banner())
	}
}

func TestSubmitFailedReleasesEverything(t *testing.T) {
	p := New(0)
	p.Observe(connected("off", nil))
	_, _ = p.RequestRelay("on", t0)
	_, _ = p.RequestClearSchedule(t0)

	p.SubmitFailed()
	if p.Awaiting() || p.Banner() != SendFailedText {
		t.Fatalf("send failure should release all axes with a banner")
	}
}

func TestScheduleConfirmation(t *testing.T) {
	p := New(0)
	p.Observe(connected("off", nil))

	want := entities.Schedule{Day: 1, Month: 1, Year: 2025, Hour: 0, Minute: 0, Action: "on"}
	cmd, err := p.RequestSchedule(want, t0)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if cmd.Type != entities.CommandSchedule || *cmd.Year != 2025 || *cmd.Minute != 0 {
		t.Fatalf("unexpected command %+v", cmd)
	}

	other := want
	other.Action = "off"
	p.Observe(connected("off", &other))
	if p.SchedulePhase() != AwaitingConfirmation {
		t.Fatalf("different action must not confirm")
	}
	reported := want
	reported.Active = true
	p.Observe(connected("off", &reported))
	if p.SchedulePhase() != Idle {
		t.Fatalf("matching schedule should confirm")
	}

	_, _ = p.RequestClearSchedule(t0)
	p.Observe(connected("off", &entities.Schedule{}))
	if p.SchedulePhase() != Idle {
		t.Fatalf("a zero-year schedule counts as cleared")
	}
}

func TestSchedulesMatch(t *testing.T) {
	a := &entities.Schedule{Day: 1, Month: 1, Year: 2025, Hour: 0, Minute: 0, Action: "on"}
	b := *a
	b.Action = "off"

	if !SchedulesMatch(nil, nil) {
		t.Fatalf("both nil should match")
	}
	if SchedulesMatch(a, nil) || SchedulesMatch(nil, a) {
		t.Fatalf("one nil should not match")
	}
	if !SchedulesMatch(a, a) {
		t.Fatalf("identical schedules should match")
	}
	if SchedulesMatch(a, &b) {
		t.Fatalf("different actions should not match")
	}
}

func TestControlsNeedConnection(t *testing.T) {
	p := New(0)
	if p.ControlsEnabled() {
		t.Fatalf("no status yet, controls must be locked")
	}
	p.Observe(entities.StatusView{RelayState: "off"})
	if p.ControlsEnabled() || p.StatusText() != NotConnectedText {
		t.Fatalf("disconnected device must lock controls")
	}
}

func TestLastSeen(t *testing.T) {
	at := func(d time.Duration) *int64 { v := t0.Add(-d).UnixMilli(); return &v }
	cases := []struct {
		last *int64
		want string
	}{
		{nil, NoHeartbeatText},
		{at(2 * time.Second), "Active now"},
		{at(42 * time.Second), "42s ago"},
		{at(90 * time.Second), "1 min ago"},
		{at(5 * time.Minute), "5 min ago"},
	}
	for _, c := range cases {
		if got := LastSeen(c.last, t0); got != c.want {
			t.Errorf("LastSeen = %q, want %q", got, c.want)
		}
	}

	p := New(0)
	p.Observe(connected("off", nil))
	_, _ = p.RequestRelay("on", t0)
	if p.ConnectionText(t0) != WaitingText {
		t.Fatalf("awaiting should override the last-seen text")
	}
}
