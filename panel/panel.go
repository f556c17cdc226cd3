// Package panel holds the control panel's reconciliation logic: a requested
// change is shown optimistically and controls stay locked until the device
// reports the expected state or the confirmation window runs out.
package panel

import (
	"errors"
	"fmt"
	"time"

	"relay-server/entities"
)

// DefaultConfirmTimeout covers two missed 60s heartbeats plus slack.
const DefaultConfirmTimeout = 150 * time.Second

const (
	WaitingText       = "Waiting for relay confirmation..."
	SendFailedText    = "Failed to send command"
	NoHeartbeatText   = "Waiting for connection..."
	ConnectedText     = "Connected"
	NotConnectedText  = "Not Connected"
	ConfirmedText     = "Relay confirmed"
	TimedOutText      = "No confirmation from relay"
	ScheduleSavedText = "Schedule confirmed"
)

var ErrAwaiting = errors.New("panel: still waiting for the relay to confirm")

type Phase int

const (
	Idle Phase = iota
	AwaitingConfirmation
)

func (p Phase) String() string {
	if p == AwaitingConfirmation {
		return "awaiting"
	}
	return "idle"
}

type relayAxis struct {
	phase    Phase
	expected string
	since    time.Time
}

type scheduleAxis struct {
	phase    Phase
	expected *entities.Schedule
	since    time.Time
}

// Panel tracks both controllable axes against the last polled status. It is
// driven from a single loop and is not safe for concurrent use.
type Panel struct {
	timeout  time.Duration
	relay    relayAxis
	schedule scheduleAxis

	status     entities.StatusView
	haveStatus bool
	banner     string
}

func New(timeout time.Duration) *Panel {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &Panel{timeout: timeout}
}

// RequestRelay starts a manual toggle and returns the command to send.
func (p *Panel) RequestRelay(action string, now time.Time) (entities.Command, error) {
	if !entities.IsAction(action) {
		return entities.Command{}, fmt.Errorf("panel: invalid action %q", action)
	}
	if p.relay.phase == AwaitingConfirmation {
		return entities.Command{}, ErrAwaiting
	}
	p.relay = relayAxis{phase: AwaitingConfirmation, expected: action, since: now}
	p.banner = ""
	return entities.Command{Type: entities.CommandManual, Action: action}, nil
}

// RequestSchedule starts a schedule change and returns the command to send.
func (p *Panel) RequestSchedule(s entities.Schedule, now time.Time) (entities.Command, error) {
	if !entities.IsAction(s.Action) {
		return entities.Command{}, fmt.Errorf("panel: invalid schedule action %q", s.Action)
	}
	if p.schedule.phase == AwaitingConfirmation {
		return entities.Command{}, ErrAwaiting
	}
	expected := entities.Schedule{
		Day: s.Day, Month: s.Month, Year: s.Year,
		Hour: s.Hour, Minute: s.Minute, Action: s.Action,
	}
	p.schedule = scheduleAxis{phase: AwaitingConfirmation, expected: &expected, since: now}
	p.banner = ""
	return entities.Command{
		Type:   entities.CommandSchedule,
		Action: s.Action,
		Day:    intPtr(s.Day),
		Month:  intPtr(s.Month),
		Year:   intPtr(s.Year),
		Hour:   intPtr(s.Hour),
		Minute: intPtr(s.Minute),
	}, nil
}

// RequestClearSchedule expects the device to report no schedule.
func (p *Panel) RequestClearSchedule(now time.Time) (entities.Command, error) {
	if p.schedule.phase == AwaitingConfirmation {
		return entities.Command{}, ErrAwaiting
	}
	p.schedule = scheduleAxis{phase: AwaitingConfirmation, since: now}
	p.banner = ""
	return entities.Command{Type: entities.CommandClearSchedule}, nil
}

// SubmitFailed releases every axis after the command could not be sent.
func (p *Panel) SubmitFailed() {
	p.relay = relayAxis{}
	p.schedule = scheduleAxis{}
	p.banner = SendFailedText
}

// Observe applies a polled status. Only a match releases an axis; a
// mismatch keeps waiting without resending.
func (p *Panel) Observe(view entities.StatusView) {
	p.status = view
	p.haveStatus = true

	if p.relay.phase == AwaitingConfirmation && view.RelayState == p.relay.expected {
		p.relay = relayAxis{}
		p.banner = ConfirmedText
	}
	if p.schedule.phase == AwaitingConfirmation && SchedulesMatch(view.Schedule, p.schedule.expected) {
		p.schedule = scheduleAxis{}
		p.banner = ScheduleSavedText
	}
}

// Tick releases any axis that has waited longer than the timeout. It
// reports whether something timed out; success is not assumed.
func (p *Panel) Tick(now time.Time) bool {
	timedOut := false
	if p.relay.phase == AwaitingConfirmation && now.Sub(p.relay.since) >= p.timeout {
		p.relay = relayAxis{}
		timedOut = true
	}
	if p.schedule.phase == AwaitingConfirmation && now.Sub(p.schedule.since) >= p.timeout {
		p.schedule = scheduleAxis{}
		timedOut = true
	}
	if timedOut {
		p.banner = TimedOutText
	}
	return timedOut
}

func (p *Panel) RelayPhase() Phase    { return p.relay.phase }
func (p *Panel) SchedulePhase() Phase { return p.schedule.phase }

// Awaiting reports whether any axis waits for confirmation.
func (p *Panel) Awaiting() bool {
	return p.relay.phase == AwaitingConfirmation || p.schedule.phase == AwaitingConfirmation
}

// ControlsEnabled is true only while connected and nothing is pending.
func (p *Panel) ControlsEnabled() bool {
	return p.haveStatus && p.status.IsConnected && !p.Awaiting()
}

// RelayState is the state to display: the requested one while awaiting.
func (p *Panel) RelayState() string {
	if p.relay.phase == AwaitingConfirmation {
		return p.relay.expected
	}
	if p.status.RelayState == "" {
		return entities.ActionOff
	}
	return p.status.RelayState
}

// Schedule is the last authoritative schedule.
func (p *Panel) Schedule() *entities.Schedule { return p.status.Schedule }

func (p *Panel) Status() entities.StatusView { return p.status }

// Banner is the last transient message, if any.
func (p *Panel) Banner() string { return p.banner }

// StatusText is the connection indicator label.
func (p *Panel) StatusText() string {
	if p.Awaiting() {
		return WaitingText
	}
	if p.status.IsConnected {
		return ConnectedText
	}
	return NotConnectedText
}

// ConnectionText describes how long ago the device last reported.
func (p *Panel) ConnectionText(now time.Time) string {
	if p.Awaiting() {
		return WaitingText
	}
	return LastSeen(p.status.LastUpdate, now)
}

// LastSeen renders the age of a heartbeat at lastUpdate (epoch ms).
func LastSeen(lastUpdate *int64, now time.Time) string {
	if lastUpdate == nil {
		return NoHeartbeatText
	}
	secs := (now.UnixMilli() - *lastUpdate) / 1000
	switch {
	case secs < 5:
		return "Active now"
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	case secs < 120:
		return "1 min ago"
	default:
		return fmt.Sprintf("%d min ago", secs/60)
	}
}

// SchedulesMatch compares the fields a user sets. A reported schedule with
// no year counts as no schedule.
func SchedulesMatch(actual, expected *entities.Schedule) bool {
	actualEmpty := actual == nil || actual.Year == 0
	if actualEmpty && expected == nil {
		return true
	}
	if actualEmpty || expected == nil {
		return false
	}
	return actual.Day == expected.Day &&
		actual.Month == expected.Month &&
		actual.Year == expected.Year &&
		actual.Hour == expected.Hour &&
		actual.Minute == expected.Minute &&
		actual.Action == expected.Action
}

func intPtr(v int) *int { return &v }
