// Package device is a software stand-in for the relay board: it polls the
// mailbox, drives a virtual relay and reports back on every heartbeat.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"relay-server/entities"
	"relay-server/logs"

	"github.com/sirupsen/logrus"
)

// DefaultHeartbeat matches the firmware's reporting interval.
const DefaultHeartbeat = 60 * time.Second

const maxErrors = 10

// API is the part of the relay API the device uses.
type API interface {
	Claim(ctx context.Context) (entities.Command, error)
	Report(ctx context.Context, report entities.StateReport) error
}

type Simulator struct {
	api API
	loc *time.Location
	now func() time.Time
	log *logrus.Entry

	mu       sync.Mutex
	relay    string
	schedule *entities.Schedule
	errors   []entities.ErrorReport
}

func NewSimulator(api API, loc *time.Location) *Simulator {
	if loc == nil {
		loc = time.Local
	}
	return &Simulator{
		api:    api,
		loc:    loc,
		now:    time.Now,
		log:    logs.Component("device"),
		relay:  entities.ActionOff,
		errors: []entities.ErrorReport{},
	}
}

// WithClock replaces the time source.
func (s *Simulator) WithClock(now func() time.Time) *Simulator {
	s.now = now
	return s
}

// Run performs a heartbeat every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Step(ctx); err != nil {
			s.log.WithError(err).Warn("heartbeat failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step is one heartbeat: claim and apply a command, fire a due schedule,
// then report the resulting state.
func (s *Simulator) Step(ctx context.Context) error {
	cmd, err := s.api.Claim(ctx)
	if err != nil {
		s.recordError(fmt.Sprintf("command poll failed: %v", err))
	} else if cmd.Type != entities.CommandNone {
		s.Apply(cmd)
	}

	s.fireDueSchedule()

	if err := s.api.Report(ctx, s.report()); err != nil {
		s.recordError(fmt.Sprintf("status report failed: %v", err))
		return err
	}
	return nil
}

// Apply executes cmd against the virtual relay.
func (s *Simulator) Apply(cmd entities.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Type {
	case entities.CommandManual:
		if entities.IsAction(cmd.Action) {
			s.relay = cmd.Action
			s.log.WithField("relay", s.relay).Info("manual command applied")
		}
	case entities.CommandSchedule:
		if cmd.Year == nil || cmd.Month == nil || cmd.Day == nil || cmd.Hour == nil || cmd.Minute == nil || !entities.IsAction(cmd.Action) {
			s.appendError("incomplete schedule command")
			return
		}
		s.schedule = &entities.Schedule{
			Day:    *cmd.Day,
			Month:  *cmd.Month,
			Year:   *cmd.Year,
			Hour:   *cmd.Hour,
			Minute: *cmd.Minute,
			Action: cmd.Action,
			Active: true,
		}
		s.log.WithField("at", s.schedule.ResolvedDateTime()).Info("schedule set")
	case entities.CommandClearSchedule:
		s.schedule = nil
		s.log.Info("schedule cleared")
	case entities.CommandClearErrors:
		s.errors = []entities.ErrorReport{}
		s.log.Info("error log cleared")
	default:
		s.appendError(fmt.Sprintf("unknown command %q", cmd.Type))
	}
}

func (s *Simulator) fireDueSchedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.schedule.IsActive() || !s.schedule.Due(s.now(), s.loc) {
		return
	}
	s.relay = s.schedule.Action
	s.schedule.Active = false
	s.schedule.Executed = true
	s.log.WithField("relay", s.relay).Info("schedule executed")
}

func (s *Simulator) report() entities.StateReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := entities.StateReport{
		RelayState: s.relay,
		Errors:     append([]entities.ErrorReport{}, s.errors...),
	}
	if s.schedule != nil {
		sched := *s.schedule
		r.Schedule = &sched
	}
	return r
}

func (s *Simulator) recordError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendError(msg)
}

// appendError keeps the newest maxErrors entries. Callers hold mu.
func (s *Simulator) appendError(msg string) {
	s.errors = append(s.errors, entities.ErrorReport{Timestamp: s.now().Unix(), Message: msg})
	if len(s.errors) > maxErrors {
		s.errors = s.errors[len(s.errors)-maxErrors:]
	}
}

// State returns the relay state and a copy of the schedule.
func (s *Simulator) State() (string, *entities.Schedule) {
	r := s.report()
	return r.RelayState, r.Schedule
}

// Errors returns a copy of the pending error log.
func (s *Simulator) Errors() []entities.ErrorReport {
	return s.report().Errors
}
