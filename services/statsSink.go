package services

import (
	"context"
	"sync"
	"time"

	"relay-server/entities"
	"relay-server/logs"
	"relay-server/metrics"

	"github.com/sirupsen/logrus"
)

// StatsRecorder persists a stats event.
type StatsRecorder interface {
	Record(ctx context.Context, event entities.StatsEvent) error
}

// StatsSink hands stats events to a background worker. Emit never blocks
// the caller: when the buffer is full or the sink is closed the event is
// dropped and counted.
type StatsSink struct {
	recorder StatsRecorder
	events   chan entities.StatsEvent
	timeout  time.Duration
	log      *logrus.Entry

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewStatsSink(recorder StatsRecorder, buffer int) *StatsSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &StatsSink{
		recorder: recorder,
		events:   make(chan entities.StatsEvent, buffer),
		timeout:  5 * time.Second,
		log:      logs.Component("stats-sink"),
	}
}

// Start launches the worker goroutine.
func (s *StatsSink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for event := range s.events {
			s.record(event)
		}
	}()
}

func (s *StatsSink) Emit(event entities.StatsEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		metrics.IncStatsDropped()
		return
	}
	select {
	case s.events <- event:
	default:
		metrics.IncStatsDropped()
		s.log.Warnf("stats buffer full, dropping %s event", event.EventType)
	}
}

// Close stops accepting events and waits until the buffered ones are recorded.
func (s *StatsSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	started := s.started
	s.mu.Unlock()

	if !started {
		// drain synchronously so nothing buffered is lost
		for event := range s.events {
			s.record(event)
		}
		return
	}
	s.wg.Wait()
}

func (s *StatsSink) record(event entities.StatsEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.recorder.Record(ctx, event); err != nil {
		s.log.WithError(err).Warnf("could not record %s event", event.EventType)
	}
}
