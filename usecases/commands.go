package usecases

import (
	"context"
	"strings"
	"time"

	"relay-server/entities"
	"relay-server/logs"
	"relay-server/metrics"

	"github.com/sirupsen/logrus"
)

// CommandsUseCase is the single-slot mailbox between the panel and the
// device. It assumes exactly one consumer: concurrent claims are not
// coordinated beyond what the store guarantees per key.
type CommandsUseCase struct {
	store Store
	sink  EventSink
	now   func() time.Time
	log   *logrus.Entry
}

func NewCommandsUseCase(store Store, sink EventSink) *CommandsUseCase {
	return &CommandsUseCase{
		store: store,
		sink:  sink,
		now:   time.Now,
		log:   logs.Component("mailbox"),
	}
}

// WithClock replaces the time source.
func (uc *CommandsUseCase) WithClock(now func() time.Time) *CommandsUseCase {
	uc.now = now
	return uc
}

// Submit validates cmd, stamps it and overwrites any pending command.
func (uc *CommandsUseCase) Submit(ctx context.Context, cmd entities.Command) (entities.Command, error) {
	cmd.Type = strings.TrimSpace(cmd.Type)
	if cmd.Type == "" {
		return entities.Command{}, invalid("Invalid command")
	}
	if !entities.IsKnownCommandType(cmd.Type) {
		return entities.Command{}, invalid("Invalid command type %q", cmd.Type)
	}
	if cmd.Action != "" && !entities.IsAction(cmd.Action) {
		return entities.Command{}, invalid("Invalid action %q (must be \"on\" or \"off\")", cmd.Action)
	}
	if cmd.Type == entities.CommandManual && cmd.Action == "" {
		return entities.Command{}, invalid("manual command requires an action")
	}

	cmd.Timestamp = millis(uc.now())
	out, err := uc.store.Set(ctx, keyPendingCommand, cmd, 0)
	if err != nil {
		return entities.Command{}, err
	}
	if out.Degraded {
		uc.log.Warnf("%s command held in process memory only", cmd.Type)
	}
	uc.log.WithField("type", cmd.Type).Info("command queued")
	metrics.IncCommandSubmitted(cmd.Type)

	if uc.sink != nil {
		uc.sink.Emit(entities.StatsEvent{
			Timestamp:   cmd.Timestamp,
			EventType:   entities.EventCommand,
			CommandType: cmd.Type,
			CommandData: toMap(cmd),
		})
	}
	return cmd, nil
}

// Claim hands the pending command to the device and clears the slot.
func (uc *CommandsUseCase) Claim(ctx context.Context) (entities.Command, error) {
	var cmd entities.Command
	out, err := uc.store.Take(ctx, keyPendingCommand, &cmd)
	if err != nil {
		return entities.Command{}, err
	}
	if !out.Found || cmd.Type == "" {
		metrics.IncCommandClaim("empty")
		return entities.NoCommand(), nil
	}
	metrics.IncCommandClaim("delivered")
	uc.log.WithField("type", cmd.Type).Info("command delivered to device")
	return cmd, nil
}

// ClearErrors asks the device to empty its error log on its next poll.
func (uc *CommandsUseCase) ClearErrors(ctx context.Context) (entities.Command, error) {
	return uc.Submit(ctx, entities.Command{Type: entities.CommandClearErrors})
}
