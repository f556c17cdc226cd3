package entities

// Command kinds accepted by the mailbox.
const (
	CommandManual        = "manual"
	CommandSchedule      = "schedule"
	CommandClearSchedule = "clear_schedule"
	CommandClearErrors   = "clear_errors"

	// CommandNone is returned by a claim when the slot is empty.
	CommandNone = "none"
)

// Relay actions, also used as relay states.
const (
	ActionOn  = "on"
	ActionOff = "off"
)

// Command is the single pending instruction for the device.
type Command struct {
	Type       string `json:"type"`
	Action     string `json:"action,omitempty"`
	Day        *int   `json:"day,omitempty"`
	Month      *int   `json:"month,omitempty"`
	Year       *int   `json:"year,omitempty"`
	Hour       *int   `json:"hour,omitempty"`
	Minute     *int   `json:"minute,omitempty"`
	RelayIndex *int   `json:"relayIndex,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

// NoCommand is the sentinel handed to the device when nothing is pending.
func NoCommand() Command {
	return Command{Type: CommandNone}
}

// IsKnownCommandType reports whether t is one of the command kinds the device understands.
func IsKnownCommandType(t string) bool {
	switch t {
	case CommandManual, CommandSchedule, CommandClearSchedule, CommandClearErrors:
		return true
	}
	return false
}

// IsAction reports whether a is a valid relay action.
func IsAction(a string) bool {
	return a == ActionOn || a == ActionOff
}
