package entities

// Stats event categories.
const (
	EventLogin   = "login"
	EventCommand = "command"
)

// Derived command types produced by the schedule reconciler.
const (
	TransitionManualExecuted   = "manual_executed"
	TransitionScheduleExecuted = "schedule_executed"
	TransitionScheduleSet      = "schedule_set"
	TransitionScheduleCanceled = "schedule_cancelled"
)

// StatsEvent is a single login or command occurrence.
type StatsEvent struct {
	ID          string         `json:"id,omitempty"`
	Timestamp   int64          `json:"timestamp"`
	EventType   string         `json:"eventType"`
	UserAgent   string         `json:"userAgent,omitempty"`
	CommandType string         `json:"commandType,omitempty"`
	CommandData map[string]any `json:"commandData,omitempty"`
}

// StatsLog is the persisted stats document.
type StatsLog struct {
	Logins   []StatsEvent `json:"logins"`
	Commands []StatsEvent `json:"commands"`
}
