package entities

import (
	"fmt"
	"time"
)

// Schedule is a deferred relay action tracked by the device.
type Schedule struct {
	Day      int    `json:"day"`
	Month    int    `json:"month"`
	Year     int    `json:"year"`
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Action   string `json:"action"`
	Active   bool   `json:"active"`
	Executed bool   `json:"executed"`
	DateTime string `json:"dateTime,omitempty"`
}

// ResolvedDateTime identifies a schedule occurrence. The device supplied
// dateTime wins; otherwise it is built from the individual fields.
func (s *Schedule) ResolvedDateTime() string {
	if s == nil {
		return ""
	}
	if s.DateTime != "" {
		return s.DateTime
	}
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:00", s.Year, s.Month, s.Day, s.Hour, s.Minute)
}

// IsActive is nil-safe.
func (s *Schedule) IsActive() bool {
	return s != nil && s.Active
}

// IsExecuted is nil-safe.
func (s *Schedule) IsExecuted() bool {
	return s != nil && s.Executed
}

// Due reports whether the schedule time has been reached in loc.
func (s *Schedule) Due(now time.Time, loc *time.Location) bool {
	if s == nil || s.Year == 0 {
		return false
	}
	at := time.Date(s.Year, time.Month(s.Month), s.Day, s.Hour, s.Minute, 0, 0, loc)
	return !now.Before(at)
}

// DeviceState is the last state reported by the device.
type DeviceState struct {
	RelayState string    `json:"relayState"`
	Schedule   *Schedule `json:"schedule"`
	LastUpdate *int64    `json:"lastUpdate"`
}

// StateReport is the body the device posts on every heartbeat.
type StateReport struct {
	RelayState string        `json:"relayState"`
	Schedule   *Schedule     `json:"schedule"`
	Errors     []ErrorReport `json:"errors"` // nil means not reported
}

// ErrorReport is a raw error entry as sent by the device.
type ErrorReport struct {
	Timestamp int64  `json:"timestamp"` // epoch seconds
	Message   string `json:"message"`
}

// ErrorLogEntry is a normalized error entry.
type ErrorLogEntry struct {
	Timestamp int64  `json:"timestamp"`
	Time      string `json:"time"`
	Message   string `json:"message"`
}

// ErrorLog is the stored error list.
type ErrorLog struct {
	Errors []ErrorLogEntry `json:"errors"`
}

// StatusView is what the panel sees on GET /status.
type StatusView struct {
	RelayState  string          `json:"relayState"`
	Schedule    *Schedule       `json:"schedule"`
	LastUpdate  *int64          `json:"lastUpdate"`
	IsConnected bool            `json:"isConnected"`
	Errors      []ErrorLogEntry `json:"errors,omitempty"`
}
