package history

import (
	"context"
	"time"
)

// Source values for recorded state changes.
const (
	SourcePoll    = "poll"
	SourceCommand = "command"
	SourceRequest = "request"
)

// State is a JSON-compatible snapshot of a thermostat's mirrored state.
type State map[string]any

// Entry is a single recorded state change.
type Entry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the configured thermostat identifier.
	DeviceID string `json:"device_id"`

	// State is the snapshot as published on MQTT.
	State State `json:"state"`

	// Source identifies what triggered the read (poll, command, request).
	Source string `json:"source"`

	// CreatedAt is the time the change was recorded (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves thermostat state history.
//
// Implementations must be safe for concurrent use and store UTC timestamps.
type Repository interface {
	// RecordStateChange stores a snapshot for deviceID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Configured thermostat identifier
	//   - state: Snapshot to persist
	//   - source: Origin of the change (poll, command, request)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordStateChange(ctx context.Context, deviceID string, state State, source string) error

	// GetHistory returns recent snapshots for deviceID, newest first.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]Entry, error)
}
