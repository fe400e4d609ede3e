package eq3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/eq3-bridge/internal/infrastructure/mqtt"
)

// Protocol is the protocol identifier used in topics and messages.
const Protocol = "eq3"

// CommandMessage asks the bridge to act on one thermostat.
// Topic: graylogic/command/eq3/{device_id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement. Generated when
	// empty.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the configured thermostat identifier. Taken from the
	// topic when empty.
	DeviceID string `json:"device_id"`

	// Command is the command name (e.g., "set_temperature", "set_mode").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"temperature": 21.5} for set_temperature
	//   {"mode": "manual"} for set_mode
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command reached the device.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the device did not answer in time.
	AckTimeout AckStatus = "timeout"
)

// AckMessage acknowledges a command.
// Topic: graylogic/ack/eq3/{device_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`

	// Address is the thermostat MAC address.
	Address string `json:"address"`

	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "DEVICE_UNREACHABLE", "INVALID_PARAMETERS").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Kind is the eq3 error kind, when the error came from the device layer.
	Kind ErrorKind `json:"kind,omitempty"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// ErrorCode maps an error from a device operation to an acknowledgement
// code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidParameters):
		return ErrCodeInvalidParameters
	case errors.Is(err, ErrDeviceNotConfigured):
		return ErrCodeNotConfigured
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	if IsValidation(err) {
		return ErrCodeInvalidParameters
	}
	switch KindOf(err) {
	case KindLink:
		return ErrCodeDeviceUnreachable
	case KindMalformedPayload:
		return ErrCodeProtocolError
	default:
		return ErrCodeBridgeError
	}
}

// StateMessage carries the mirrored state of one thermostat.
// Topic: graylogic/state/eq3/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"timestamp"`
	State     map[string]any `json:"state"`
	Protocol  string         `json:"protocol"`
	Address   string         `json:"address"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthOffline   HealthStatus = "offline"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: graylogic/health/eq3
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Timestamp      time.Time         `json:"timestamp"`
	Status         HealthStatus      `json:"status"`
	Version        string            `json:"version"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	DevicesManaged int               `json:"devices_managed"`
	Devices        []DeviceHealth    `json:"devices,omitempty"`
	Statistics     *BridgeStatistics `json:"statistics,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

// DeviceHealth summarises one device session.
type DeviceHealth struct {
	DeviceID     string     `json:"device_id"`
	Address      string     `json:"address"`
	Connected    bool       `json:"connected"`
	Reachable    bool       `json:"reachable"`
	LastError    string     `json:"last_error,omitempty"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
	Timeouts     uint64     `json:"timeouts"`
	Errors       uint64     `json:"errors"`
	LowBattery   bool       `json:"low_battery"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	CommandsReceived uint64 `json:"commands_received"`
	CommandsFailed   uint64 `json:"commands_failed"`
	Polls            uint64 `json:"polls"`
	PollErrors       uint64 `json:"poll_errors"`
	StatesPublished  uint64 `json:"states_published"`
}

// RequestMessage asks the bridge for data.
// Topic: graylogic/request/eq3/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is "read_state" or "read_history" (one device), or "read_all".
	Action string `json:"action"`

	DeviceID   string         `json:"device_id,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Request actions.
const (
	ActionReadState   = "read_state"
	ActionReadAll     = "read_all"
	ActionReadHistory = "read_history"
)

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/eq3/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *AckError      `json:"error,omitempty"`
}

// MarshalJSON marshals a CommandMessage to JSON.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON unmarshals a CommandMessage from JSON. The timestamp is
// optional.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus, address string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, address, code string, err error) AckMessage {
	ack := NewAckMessage(cmd, AckFailed, address)
	if code == ErrCodeTimeout {
		ack.Status = AckTimeout
	}
	ack.Error = &AckError{Code: code, Message: err.Error()}
	if kind := KindOf(err); kind != KindUnknown {
		ack.Error.Kind = kind
	}
	return ack
}

// NewStateMessage creates a state message for a device.
func NewStateMessage(deviceID, address string, st State) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     StateMap(st),
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewLWTMessage creates the Last Will and Testament published by the broker
// if the bridge disconnects unexpectedly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// newMessageID returns a correlation ID for commands that arrive without one.
func newMessageID() string {
	return uuid.NewString()
}

// StateMap flattens a State into the JSON shape published on MQTT and
// stored in history.
func StateMap(st State) map[string]any {
	m := map[string]any{
		"has_status":    st.HasStatus,
		"mode":          st.Mode.String(),
		"mode_readable": st.ModeReadable(),
		"flags":         st.Flags.Names(),
	}
	if info := st.DeviceInfo; info != nil {
		m["device_info"] = map[string]any{
			"firmware_version": int(info.FirmwareVersion),
			"serial":           info.Serial,
		}
	}
	if len(st.Schedule) > 0 {
		sched := make(map[string]any, len(st.Schedule))
		for day, prog := range st.Schedule {
			sched[day.String()] = ScheduleMap(prog)
		}
		m["schedule"] = sched
	}
	if !st.HasStatus {
		return m
	}

	m["target_temperature"] = st.TargetTemperature
	m["valve"] = int(st.Valve)
	m["boost"] = st.Boost()
	m["locked"] = st.Locked()
	m["low_battery"] = st.LowBattery()
	m["window_open"] = st.WindowOpen()
	m["dst"] = st.DST()

	if st.AwayEnd != nil {
		m["away_end"] = st.AwayEnd.Format(time.RFC3339)
	}
	if p := st.Presets; p != nil {
		m["presets"] = map[string]any{
			"comfort_temperature":     p.ComfortTemperature,
			"eco_temperature":         p.EcoTemperature,
			"offset":                  p.Offset,
			"window_open_temperature": p.WindowOpenTemperature,
			"window_open_minutes":     int(p.WindowOpenTime / time.Minute),
		}
	}
	return m
}

// ScheduleMap renders one day's program.
func ScheduleMap(day ScheduleDay) map[string]any {
	periods := make([]map[string]any, 0, len(day.Periods))
	for _, p := range day.Periods {
		periods = append(periods, map[string]any{
			"temperature": p.Temperature,
			"until":       p.NextChangeAt.String(),
		})
	}
	return map[string]any{
		"base_temperature": day.BaseTemperature,
		"until":            day.NextChangeAt.String(),
		"periods":          periods,
	}
}

// Topic helpers built on the shared topic scheme.

// StateTopic returns the state topic for a device.
// Example: graylogic/state/eq3/living-room
func StateTopic(deviceID string) string {
	return mqtt.Topics{}.BridgeState(Protocol, deviceID)
}

// CommandTopic returns the command topic for a device.
func CommandTopic(deviceID string) string {
	return mqtt.Topics{}.BridgeCommand(Protocol, deviceID)
}

// AckTopic returns the acknowledgement topic for a device.
func AckTopic(deviceID string) string {
	return mqtt.Topics{}.BridgeAck(Protocol, deviceID)
}

// HealthTopic returns the bridge health topic.
// Example: graylogic/health/eq3
func HealthTopic() string {
	return mqtt.Topics{}.BridgeHealth(Protocol)
}

// ResponseTopic returns the response topic for a request.
func ResponseTopic(requestID string) string {
	return mqtt.Topics{}.BridgeResponse(Protocol, requestID)
}

// CommandSubscribeTopic returns the subscription for every device command.
func CommandSubscribeTopic() string {
	return mqtt.Topics{}.BridgeCommands(Protocol)
}

// RequestSubscribeTopic returns the subscription for every request.
func RequestSubscribeTopic() string {
	return mqtt.Topics{}.BridgeRequests(Protocol)
}
