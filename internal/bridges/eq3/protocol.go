package eq3

import "time"

// GATT handles used by the thermostat. These are protocol constants, not
// configuration.
const (
	// WriteHandle is the characteristic that accepts command payloads.
	WriteHandle uint16 = 0x411

	// NotifyHandle is the characteristic the thermostat notifies on.
	NotifyHandle uint16 = 0x421
)

// GATT service and characteristic UUIDs behind the two handles. Backends that
// address characteristics by UUID rather than by handle use these.
const (
	ServiceUUID    = "3e135142-654f-9090-134a-a6ff5bb77046"
	WriteCharUUID  = "3fa4585a-ce4a-3bad-db4b-b8df8179ea09"
	NotifyCharUUID = "d0e8434d-cd29-0996-af41-6c90f4e0eb2a"
)

// Command tags (first byte of a payload written to WriteHandle).
const (
	TagIDQuery       byte = 0x00
	TagStatusQuery   byte = 0x03
	TagScheduleWrite byte = 0x10
	TagPresets       byte = 0x11
	TagOffset        byte = 0x13
	TagWindowOpen    byte = 0x14
	TagScheduleQuery byte = 0x20
	TagModeWrite     byte = 0x40
	TagTemperature   byte = 0x41
	TagComfort       byte = 0x43
	TagEco           byte = 0x44
	TagBoost         byte = 0x45
	TagLock          byte = 0x80
)

// Notification tags (first byte of a payload received on NotifyHandle).
const (
	TagIDReturn       byte = 0x01
	TagStatusReturn   byte = 0x02
	TagScheduleReturn byte = 0x21

	// statusMarker follows TagStatusReturn in every status record.
	statusMarker byte = 0x01

	// statusConst precedes the target temperature in a status record.
	statusConst byte = 0x04
)

// Temperature limits in °C.
const (
	// MinTemperature is the lowest settable target temperature.
	MinTemperature = 5.0

	// MaxTemperature is the highest settable target temperature.
	MaxTemperature = 29.5

	// OffTemperature is the sentinel target reported while the valve is
	// forced closed.
	OffTemperature = 4.5

	// OnTemperature is the sentinel target reported while the valve is
	// forced open.
	OnTemperature = 30.0

	// MinOffset and MaxOffset bound the temperature offset.
	MinOffset = -3.5
	MaxOffset = 3.5
)

// Away mode defaults applied when switching to ModeAway without an explicit
// end or temperature.
const (
	DefaultAwayTemperature = 12.0
	DefaultAwayDuration    = 30 * 24 * time.Hour
)

// MaxWindowOpenTime is the longest window-open duration the device stores.
const MaxWindowOpenTime = 60 * time.Minute
