package eq3

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// NotificationKind identifies which record a notification carried.
type NotificationKind int

// Notification kinds returned by HandleNotification.
const (
	NotificationIgnored NotificationKind = iota
	NotificationStatus
	NotificationSchedule
	NotificationDeviceInfo
)

// String returns the kind name used in logs.
func (k NotificationKind) String() string {
	switch k {
	case NotificationStatus:
		return "status"
	case NotificationSchedule:
		return "schedule"
	case NotificationDeviceInfo:
		return "device_info"
	default:
		return "ignored"
	}
}

// State is a snapshot of the thermostat mirror.
type State struct {
	// HasStatus is false until the first status record arrives. Mode is
	// ModeUnknown and the numeric fields are zero until then.
	HasStatus bool

	Mode              Mode
	Flags             ModeFlags
	TargetTemperature float64
	Valve             uint8

	// AwayEnd is the last away end the device reported. It is kept when a
	// later status omits it.
	AwayEnd *time.Time

	// Presets is nil until a status record with a presets block arrives.
	Presets *Presets

	// Schedule holds the days queried so far.
	Schedule map[Weekday]ScheduleDay

	// DeviceInfo is nil until the id has been queried.
	DeviceInfo *DeviceInfo

	// UpdatedAt is when a record last changed the mirror.
	UpdatedAt time.Time
}

// Boost reports whether the device is boosting.
func (s State) Boost() bool { return s.Mode == ModeBoost }

// Locked reports whether the device buttons are locked.
func (s State) Locked() bool { return s.Flags.Has(FlagLocked) }

// LowBattery reports whether the device reports a low battery.
func (s State) LowBattery() bool { return s.Flags.Has(FlagLowBattery) }

// WindowOpen reports whether an open window was detected.
func (s State) WindowOpen() bool { return s.Flags.Has(FlagWindowOpen) }

// DST reports whether daylight saving time is active on the device.
func (s State) DST() bool { return s.Flags.Has(FlagDST) }

// ModeReadable renders the mode the way the device display would describe
// it, e.g. "manual (21.5C) window locked".
func (s State) ModeReadable() string {
	if !s.HasStatus {
		return ModeUnknown.String()
	}

	var b strings.Builder
	if s.Flags.Has(FlagManual) {
		b.WriteString("manual")
		switch {
		case s.TargetTemperature < MinTemperature:
			b.WriteString(" off")
		case s.TargetTemperature >= MaxTemperature:
			b.WriteString(" on")
		default:
			fmt.Fprintf(&b, " (%.1fC)", s.TargetTemperature)
		}
	} else {
		b.WriteString("auto")
	}

	for _, f := range []struct {
		flag ModeFlags
		text string
	}{
		{FlagAway, " holiday"},
		{FlagBoost, " boost"},
		{FlagDST, " dst"},
		{FlagWindowOpen, " window"},
		{FlagLocked, " locked"},
		{FlagLowBattery, " low battery"},
	} {
		if s.Flags.Has(f.flag) {
			b.WriteString(f.text)
		}
	}
	return b.String()
}

// clone returns a deep copy so callers cannot reach the mirror.
func (s State) clone() State {
	out := s
	if s.AwayEnd != nil {
		end := *s.AwayEnd
		out.AwayEnd = &end
	}
	if s.Presets != nil {
		p := *s.Presets
		out.Presets = &p
	}
	if s.DeviceInfo != nil {
		info := *s.DeviceInfo
		out.DeviceInfo = &info
	}
	out.Schedule = make(map[Weekday]ScheduleDay, len(s.Schedule))
	for day, sched := range s.Schedule {
		sched.Periods = append([]SchedulePeriod(nil), sched.Periods...)
		out.Schedule[day] = sched
	}
	return out
}

// Thermostat owns the mirror of one device's state. HandleNotification is
// its only mutator.
type Thermostat struct {
	mu    sync.RWMutex
	state State

	logger Logger
	now    func() time.Time
}

// NewThermostat creates a mirror with every field unknown.
func NewThermostat(logger Logger) *Thermostat {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Thermostat{
		state:  State{Mode: ModeUnknown, Schedule: map[Weekday]ScheduleDay{}},
		logger: logger,
		now:    time.Now,
	}
}

// State returns a copy of the mirror.
func (t *Thermostat) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.clone()
}

// HandleNotification decodes a notification and applies it to the mirror.
//
// Unknown tags are not an error: the mirror is left untouched and
// NotificationIgnored is returned. A known tag with a malformed body also
// leaves the mirror untouched and returns an error wrapping
// ErrMalformedPayload.
//
// Parameters:
//   - data: Raw notification bytes
//
// Returns:
//   - NotificationKind: Which record was applied
//   - error: ErrMalformedPayload if the record could not be decoded
func (t *Thermostat) HandleNotification(data []byte) (NotificationKind, error) {
	if len(data) == 0 {
		return NotificationIgnored, fmt.Errorf("%w: empty notification", ErrMalformedPayload)
	}

	switch {
	case data[0] == TagStatusReturn && (len(data) < 2 || data[1] == statusMarker):
		rec, err := DecodeStatus(data)
		if err != nil {
			return NotificationStatus, err
		}
		t.applyStatus(rec)
		return NotificationStatus, nil

	case data[0] == TagScheduleReturn:
		sched, err := DecodeSchedule(data)
		if err != nil {
			return NotificationSchedule, err
		}
		t.applySchedule(sched)
		return NotificationSchedule, nil

	case data[0] == TagIDReturn:
		info, err := DecodeDeviceInfo(data)
		if err != nil {
			return NotificationDeviceInfo, err
		}
		t.applyDeviceInfo(info)
		return NotificationDeviceInfo, nil

	default:
		t.logger.Debug("ignored notification", "tag", fmt.Sprintf("0x%02X", data[0]), "payload", fmt.Sprintf("%X", data))
		return NotificationIgnored, nil
	}
}

func (t *Thermostat) applyStatus(rec StatusRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.state
	s.HasStatus = true
	s.Flags = rec.Flags
	s.Valve = rec.Valve
	s.TargetTemperature = rec.TargetTemperature
	s.Mode = DeriveMode(rec.Flags, rec.TargetTemperature)
	if s.Mode == ModeAway && rec.AwayEnd != nil {
		end := *rec.AwayEnd
		s.AwayEnd = &end
	}
	if rec.Presets != nil {
		p := *rec.Presets
		s.Presets = &p
	}
	s.UpdatedAt = t.now()

	t.logger.Debug("status applied",
		"mode", s.Mode.String(),
		"flags", s.Flags.String(),
		"target", s.TargetTemperature,
		"valve", s.Valve,
		"presets", rec.Presets != nil,
	)
}

func (t *Thermostat) applySchedule(sched ScheduleDay) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Schedule == nil {
		t.state.Schedule = map[Weekday]ScheduleDay{}
	}
	t.state.Schedule[sched.Day] = sched
	t.state.UpdatedAt = t.now()

	t.logger.Debug("schedule applied", "day", sched.Day.String(), "periods", len(sched.Periods))
}

func (t *Thermostat) applyDeviceInfo(info DeviceInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.DeviceInfo = &info
	t.state.UpdatedAt = t.now()

	t.logger.Debug("device info applied", "firmware", info.FirmwareVersion, "serial", info.Serial)
}

// ScheduleDays returns the queried days in day-code order.
func (s State) ScheduleDays() []ScheduleDay {
	days := make([]ScheduleDay, 0, len(s.Schedule))
	for d := Weekday(0); d < DaysPerWeek; d++ {
		if sched, ok := s.Schedule[d]; ok {
			days = append(days, sched)
		}
	}
	return days
}
