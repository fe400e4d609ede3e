package eq3

import (
	"fmt"
	"math"
	"time"
)

// Mode write operands.
const (
	modeAuto   byte = 0x00
	modeManual byte = 0x40
	modeAway   byte = 0x80
)

// IDQueryCommand builds the device id query.
func IDQueryCommand() []byte {
	return []byte{TagIDQuery}
}

// StatusQueryCommand builds the status query. The device also sets its
// clock from the embedded timestamp.
//
// Example:
//
//	StatusQueryCommand(time.Date(2024, 3, 9, 14, 5, 30, 0, time.Local))
//	// Returns: 03 18 03 09 0E 05 1E
func StatusQueryCommand(now time.Time) []byte {
	return []byte{
		TagStatusQuery,
		byte(now.Year() % 100), //nolint:mnd // two-digit year
		byte(now.Month()),
		byte(now.Day()),
		byte(now.Hour()),
		byte(now.Minute()),
		byte(now.Second()),
	}
}

// TemperatureCommand builds a target temperature write.
//
// The two sentinels are mode transitions rather than targets: 4.5 (closed)
// and 30.0 (open) produce a manual mode write. Any other value must lie in
// [MinTemperature, MaxTemperature].
//
// Parameters:
//   - celsius: Target temperature in 0.5 °C steps
//
// Returns:
//   - []byte: [0x41, raw] or [0x40, 0x40|raw] for a sentinel
//   - error: ErrTemperatureOutOfRange for any other out-of-range value
func TemperatureCommand(celsius float64) ([]byte, error) {
	raw := EncodeTemperature(celsius)
	if celsius == OffTemperature || celsius == OnTemperature {
		return []byte{TagModeWrite, modeManual | raw}, nil
	}
	if err := ValidateTemperature(celsius); err != nil {
		return nil, err
	}
	return []byte{TagTemperature, raw}, nil
}

// AutoModeCommand switches to the weekly program. It also ends away mode.
func AutoModeCommand() []byte {
	return []byte{TagModeWrite, modeAuto}
}

// ManualModeCommand switches to manual mode holding celsius. celsius may be
// a sentinel.
func ManualModeCommand(celsius float64) []byte {
	return []byte{TagModeWrite, modeManual | EncodeTemperature(celsius)}
}

// AwayCommand switches to away mode until end at celsius.
func AwayCommand(end time.Time, celsius float64) ([]byte, error) {
	if err := ValidateTemperature(celsius); err != nil {
		return nil, err
	}
	away, err := EncodeAwayEnd(end)
	if err != nil {
		return nil, err
	}
	out := []byte{TagModeWrite, modeAway | EncodeTemperature(celsius)}
	return append(out, away[:]...), nil
}

// BoostCommand turns boost on or off.
func BoostCommand(on bool) []byte {
	return []byte{TagBoost, boolByte(on)}
}

// LockCommand locks or unlocks the device buttons.
func LockCommand(on bool) []byte {
	return []byte{TagLock, boolByte(on)}
}

// WindowOpenCommand configures the temperature held for d after an open
// window is detected. d is stored in 5-minute steps up to one hour.
func WindowOpenCommand(celsius float64, d time.Duration) ([]byte, error) {
	if err := ValidateTemperature(celsius); err != nil {
		return nil, err
	}
	steps, err := EncodeWindowOpenTime(d)
	if err != nil {
		return nil, err
	}
	return []byte{TagWindowOpen, EncodeTemperature(celsius), steps}, nil
}

// PresetsCommand sets the comfort (sun) and eco (moon) temperatures.
func PresetsCommand(comfort, eco float64) ([]byte, error) {
	if err := ValidateTemperature(comfort); err != nil {
		return nil, fmt.Errorf("comfort: %w", err)
	}
	if err := ValidateTemperature(eco); err != nil {
		return nil, fmt.Errorf("eco: %w", err)
	}
	return []byte{TagPresets, EncodeTemperature(comfort), EncodeTemperature(eco)}, nil
}

// OffsetCommand sets the temperature offset.
func OffsetCommand(offset float64) ([]byte, error) {
	raw, err := EncodeOffset(offset)
	if err != nil {
		return nil, err
	}
	return []byte{TagOffset, raw}, nil
}

// ComfortCommand activates the comfort temperature.
func ComfortCommand() []byte {
	return []byte{TagComfort}
}

// EcoCommand activates the eco temperature.
func EcoCommand() []byte {
	return []byte{TagEco}
}

// ScheduleQueryCommand requests the program of one day.
func ScheduleQueryCommand(day Weekday) ([]byte, error) {
	if !day.Valid() {
		return nil, fmt.Errorf("%w: %d not in [0, 6]", ErrInvalidDay, day)
	}
	return []byte{TagScheduleQuery, byte(day)}, nil
}

// ScheduleWriteCommand writes the program of one day.
func ScheduleWriteCommand(sched ScheduleDay) ([]byte, error) {
	for _, t := range append([]float64{sched.BaseTemperature}, periodTemperatures(sched.Periods)...) {
		if err := ValidateTemperature(t); err != nil {
			return nil, err
		}
	}
	body, err := encodeScheduleBody(sched)
	if err != nil {
		return nil, err
	}
	return append([]byte{TagScheduleWrite}, body...), nil
}

// ModeTransition describes what the mode setter needs to know about the
// device: its current mode and target, and the away parameters to use.
type ModeTransition struct {
	Current         Mode
	CurrentTarget   float64
	Now             time.Time
	AwayDuration    time.Duration
	AwayTemperature float64
}

// ModeCommands returns the writes that move the device to target, in order.
//
// Leaving boost for any other mode first emits boost-off as a separate
// write. Entering boost emits only boost-on. Manual holds the current target
// clamped to the settable range.
func ModeCommands(tr ModeTransition, target Mode) ([][]byte, error) {
	var cmds [][]byte
	if tr.Current == ModeBoost && target != ModeBoost {
		cmds = append(cmds, BoostCommand(false))
	}

	switch target {
	case ModeBoost:
		return [][]byte{BoostCommand(true)}, nil
	case ModeAway:
		duration := tr.AwayDuration
		if duration <= 0 {
			duration = DefaultAwayDuration
		}
		temp := tr.AwayTemperature
		if temp == 0 {
			temp = DefaultAwayTemperature
		}
		cmd, err := AwayCommand(tr.Now.Add(duration), temp)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	case ModeClosed:
		cmds = append(cmds, ManualModeCommand(OffTemperature))
	case ModeOpen:
		cmds = append(cmds, ManualModeCommand(OnTemperature))
	case ModeManual:
		temp := math.Max(math.Min(tr.CurrentTarget, MaxTemperature), MinTemperature)
		cmds = append(cmds, ManualModeCommand(temp))
	case ModeAuto:
		cmds = append(cmds, AutoModeCommand())
	default:
		return nil, fmt.Errorf("%w: cannot switch to %s", ErrInvalidMode, target)
	}

	return cmds, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func periodTemperatures(periods []SchedulePeriod) []float64 {
	out := make([]float64, len(periods))
	for i, p := range periods {
		out[i] = p.Temperature
	}
	return out
}
