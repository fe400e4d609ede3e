package eq3

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ModeFlags is the mode bitmask of a status record. Auto is the absence of
// FlagManual, never a bit of its own.
type ModeFlags uint8

// Mode flag bits.
const (
	FlagManual     ModeFlags = 0x01
	FlagAway       ModeFlags = 0x02
	FlagBoost      ModeFlags = 0x04
	FlagDST        ModeFlags = 0x08
	FlagWindowOpen ModeFlags = 0x10
	FlagLocked     ModeFlags = 0x20
	FlagReserved   ModeFlags = 0x40
	FlagLowBattery ModeFlags = 0x80
)

var flagNames = []struct {
	flag ModeFlags
	name string
}{
	{FlagManual, "manual"},
	{FlagAway, "away"},
	{FlagBoost, "boost"},
	{FlagDST, "dst"},
	{FlagWindowOpen, "window_open"},
	{FlagLocked, "locked"},
	{FlagReserved, "reserved"},
	{FlagLowBattery, "low_battery"},
}

// Has reports whether every bit of flag is set.
func (f ModeFlags) Has(flag ModeFlags) bool {
	return f&flag == flag
}

// Names returns the names of the set bits in bit order. An empty mask
// returns ["auto"].
func (f ModeFlags) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	if !f.Has(FlagManual) {
		names = append([]string{"auto"}, names...)
	}
	return names
}

// String returns the set flag names joined by "|".
func (f ModeFlags) String() string {
	return strings.Join(f.Names(), "|")
}

// Mode is the operating mode derived from the mode flags and the target
// temperature. The numeric values are stable and accepted by the CLI.
type Mode int

// Operating modes.
const (
	ModeUnknown Mode = -1
	ModeClosed  Mode = 0
	ModeOpen    Mode = 1
	ModeAuto    Mode = 2
	ModeManual  Mode = 3
	ModeAway    Mode = 4
	ModeBoost   Mode = 5
)

var modeNames = map[Mode]string{
	ModeUnknown: "unknown",
	ModeClosed:  "closed",
	ModeOpen:    "open",
	ModeAuto:    "auto",
	ModeManual:  "manual",
	ModeAway:    "away",
	ModeBoost:   "boost",
}

// String returns the lower-case mode name.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// ParseMode accepts a mode name ("manual") or its number ("3").
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s && m != ModeUnknown {
			return m, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		m := Mode(n)
		if _, ok := modeNames[m]; ok && m != ModeUnknown {
			return m, nil
		}
	}
	return ModeUnknown, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// DeriveMode applies the precedence Boost > Away > Manual > Auto. Manual
// splits into Closed and Open when the target equals a sentinel.
func DeriveMode(flags ModeFlags, target float64) Mode {
	switch {
	case flags.Has(FlagBoost):
		return ModeBoost
	case flags.Has(FlagAway):
		return ModeAway
	case flags.Has(FlagManual):
		switch target {
		case OffTemperature:
			return ModeClosed
		case OnTemperature:
			return ModeOpen
		default:
			return ModeManual
		}
	default:
		return ModeAuto
	}
}

// Presets is the optional trailing block of a status record.
type Presets struct {
	WindowOpenTemperature float64       `json:"window_open_temperature"`
	WindowOpenTime        time.Duration `json:"window_open_time"`
	ComfortTemperature    float64       `json:"comfort_temperature"`
	EcoTemperature        float64       `json:"eco_temperature"`
	Offset                float64       `json:"offset"`
}

// StatusRecord is a decoded status notification.
type StatusRecord struct {
	Flags             ModeFlags
	Valve             uint8
	TargetTemperature float64

	// AwayEnd is set only when FlagAway is set.
	AwayEnd *time.Time

	// Presets is nil when the record carried no presets block.
	Presets *Presets
}

// Status record layout.
const (
	statusHeaderLen = 6
	presetsLen      = 5
)

// DecodeStatus parses a status notification:
//
//	02 01 flags valve 04 temp [away(4)] [window_temp window_time comfort eco offset]
//
// The away period is required when FlagAway is set. Otherwise the four bytes
// may be absent or carry padding. A trailing presets block is optional and a
// partial one is ignored.
//
// Parameters:
//   - data: Raw notification bytes
//
// Returns:
//   - StatusRecord: Decoded record
//   - error: ErrMalformedPayload on a wrong tag, marker or length
func DecodeStatus(data []byte) (StatusRecord, error) {
	if len(data) < statusHeaderLen {
		return StatusRecord{}, fmt.Errorf("%w: status too short (%d bytes, need at least %d)",
			ErrMalformedPayload, len(data), statusHeaderLen)
	}
	if data[0] != TagStatusReturn || data[1] != statusMarker {
		return StatusRecord{}, fmt.Errorf("%w: not a status record (% X)", ErrMalformedPayload, data[:2])
	}
	if data[4] != statusConst {
		return StatusRecord{}, fmt.Errorf("%w: status byte 4 is 0x%02X, want 0x%02X",
			ErrMalformedPayload, data[4], statusConst)
	}

	rec := StatusRecord{
		Flags:             ModeFlags(data[2]),
		Valve:             data[3],
		TargetTemperature: DecodeTemperature(data[5]),
	}

	tail := data[statusHeaderLen:]
	if rec.Flags.Has(FlagAway) {
		end, err := DecodeAwayEnd(tail)
		if err != nil {
			return StatusRecord{}, err
		}
		rec.AwayEnd = &end
	}
	if len(tail) < awayPeriodLen {
		return rec, nil
	}

	tail = tail[awayPeriodLen:]
	if len(tail) >= presetsLen {
		rec.Presets = &Presets{
			WindowOpenTemperature: DecodeTemperature(tail[0]),
			WindowOpenTime:        DecodeWindowOpenTime(tail[1]),
			ComfortTemperature:    DecodeTemperature(tail[2]),
			EcoTemperature:        DecodeTemperature(tail[3]),
			Offset:                DecodeOffset(tail[4]),
		}
	}

	return rec, nil
}

// EncodeStatus is the inverse of DecodeStatus. It is used by device
// simulators and tests. The away field is written as zero padding when
// FlagAway is unset and a presets block follows.
func EncodeStatus(rec StatusRecord) ([]byte, error) {
	out := []byte{
		TagStatusReturn, statusMarker, byte(rec.Flags), rec.Valve, statusConst,
		EncodeTemperature(rec.TargetTemperature),
	}

	switch {
	case rec.Flags.Has(FlagAway):
		if rec.AwayEnd == nil {
			return nil, fmt.Errorf("%w: away flag without away end", ErrAwayOutOfRange)
		}
		away, err := EncodeAwayEnd(*rec.AwayEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, away[:]...)
	case rec.Presets != nil:
		out = append(out, make([]byte, awayPeriodLen)...)
	}

	if p := rec.Presets; p != nil {
		windowTime, err := EncodeWindowOpenTime(p.WindowOpenTime)
		if err != nil {
			return nil, err
		}
		offset, err := EncodeOffset(p.Offset)
		if err != nil {
			return nil, err
		}
		out = append(out,
			EncodeTemperature(p.WindowOpenTemperature),
			windowTime,
			EncodeTemperature(p.ComfortTemperature),
			EncodeTemperature(p.EcoTemperature),
			offset,
		)
	}

	return out, nil
}
