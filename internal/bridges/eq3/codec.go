package eq3

import (
	"fmt"
	"math"
	"time"
)

// Sub-encoding constants.
const (
	// offsetBias shifts the signed half-degree offset into [0, 14].
	offsetBias = 7

	// windowTimeStep is the resolution of the window-open duration.
	windowTimeStep = 5 * time.Minute

	// scheduleTimeStep is the resolution of schedule times in minutes.
	scheduleTimeStep = 10

	// endOfDayRaw is the raw schedule time for 24:00.
	endOfDayRaw = 24 * 60 / scheduleTimeStep

	// awayYearBase is subtracted from the year of an away end.
	awayYearBase = 2000

	// awayPeriodLen is the wire length of an away period.
	awayPeriodLen = 4
)

// EncodeTemperature converts °C to the half-degree wire byte.
func EncodeTemperature(celsius float64) byte {
	return byte(math.Round(celsius * 2)) //nolint:mnd // half-degree steps
}

// DecodeTemperature converts a half-degree wire byte to °C.
func DecodeTemperature(raw byte) float64 {
	return float64(raw) / 2 //nolint:mnd // half-degree steps
}

// ValidateTemperature checks that celsius is a settable target temperature.
func ValidateTemperature(celsius float64) error {
	if math.IsNaN(celsius) || celsius < MinTemperature || celsius > MaxTemperature {
		return fmt.Errorf("%w: %.1f not in [%.1f, %.1f]",
			ErrTemperatureOutOfRange, celsius, MinTemperature, MaxTemperature)
	}
	return nil
}

// EncodeOffset converts a temperature offset to its biased wire byte.
//
// Parameters:
//   - offset: Offset in °C, a multiple of 0.5 within [-3.5, 3.5]
//
// Returns:
//   - byte: int(offset*2)+7, in [0, 14]
//   - error: ErrOffsetOutOfRange for values outside the domain
func EncodeOffset(offset float64) (byte, error) {
	if math.IsNaN(offset) || offset < MinOffset || offset > MaxOffset {
		return 0, fmt.Errorf("%w: %.1f not in [%.1f, %.1f]", ErrOffsetOutOfRange, offset, MinOffset, MaxOffset)
	}
	halves := offset * 2 //nolint:mnd // half-degree steps
	if halves != math.Trunc(halves) {
		return 0, fmt.Errorf("%w: %v is not a multiple of 0.5", ErrOffsetOutOfRange, offset)
	}
	return byte(int(halves) + offsetBias), nil
}

// DecodeOffset converts a biased wire byte to a temperature offset.
func DecodeOffset(raw byte) float64 {
	return float64(int(raw)-offsetBias) / 2 //nolint:mnd // half-degree steps
}

// EncodeWindowOpenTime converts a duration to the number of 5-minute steps.
// Partial steps are truncated.
func EncodeWindowOpenTime(d time.Duration) (byte, error) {
	if d < 0 || d > MaxWindowOpenTime {
		return 0, fmt.Errorf("%w: %s not in [0s, %s]", ErrWindowTimeOutOfRange, d, MaxWindowOpenTime)
	}
	return byte(d / windowTimeStep), nil
}

// DecodeWindowOpenTime converts a number of 5-minute steps to a duration.
func DecodeWindowOpenTime(raw byte) time.Duration {
	return time.Duration(raw) * windowTimeStep
}

// EncodeAwayEnd packs an away end into day, year-2000, hour*2 (+1 for any
// non-zero minute) and month. Minutes collapse to :00 or :30.
func EncodeAwayEnd(end time.Time) ([awayPeriodLen]byte, error) {
	var out [awayPeriodLen]byte
	if end.Year() < awayYearBase || end.Year() > awayYearBase+99 {
		return out, fmt.Errorf("%w: year %d not in [2000, 2099]", ErrAwayOutOfRange, end.Year())
	}

	hour := byte(end.Hour() * 2) //nolint:mnd // half-hour steps
	if end.Minute() != 0 {
		hour |= 0x01
	}

	out[0] = byte(end.Day())
	out[1] = byte(end.Year() - awayYearBase)
	out[2] = hour
	out[3] = byte(end.Month())
	return out, nil
}

// DecodeAwayEnd unpacks a 4-byte away period into a local time.
func DecodeAwayEnd(data []byte) (time.Time, error) {
	if len(data) < awayPeriodLen {
		return time.Time{}, fmt.Errorf("%w: away period needs %d bytes, got %d",
			ErrMalformedPayload, awayPeriodLen, len(data))
	}

	day, year, hourMin, month := int(data[0]), int(data[1]), data[2], int(data[3])
	hour := int(hourMin >> 1)
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 {
		return time.Time{}, fmt.Errorf("%w: away period % X out of range", ErrMalformedPayload, data[:awayPeriodLen])
	}

	minute := 0
	if hourMin&0x01 != 0 {
		minute = 30
	}

	return time.Date(awayYearBase+year, time.Month(month), day, hour, minute, 0, 0, time.Local), nil
}

// ScheduleTime is a time of day in a schedule. Hour 24 with minute 0 is the
// end-of-day marker and means "no further change".
type ScheduleTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// EndOfDay is the 24:00 schedule time.
var EndOfDay = ScheduleTime{Hour: 24}

// IsEndOfDay reports whether t is the 24:00 marker.
func (t ScheduleTime) IsEndOfDay() bool {
	return t == EndOfDay
}

// String returns the time as "HH:MM".
func (t ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseScheduleTime parses "HH:MM" (including "24:00").
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var t ScheduleTime
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return ScheduleTime{}, fmt.Errorf("%w: %q", ErrInvalidScheduleTime, s)
	}
	if _, err := EncodeScheduleTime(t); err != nil {
		return ScheduleTime{}, err
	}
	return t, nil
}

// EncodeScheduleTime converts a time of day to 10-minute units. Minutes
// that are not a multiple of ten are truncated. 24:00 encodes to 144.
func EncodeScheduleTime(t ScheduleTime) (byte, error) {
	if t.Hour < 0 || t.Hour > 24 || t.Minute < 0 || t.Minute > 59 || (t.Hour == 24 && t.Minute != 0) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidScheduleTime, t)
	}
	return byte((t.Hour*60 + t.Minute) / scheduleTimeStep), nil
}

// DecodeScheduleTime converts 10-minute units to a time of day. Raw 144
// decodes to EndOfDay.
func DecodeScheduleTime(raw byte) (ScheduleTime, error) {
	if raw > endOfDayRaw {
		return ScheduleTime{}, fmt.Errorf("%w: schedule time %d exceeds %d", ErrMalformedPayload, raw, endOfDayRaw)
	}
	minutes := int(raw) * scheduleTimeStep
	return ScheduleTime{Hour: minutes / 60, Minute: minutes % 60}, nil
}
