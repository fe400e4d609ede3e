package eq3

import (
	"fmt"
	"strconv"
	"strings"
)

// Weekday is the thermostat's day code. The week starts on Saturday.
type Weekday uint8

// Day codes.
const (
	Saturday Weekday = iota
	Sunday
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
)

// DaysPerWeek is the number of valid day codes.
const DaysPerWeek = 7

var dayNames = [DaysPerWeek]string{"sat", "sun", "mon", "tue", "wed", "thu", "fri"}

// String returns the three-letter day name.
func (d Weekday) String() string {
	if d.Valid() {
		return dayNames[d]
	}
	return "day(" + strconv.Itoa(int(d)) + ")"
}

// Valid reports whether d is in [0, 6].
func (d Weekday) Valid() bool {
	return d < DaysPerWeek
}

// MarshalText implements encoding.TextMarshaler.
func (d Weekday) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseWeekday accepts a day name ("mon") or a day code ("2").
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range dayNames {
		if name == s {
			return Weekday(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < DaysPerWeek {
		return Weekday(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDay, s)
}

// SchedulePeriod is a target temperature held until NextChangeAt.
type SchedulePeriod struct {
	Temperature  float64      `json:"temperature"`
	NextChangeAt ScheduleTime `json:"next_change_at"`
}

// ScheduleDay is the heating program of one day. BaseTemperature applies
// until NextChangeAt, then each period applies in order.
type ScheduleDay struct {
	Day             Weekday          `json:"day"`
	BaseTemperature float64          `json:"base_temperature"`
	NextChangeAt    ScheduleTime     `json:"next_change_at"`
	Periods         []SchedulePeriod `json:"periods"`
}

// scheduleHeaderLen is tag, day, base temperature and first change time.
const scheduleHeaderLen = 4

// DecodeSchedule parses a schedule record:
//
//	21 day base next [temp time]...
//
// The tag may also be the query tag (0x20) the device echoes. The periods
// consume the rest of the payload in 2-byte strides; a dangling odd byte is
// ignored.
func DecodeSchedule(data []byte) (ScheduleDay, error) {
	if len(data) < scheduleHeaderLen {
		return ScheduleDay{}, fmt.Errorf("%w: schedule too short (%d bytes, need at least %d)",
			ErrMalformedPayload, len(data), scheduleHeaderLen)
	}
	if data[0] != TagScheduleReturn && data[0] != TagScheduleQuery {
		return ScheduleDay{}, fmt.Errorf("%w: not a schedule record (tag 0x%02X)", ErrMalformedPayload, data[0])
	}

	day := Weekday(data[1])
	if !day.Valid() {
		return ScheduleDay{}, fmt.Errorf("%w: day code %d", ErrMalformedPayload, data[1])
	}

	next, err := DecodeScheduleTime(data[3])
	if err != nil {
		return ScheduleDay{}, err
	}

	sched := ScheduleDay{
		Day:             day,
		BaseTemperature: DecodeTemperature(data[2]),
		NextChangeAt:    next,
	}

	rest := data[scheduleHeaderLen:]
	for len(rest) >= 2 {
		at, err := DecodeScheduleTime(rest[1])
		if err != nil {
			return ScheduleDay{}, err
		}
		sched.Periods = append(sched.Periods, SchedulePeriod{
			Temperature:  DecodeTemperature(rest[0]),
			NextChangeAt: at,
		})
		rest = rest[2:]
	}

	return sched, nil
}

// encodeScheduleBody writes day, base, next and the periods, the part shared
// by the schedule record and the schedule write command.
func encodeScheduleBody(sched ScheduleDay) ([]byte, error) {
	if !sched.Day.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDay, sched.Day)
	}

	next, err := EncodeScheduleTime(sched.NextChangeAt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 3+2*len(sched.Periods))
	out = append(out, byte(sched.Day), EncodeTemperature(sched.BaseTemperature), next)
	for _, p := range sched.Periods {
		at, err := EncodeScheduleTime(p.NextChangeAt)
		if err != nil {
			return nil, err
		}
		out = append(out, EncodeTemperature(p.Temperature), at)
	}
	return out, nil
}

// EncodeSchedule is the inverse of DecodeSchedule and produces a 0x21
// record.
func EncodeSchedule(sched ScheduleDay) ([]byte, error) {
	body, err := encodeScheduleBody(sched)
	if err != nil {
		return nil, err
	}
	return append([]byte{TagScheduleReturn}, body...), nil
}

// Intervals returns the schedule as (from, to, temperature) spans starting
// at 00:00, stopping at the first end-of-day marker.
func (s ScheduleDay) Intervals() []ScheduleInterval {
	var out []ScheduleInterval
	from := ScheduleTime{}
	temp := s.BaseTemperature
	to := s.NextChangeAt
	for i := 0; ; i++ {
		out = append(out, ScheduleInterval{From: from, To: to, Temperature: temp})
		if to.IsEndOfDay() || i >= len(s.Periods) {
			return out
		}
		from = to
		temp = s.Periods[i].Temperature
		to = s.Periods[i].NextChangeAt
	}
}

// ScheduleInterval is one span of a day's program.
type ScheduleInterval struct {
	From        ScheduleTime
	To          ScheduleTime
	Temperature float64
}

// String returns "[HH:MM-HH:MM] T".
func (i ScheduleInterval) String() string {
	return fmt.Sprintf("[%s-%s] %.1f", i.From, i.To, i.Temperature)
}
