package eq3

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parameter accessors for CommandMessage.Parameters. JSON numbers arrive
// as float64; strings are accepted where a CLI or a home automation rule
// would naturally send one.

func floatParam(params map[string]any, key string) (float64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidParameters, key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidParameters, key, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidParameters, key, v)
	}
}

// optionalFloatParam returns def when key is absent.
func optionalFloatParam(params map[string]any, key string, def float64) (float64, error) {
	if _, ok := params[key]; !ok {
		return def, nil
	}
	return floatParam(params, key)
}

func boolParam(params map[string]any, key string, def bool) (bool, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := ParseOnOff(b)
		if err != nil {
			return false, fmt.Errorf("%w: %s: %v", ErrInvalidParameters, key, err)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidParameters, key, v)
	}
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidParameters, key)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidParameters, key, v)
	}
}

// timeParam parses an RFC 3339 or "2006-01-02 15:04" time. Absent keys
// return the zero time.
func timeParam(params map[string]any, key string, loc *time.Location) (time.Time, error) {
	if _, ok := params[key]; !ok {
		return time.Time{}, nil
	}
	s, err := stringParam(params, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := ParseAwayEnd(s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalidParameters, key, err)
	}
	return t, nil
}

// ParseOnOff accepts on/off, true/false, yes/no and 1/0.
func ParseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("want on or off, got %q", s)
	}
}

// ParseAwayEnd parses an away end given as RFC 3339 or as local
// "2006-01-02 15:04" (also with a T separator).
func ParseAwayEnd(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date and time", s)
}

// scheduleParam reads a day program:
//
//	{"day": "mon", "base_temperature": 17, "until": "06:00",
//	 "periods": [{"temperature": 21, "until": "22:00"}, ...]}
func scheduleParam(params map[string]any) (ScheduleDay, error) {
	dayStr, err := stringParam(params, "day")
	if err != nil {
		return ScheduleDay{}, err
	}
	day, err := ParseWeekday(dayStr)
	if err != nil {
		return ScheduleDay{}, err
	}
	base, err := floatParam(params, "base_temperature")
	if err != nil {
		return ScheduleDay{}, err
	}
	untilStr, err := stringParam(params, "until")
	if err != nil {
		return ScheduleDay{}, err
	}
	until, err := ParseScheduleTime(untilStr)
	if err != nil {
		return ScheduleDay{}, err
	}

	sched := ScheduleDay{Day: day, BaseTemperature: base, NextChangeAt: until}

	raw, ok := params["periods"]
	if !ok {
		return sched, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return ScheduleDay{}, fmt.Errorf("%w: periods must be a list, got %T", ErrInvalidParameters, raw)
	}
	for i, item := range list {
		pm, ok := item.(map[string]any)
		if !ok {
			return ScheduleDay{}, fmt.Errorf("%w: periods[%d] must be an object", ErrInvalidParameters, i)
		}
		temp, err := floatParam(pm, "temperature")
		if err != nil {
			return ScheduleDay{}, fmt.Errorf("periods[%d]: %w", i, err)
		}
		us, err := stringParam(pm, "until")
		if err != nil {
			return ScheduleDay{}, fmt.Errorf("periods[%d]: %w", i, err)
		}
		t, err := ParseScheduleTime(us)
		if err != nil {
			return ScheduleDay{}, fmt.Errorf("periods[%d]: %w", i, err)
		}
		sched.Periods = append(sched.Periods, SchedulePeriod{Temperature: temp, NextChangeAt: t})
	}
	return sched, nil
}
