package eq3

import "errors"

// Domain errors for the eQ-3 bridge package.
var (
	// ErrTemperatureOutOfRange is returned when a requested target, preset or
	// window-open temperature lies outside [MinTemperature, MaxTemperature].
	ErrTemperatureOutOfRange = errors.New("eq3: temperature out of range")

	// ErrOffsetOutOfRange is returned when a temperature offset lies outside
	// [-3.5, 3.5] or is not a multiple of 0.5.
	ErrOffsetOutOfRange = errors.New("eq3: temperature offset out of range")

	// ErrInvalidDay is returned when a schedule day index lies outside [0, 6].
	ErrInvalidDay = errors.New("eq3: invalid schedule day")

	// ErrWindowTimeOutOfRange is returned when a window-open duration lies
	// outside [0, 60] minutes.
	ErrWindowTimeOutOfRange = errors.New("eq3: window open time out of range")

	// ErrAwayOutOfRange is returned when an away end lies outside the years
	// 2000 to 2099.
	ErrAwayOutOfRange = errors.New("eq3: away end out of range")

	// ErrInvalidScheduleTime is returned when a schedule time of day cannot
	// be encoded (negative, past 24:00 or with minutes on 24:00).
	ErrInvalidScheduleTime = errors.New("eq3: invalid schedule time")

	// ErrInvalidMode is returned when a requested mode cannot be written.
	ErrInvalidMode = errors.New("eq3: invalid mode")

	// ErrMalformedPayload is returned when a notification does not match the
	// shape of the record its tag announces.
	ErrMalformedPayload = errors.New("eq3: malformed payload")

	// ErrLinkFailed is returned when the device link fails after its
	// internal retry.
	ErrLinkFailed = errors.New("eq3: device link failed")

	// ErrNotConnected is returned when a link operation requires a
	// connection that is not established.
	ErrNotConnected = errors.New("eq3: link not connected")

	// ErrBackendUnsupported is returned when a link backend is unknown or
	// not available on this platform.
	ErrBackendUnsupported = errors.New("eq3: link backend unsupported")

	// ErrUnknownCommand is returned for a bridge command name that is not
	// supported.
	ErrUnknownCommand = errors.New("eq3: unknown command")

	// ErrInvalidParameters is returned when command parameters are missing
	// or have the wrong type.
	ErrInvalidParameters = errors.New("eq3: invalid parameters")

	// ErrDeviceNotConfigured is returned when a message names a device the
	// bridge does not manage.
	ErrDeviceNotConfigured = errors.New("eq3: device not configured")
)

// ErrorKind classifies errors for acknowledgements and logs.
type ErrorKind string

// Error kinds reported by KindOf.
const (
	KindNone                  ErrorKind = ""
	KindTemperatureOutOfRange ErrorKind = "temperature_out_of_range"
	KindOffsetOutOfRange      ErrorKind = "offset_out_of_range"
	KindInvalidDay            ErrorKind = "invalid_day"
	KindWindowTimeOutOfRange  ErrorKind = "window_time_out_of_range"
	KindAwayOutOfRange        ErrorKind = "away_out_of_range"
	KindInvalidScheduleTime   ErrorKind = "invalid_schedule_time"
	KindInvalidMode           ErrorKind = "invalid_mode"
	KindMalformedPayload      ErrorKind = "malformed_payload"
	KindLink                  ErrorKind = "link"
	KindUnknown               ErrorKind = "unknown"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrTemperatureOutOfRange, KindTemperatureOutOfRange},
	{ErrOffsetOutOfRange, KindOffsetOutOfRange},
	{ErrInvalidDay, KindInvalidDay},
	{ErrWindowTimeOutOfRange, KindWindowTimeOutOfRange},
	{ErrAwayOutOfRange, KindAwayOutOfRange},
	{ErrInvalidScheduleTime, KindInvalidScheduleTime},
	{ErrInvalidMode, KindInvalidMode},
	{ErrMalformedPayload, KindMalformedPayload},
	{ErrLinkFailed, KindLink},
	{ErrNotConnected, KindLink},
	{ErrBackendUnsupported, KindLink},
}

// KindOf returns the kind of err, KindNone for nil and KindUnknown for
// errors that do not wrap one of the package's sentinels.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// IsValidation reports whether err was detected locally before any byte
// reached the device.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindTemperatureOutOfRange, KindOffsetOutOfRange, KindInvalidDay,
		KindWindowTimeOutOfRange, KindAwayOutOfRange, KindInvalidScheduleTime, KindInvalidMode:
		return true
	default:
		return false
	}
}
