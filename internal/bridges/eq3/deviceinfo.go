package eq3

import "fmt"

// DeviceInfo is a decoded device id notification.
type DeviceInfo struct {
	FirmwareVersion uint8  `json:"firmware_version"`
	Serial          string `json:"serial"`
}

// Device id layout: tag, version, two unused bytes, ten serial bytes and one
// trailing unused byte.
const (
	deviceInfoLen      = 15
	serialOffset       = 4
	serialLen          = 10
	serialCharBias     = 0x30
	deviceInfoPadFirst = 2
)

// DecodeDeviceInfo parses a device id notification. Each serial byte is
// biased by +0x30.
func DecodeDeviceInfo(data []byte) (DeviceInfo, error) {
	if len(data) < deviceInfoLen {
		return DeviceInfo{}, fmt.Errorf("%w: device id too short (%d bytes, need %d)",
			ErrMalformedPayload, len(data), deviceInfoLen)
	}
	if data[0] != TagIDReturn {
		return DeviceInfo{}, fmt.Errorf("%w: not a device id record (tag 0x%02X)", ErrMalformedPayload, data[0])
	}

	serial := make([]byte, serialLen)
	for i, b := range data[serialOffset : serialOffset+serialLen] {
		serial[i] = b - serialCharBias
	}

	return DeviceInfo{FirmwareVersion: data[1], Serial: string(serial)}, nil
}

// EncodeDeviceInfo is the inverse of DecodeDeviceInfo. The unused bytes are
// written as zero.
func EncodeDeviceInfo(info DeviceInfo) ([]byte, error) {
	if len(info.Serial) != serialLen {
		return nil, fmt.Errorf("%w: serial %q must be %d characters", ErrMalformedPayload, info.Serial, serialLen)
	}

	out := make([]byte, 0, deviceInfoLen)
	out = append(out, TagIDReturn, info.FirmwareVersion)
	out = append(out, make([]byte, deviceInfoPadFirst)...)
	for i := 0; i < serialLen; i++ {
		out = append(out, info.Serial[i]+serialCharBias)
	}
	return append(out, 0), nil
}
