package eq3

import (
	"errors"
	"testing"
)

func TestDecodeDeviceInfo(t *testing.T) {
	info, err := DecodeDeviceInfo(mustHex(t, "01780000807581626163606067659e"))
	if err != nil {
		t.Fatalf("DecodeDeviceInfo() error = %v", err)
	}
	if info.FirmwareVersion != 120 {
		t.Errorf("FirmwareVersion = %d, want 120", info.FirmwareVersion)
	}
	if info.Serial != "PEQ2130075" {
		t.Errorf("Serial = %q, want %q", info.Serial, "PEQ2130075")
	}
}

func TestDecodeDeviceInfo_Malformed(t *testing.T) {
	tests := []struct {
		name string
		hex  string
	}{
		{"too short", "0178000080758162616360606765"},
		{"wrong tag", "02780000807581626163606067659e"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeDeviceInfo(mustHex(t, tt.hex)); !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("DecodeDeviceInfo(%s) error = %v, want ErrMalformedPayload", tt.hex, err)
			}
		})
	}
}

func TestEncodeDeviceInfo(t *testing.T) {
	data, err := EncodeDeviceInfo(DeviceInfo{FirmwareVersion: 120, Serial: "PEQ2130075"})
	if err != nil {
		t.Fatalf("EncodeDeviceInfo() error = %v", err)
	}
	info, err := DecodeDeviceInfo(data)
	if err != nil {
		t.Fatalf("DecodeDeviceInfo() error = %v", err)
	}
	if info.FirmwareVersion != 120 || info.Serial != "PEQ2130075" {
		t.Errorf("DecodeDeviceInfo(EncodeDeviceInfo()) = %+v", info)
	}

	if _, err := EncodeDeviceInfo(DeviceInfo{Serial: "short"}); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("EncodeDeviceInfo(short serial) error = %v, want ErrMalformedPayload", err)
	}
}
