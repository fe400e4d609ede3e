package eq3

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eq3.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write device file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
bridge:
  id: "eq3-test"
  health_interval: 15
  poll_schedule: "*/10 * * * *"
  history_retention_days: 7
devices:
  - device_id: "living-room"
    name: "Living Room"
    mac: "00:1A:22:0C:3D:4E"
    interface: "hci1"
    keep_connected: true
    away_temperature: 14
    away_days: 10
  - device_id: "bathroom"
    mac: "00:1a:22:0c:3d:4f"
    backend: "websocket"
    url: "ws://esp32.local/ble"
    handle_offset: -1
    notification_timeout: 5
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Bridge.ID != "eq3-test" {
		t.Errorf("Bridge.ID = %q, want eq3-test", cfg.Bridge.ID)
	}
	if cfg.GetHealthInterval() != 15*time.Second {
		t.Errorf("GetHealthInterval() = %s, want 15s", cfg.GetHealthInterval())
	}
	if cfg.GetHistoryRetention() != 7*24*time.Hour {
		t.Errorf("GetHistoryRetention() = %s, want 168h", cfg.GetHistoryRetention())
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cfg.Devices))
	}

	living := cfg.Devices[0]
	opts := living.DeviceOptions(nil)
	if !opts.KeepConnected || opts.AwayTemperature != 14 || opts.AwayDuration != 10*24*time.Hour {
		t.Errorf("DeviceOptions() = %+v", opts)
	}
	if lc := living.LinkConfig(); lc.Interface != "hci1" || lc.Address != "00:1A:22:0C:3D:4E" {
		t.Errorf("LinkConfig() = %+v", lc)
	}

	bath := cfg.Devices[1]
	if lc := bath.LinkConfig(); lc.Backend != BackendWebSocket || lc.HandleOffset != -1 || lc.URL != "ws://esp32.local/ble" {
		t.Errorf("LinkConfig() = %+v", lc)
	}
	if opts := bath.DeviceOptions(nil); opts.NotificationTimeout != 5*time.Second {
		t.Errorf("NotificationTimeout = %s, want 5s", opts.NotificationTimeout)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "devices: []\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Bridge.ID != DefaultBridgeID {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, DefaultBridgeID)
	}
	if cfg.Bridge.PollSchedule != DefaultPollSchedule {
		t.Errorf("PollSchedule = %q, want %q", cfg.Bridge.PollSchedule, DefaultPollSchedule)
	}
	if cfg.GetHealthInterval() != 30*time.Second {
		t.Errorf("GetHealthInterval() = %s, want 30s", cfg.GetHealthInterval())
	}
	if cfg.GetHistoryRetention() != 30*24*time.Hour {
		t.Errorf("GetHistoryRetention() = %s, want 720h", cfg.GetHistoryRetention())
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, "bridge:\n  id: from-file\n")
	t.Setenv("EQ3BRIDGE_BRIDGE_ID", "from-env")
	t.Setenv("EQ3BRIDGE_POLL_SCHEDULE", "@hourly")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Bridge.ID != "from-env" {
		t.Errorf("Bridge.ID = %q, want from-env", cfg.Bridge.ID)
	}
	if cfg.Bridge.PollSchedule != "@hourly" {
		t.Errorf("PollSchedule = %q, want @hourly", cfg.Bridge.PollSchedule)
	}
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "..", "configs", "eq3.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.Devices) != 3 {
		t.Fatalf("len(Devices) = %d, want 3", len(cfg.Devices))
	}
	if got := cfg.Devices[1].LinkConfig().HandleOffset; got != -1 {
		t.Errorf("bedroom HandleOffset = %d, want -1", got)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() expected error for missing file")
	}
	if _, err := LoadConfig(writeConfigFile(t, "bridge: [unclosed")); err == nil {
		t.Error("LoadConfig() expected error for invalid YAML")
	}
}

func TestConfigValidation(t *testing.T) {
	validDevice := func() DeviceConfig {
		return DeviceConfig{DeviceID: "living-room", MAC: "00:1A:22:0C:3D:4E"}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing bridge id", func(c *Config) { c.Bridge.ID = "" }, "bridge.id"},
		{"zero health interval", func(c *Config) { c.Bridge.HealthInterval = 0 }, "bridge.health_interval"},
		{"bad poll schedule", func(c *Config) { c.Bridge.PollSchedule = "every so often" }, "bridge.poll_schedule"},
		{"negative retention", func(c *Config) { c.Bridge.HistoryRetentionDays = -1 }, "bridge.history_retention_days"},
		{"missing device id", func(c *Config) { c.Devices[0].DeviceID = "" }, "devices[0].device_id"},
		{"duplicate device id", func(c *Config) { c.Devices = append(c.Devices, validDevice()) }, "is duplicate"},
		{"bad mac", func(c *Config) { c.Devices[0].MAC = "00-1A-22-0C-3D-4E" }, "devices[0].mac"},
		{"serial without port", func(c *Config) { c.Devices[0].Backend = "serial" }, "devices[0].serial_port"},
		{"websocket without url", func(c *Config) { c.Devices[0].Backend = "websocket" }, "devices[0].url"},
		{"unknown backend", func(c *Config) { c.Devices[0].Backend = "zigbee" }, "devices[0].backend"},
		{"away temperature out of range", func(c *Config) { c.Devices[0].AwayTemperature = 40 }, "devices[0].away_temperature"},
		{"negative away days", func(c *Config) { c.Devices[0].AwayDays = -2 }, "devices[0].away_days"},
		{"negative notification timeout", func(c *Config) { c.Devices[0].NotificationTimeout = -1 }, "devices[0].notification_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Devices = []DeviceConfig{validDevice()}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidMAC(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"00:1A:22:0C:3D:4E", true},
		{"00:1a:22:0c:3d:4e", true},
		{"00:1A:22:0C:3D", false},
		{"00-1A-22-0C-3D-4E", false},
		{"", false},
		{"G0:1A:22:0C:3D:4E", false},
	}
	for _, tt := range tests {
		if got := ValidMAC(tt.in); got != tt.want {
			t.Errorf("ValidMAC(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOpenDevices(t *testing.T) {
	cfg := defaultConfig()
	cfg.Devices = []DeviceConfig{
		{DeviceID: "bathroom", MAC: "00:1A:22:0C:3D:4F", Backend: BackendWebSocket, URL: "ws://127.0.0.1:1/ble"},
		{DeviceID: "office", MAC: "00:1A:22:0C:3D:50", Backend: BackendSerial, SerialPort: "/dev/ttyUSB0"},
	}

	devices, err := cfg.OpenDevices(nil)
	if err != nil {
		t.Fatalf("OpenDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}
	if addr := devices["bathroom"].Address(); addr != "00:1A:22:0C:3D:4F" {
		t.Errorf("Address() = %q", addr)
	}

	cfg.Devices = append(cfg.Devices, DeviceConfig{DeviceID: "attic", MAC: "00:1A:22:0C:3D:51", Backend: "zigbee"})
	if _, err := cfg.OpenDevices(nil); err == nil {
		t.Error("OpenDevices() expected error for unknown backend")
	}
}
