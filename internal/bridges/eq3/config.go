package eq3

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Device file defaults.
const (
	DefaultBridgeID       = "eq3-bridge-01"
	DefaultPollSchedule   = "@every 5m"
	defaultHealthInterval = 30
	defaultRetentionDays  = 30
)

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// ValidMAC reports whether s is a colon separated MAC address.
func ValidMAC(s string) bool {
	return macPattern.MatchString(s)
}

// Config is the device file of the eQ-3 bridge.
// Loaded from YAML with environment variable overrides.
type Config struct {
	Bridge  BridgeConfig   `yaml:"bridge"`
	Devices []DeviceConfig `yaml:"devices"`
}

// BridgeConfig contains bridge identity and operational settings.
type BridgeConfig struct {
	// ID uniquely identifies this bridge instance in health reports.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30 seconds.
	HealthInterval int `yaml:"health_interval"`

	// PollSchedule is a cron spec (robfig/cron, descriptors allowed) for
	// reading every thermostat. Default: "@every 5m".
	PollSchedule string `yaml:"poll_schedule"`

	// HistoryRetentionDays is how long state history rows are kept.
	// Pruned once per poll. Default: 30 days, 0 uses the default.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// DeviceConfig defines one thermostat and how to reach it.
type DeviceConfig struct {
	// DeviceID is the identifier used in MQTT topics and history.
	DeviceID string `yaml:"device_id"`

	// Name is a human readable label.
	Name string `yaml:"name"`

	// MAC is the thermostat's Bluetooth address (AA:BB:CC:DD:EE:FF).
	MAC string `yaml:"mac"`

	// Backend selects the link: ble, serial or websocket. Default: ble.
	Backend string `yaml:"backend"`

	// Interface is the HCI adapter for the ble backend (e.g. "hci0").
	Interface string `yaml:"interface"`

	// SerialPort and BaudRate configure the serial proxy backend.
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`

	// URL is the websocket proxy endpoint.
	URL string `yaml:"url"`

	// HandleOffset is applied to GATT handles by proxy backends.
	HandleOffset int `yaml:"handle_offset"`

	// NotificationTimeout is the wait for a reply per write (seconds).
	// Default: 10 seconds.
	NotificationTimeout int `yaml:"notification_timeout"`

	// KeepConnected holds the link open between transactions.
	KeepConnected bool `yaml:"keep_connected"`

	// AwayTemperature and AwayDays are the defaults for away mode.
	AwayTemperature float64 `yaml:"away_temperature"`
	AwayDays        int     `yaml:"away_days"`
}

// LoadConfig reads the device file from a YAML file.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables: EQ3BRIDGE_BRIDGE_ID, EQ3BRIDGE_POLL_SCHEDULE.
//
// Parameters:
//   - path: Path to the YAML device file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing device file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating device file: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:                   DefaultBridgeID,
			HealthInterval:       defaultHealthInterval,
			PollSchedule:         DefaultPollSchedule,
			HistoryRetentionDays: defaultRetentionDays,
		},
		Devices: []DeviceConfig{},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EQ3BRIDGE_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}
	if v := os.Getenv("EQ3BRIDGE_POLL_SCHEDULE"); v != "" {
		cfg.Bridge.PollSchedule = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validateDevices()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateBridge() []string {
	var errs []string
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	if _, err := cron.ParseStandard(c.Bridge.PollSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("bridge.poll_schedule %q is invalid: %v", c.Bridge.PollSchedule, err))
	}
	if c.Bridge.HistoryRetentionDays < 0 {
		errs = append(errs, "bridge.history_retention_days must not be negative")
	}
	return errs
}

func (c *Config) validateDevices() []string {
	var errs []string
	deviceIDs := make(map[string]bool)

	for i, dev := range c.Devices {
		if dev.DeviceID == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].device_id is required", i))
			continue
		}
		if deviceIDs[dev.DeviceID] {
			errs = append(errs, fmt.Sprintf("devices[%d].device_id %q is duplicate", i, dev.DeviceID))
		}
		deviceIDs[dev.DeviceID] = true

		if !ValidMAC(dev.MAC) {
			errs = append(errs, fmt.Sprintf("devices[%d].mac %q is not a valid MAC address", i, dev.MAC))
		}

		switch strings.ToLower(dev.Backend) {
		case "", BackendBLE:
		case BackendSerial:
			if dev.SerialPort == "" {
				errs = append(errs, fmt.Sprintf("devices[%d].serial_port is required for the serial backend", i))
			}
		case BackendWebSocket:
			if dev.URL == "" {
				errs = append(errs, fmt.Sprintf("devices[%d].url is required for the websocket backend", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("devices[%d].backend %q is invalid (use %s)", i, dev.Backend, strings.Join(Backends, ", ")))
		}

		if dev.NotificationTimeout < 0 {
			errs = append(errs, fmt.Sprintf("devices[%d].notification_timeout must not be negative", i))
		}
		if dev.AwayTemperature != 0 {
			if err := ValidateTemperature(dev.AwayTemperature); err != nil {
				errs = append(errs, fmt.Sprintf("devices[%d].away_temperature: %v", i, err))
			}
		}
		if dev.AwayDays < 0 {
			errs = append(errs, fmt.Sprintf("devices[%d].away_days must not be negative", i))
		}
	}

	return errs
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetHistoryRetention returns how long state history is kept.
func (c *Config) GetHistoryRetention() time.Duration {
	days := c.Bridge.HistoryRetentionDays
	if days == 0 {
		days = defaultRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// LinkConfig converts the device settings to a LinkConfig.
func (d DeviceConfig) LinkConfig() LinkConfig {
	return LinkConfig{
		Backend:      d.Backend,
		Address:      d.MAC,
		Interface:    d.Interface,
		SerialPort:   d.SerialPort,
		BaudRate:     d.BaudRate,
		URL:          d.URL,
		HandleOffset: d.HandleOffset,
	}
}

// DeviceOptions converts the device settings to session options.
func (d DeviceConfig) DeviceOptions(logger Logger) DeviceOptions {
	return DeviceOptions{
		Logger:              logger,
		NotificationTimeout: time.Duration(d.NotificationTimeout) * time.Second,
		KeepConnected:       d.KeepConnected,
		AwayTemperature:     d.AwayTemperature,
		AwayDuration:        time.Duration(d.AwayDays) * 24 * time.Hour,
	}
}

// OpenDevices builds a session for every configured device. Nothing is
// connected yet.
func (c *Config) OpenDevices(logger Logger) (map[string]*Device, error) {
	devices := make(map[string]*Device, len(c.Devices))
	for _, dc := range c.Devices {
		link, err := NewLink(dc.LinkConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", dc.DeviceID, err)
		}
		devices[dc.DeviceID] = NewDevice(link, dc.DeviceOptions(logger))
	}
	return devices, nil
}
