package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// redacted replaces secrets in String() and MarshalJSON() output.
const redacted = "[REDACTED]"

// Config is the daemon configuration. Device definitions live in the file
// named by Protocols.EQ3.ConfigFile.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Protocols ProtocolsConfig `yaml:"protocols"`
}

type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`

	// Password is redacted by String and MarshalJSON.
	Password string `yaml:"password"`
}

// String masks the password.
func (a MQTTAuthConfig) String() string {
	password := ""
	if a.Password != "" {
		password = redacted
	}
	return fmt.Sprintf("MQTTAuthConfig{Username:%q, Password:%s}", a.Username, password)
}

// MarshalJSON masks the password.
func (a MQTTAuthConfig) MarshalJSON() ([]byte, error) {
	type plain MQTTAuthConfig
	safe := plain(a)
	if safe.Password != "" {
		safe.Password = redacted
	}
	return json.Marshal(safe)
}

// MQTTReconnectConfig holds reconnect backoff in seconds. MaxAttempts 0 retries forever.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects level, format (json or text) and output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type ProtocolsConfig struct {
	EQ3 EQ3Config `yaml:"eq3"`
}

// EQ3Config contains eQ-3 thermostat bridge settings.
type EQ3Config struct {
	Enabled bool `yaml:"enabled"`

	// ConfigFile is the path to the device file (devices, links, poll schedule).
	ConfigFile string `yaml:"config_file"`
}

// Load reads path over the defaults, applies EQ3BRIDGE_* environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "eQ-3 Bridge",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/eq3bridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "eq3-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Protocols: ProtocolsConfig{
			EQ3: EQ3Config{
				Enabled:    true,
				ConfigFile: "configs/eq3.yaml",
			},
		},
	}
}

// envOverride binds one environment variable to a config field.
type envOverride struct {
	name  string
	apply func(cfg *Config, v string)
}

func setString(field func(*Config) *string) func(*Config, string) {
	return func(cfg *Config, v string) { *field(cfg) = v }
}

// envOverrides lists the variables honoured by Load. Secrets belong here
// rather than in the file.
var envOverrides = []envOverride{
	{"EQ3BRIDGE_DATABASE_PATH", setString(func(c *Config) *string { return &c.Database.Path })},
	{"EQ3BRIDGE_MQTT_HOST", setString(func(c *Config) *string { return &c.MQTT.Broker.Host })},
	{"EQ3BRIDGE_MQTT_PORT", func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTT.Broker.Port = port
		}
	}},
	{"EQ3BRIDGE_MQTT_USERNAME", setString(func(c *Config) *string { return &c.MQTT.Auth.Username })},
	{"EQ3BRIDGE_MQTT_PASSWORD", setString(func(c *Config) *string { return &c.MQTT.Auth.Password })},
	{"EQ3BRIDGE_INFLUXDB_URL", setString(func(c *Config) *string { return &c.InfluxDB.URL })},
	{"EQ3BRIDGE_INFLUXDB_TOKEN", setString(func(c *Config) *string { return &c.InfluxDB.Token })},
	{"EQ3BRIDGE_LOG_LEVEL", setString(func(c *Config) *string { return &c.Logging.Level })},
	{"EQ3BRIDGE_EQ3_CONFIG_FILE", setString(func(c *Config) *string { return &c.Protocols.EQ3.ConfigFile })},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []string
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	check(c.Site.ID != "", "site.id is required")
	check(c.Database.Path != "", "database.path is required")
	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	check(c.MQTT.Broker.Port >= 1 && c.MQTT.Broker.Port <= 65535, "mqtt.broker.port must be between 1 and 65535")
	if c.InfluxDB.Enabled {
		check(c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")
		check(c.InfluxDB.Bucket != "", "influxdb.bucket is required when influxdb is enabled")
	}
	check(validLogLevels[strings.ToLower(c.Logging.Level)],
		fmt.Sprintf("logging.level %q is invalid (use debug, info, warn, or error)", c.Logging.Level))
	check(!c.Protocols.EQ3.Enabled || c.Protocols.EQ3.ConfigFile != "",
		"protocols.eq3.config_file is required when eq3 is enabled")

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
