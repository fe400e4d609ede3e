// eq3bridge connects eQ-3 Bluetooth radiator thermostats to MQTT.
//
// It polls every configured thermostat on a cron schedule, publishes the
// mirrored state retained on graylogic/state/eq3/{device_id}, executes
// commands received on graylogic/command/eq3/{device_id}, records state
// history in SQLite and, when enabled, writes telemetry to InfluxDB.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/eq3-bridge/migrations"

	"github.com/nerrad567/eq3-bridge/internal/bridges/eq3"
	"github.com/nerrad567/eq3-bridge/internal/history"
	"github.com/nerrad567/eq3-bridge/internal/infrastructure/config"
	"github.com/nerrad567/eq3-bridge/internal/infrastructure/database"
	"github.com/nerrad567/eq3-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/eq3-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/eq3-bridge/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting eQ-3 bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Load the device file first: the bridge ID names the MQTT will.
	var bridgeCfg *eq3.Config
	if cfg.Protocols.EQ3.Enabled {
		bridgeCfg, err = eq3.LoadConfig(cfg.Protocols.EQ3.ConfigFile)
		if err != nil {
			return fmt.Errorf("loading eQ-3 bridge config: %w", err)
		}
		log.Info("eQ-3 bridge config loaded",
			"path", cfg.Protocols.EQ3.ConfigFile,
			"devices", len(bridgeCfg.Devices),
		)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	var mqttOpts []mqtt.ConnectOption
	if bridgeCfg != nil {
		will, willErr := json.Marshal(eq3.NewLWTMessage(bridgeCfg.Bridge.ID))
		if willErr != nil {
			return fmt.Errorf("building MQTT will: %w", willErr)
		}
		mqttOpts = append(mqttOpts, mqtt.WithWill(eq3.HealthTopic(), will))
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT, mqttOpts...)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	if bridgeCfg != nil {
		bridge, startErr := startBridge(ctx, bridgeCfg, db, mqttClient, influxClient, log)
		if startErr != nil {
			return fmt.Errorf("starting eQ-3 bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping eQ-3 bridge")
			bridge.Stop()
		}()
	} else {
		log.Info("eQ-3 bridge disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: bridge (drops device links),
	// InfluxDB, MQTT, database.

	log.Info("eQ-3 bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses EQ3BRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("EQ3BRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Thermostats are not checked here: they sleep between polls and a
	// silent device only degrades the bridge health report.

	return nil
}

// startBridge opens the device links and starts the eQ-3 bridge.
func startBridge(ctx context.Context, bridgeCfg *eq3.Config, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) (*eq3.Bridge, error) {
	log = log.With("component", "eq3")
	devices, err := bridgeCfg.OpenDevices(log)
	if err != nil {
		return nil, fmt.Errorf("opening devices: %w", err)
	}
	for id, dev := range devices {
		log.Info("device configured", "device_id", id, "address", dev.Address())
	}

	opts := eq3.BridgeOptions{
		Config:     bridgeCfg,
		MQTTClient: &mqttBridgeAdapter{client: mqttClient},
		Devices:    devices,
		Recorder:   history.NewSQLiteRepository(db.DB),
		Version:    version,
		Logger:     log,
	}
	// A nil *influxdb.Client must not become a non-nil interface.
	if influxClient != nil {
		opts.Metrics = influxClient
	}

	bridge, err := eq3.NewBridge(opts)
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		return nil, err
	}
	log.Info("eQ-3 bridge started", "bridge_id", bridgeCfg.Bridge.ID)

	return bridge, nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to eq3.MQTTClient.
// The infrastructure handler returns an error; bridge handlers do not.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements eq3.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements eq3.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements eq3.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Disconnect implements eq3.MQTTClient. The client is closed by run's
// defer chain, so this is a no-op.
func (a *mqttBridgeAdapter) Disconnect(_ uint) {}
