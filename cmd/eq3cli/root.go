package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/eq3-bridge/internal/bridges/eq3"
	"github.com/nerrad567/eq3-bridge/internal/infrastructure/config"
	"github.com/nerrad567/eq3-bridge/internal/infrastructure/logging"
)

// newLink builds the device link. Replaced in tests.
var newLink = eq3.NewLink

// session holds the root flags and the device they select.
type session struct {
	// Device selection
	mac   string
	iface string
	debug bool

	// Link backend flags
	backend      string
	portName     string
	baudRate     int
	wsURL        string
	handleOffset int
	timeout      time.Duration

	dev *eq3.Device
}

func newRootCmd() *cobra.Command {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "eq3cli",
		Short: "Query and modify eQ-3 Bluetooth radiator thermostats",
		Long: `eq3cli - a tool to query and modify the state of eQ-3 Bluetooth smart
radiator thermostats.

The thermostat is reached directly over Bluetooth (Linux) or through a BLE
proxy that speaks a line protocol over a serial port or a websocket:
  Bluetooth: --mac AA:BB:CC:DD:EE:FF [--interface hci0]
  Serial:    --backend serial --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --backend websocket --url ws://host/path [--handle-offset -1]

The MAC address may also be given in the EQ3_MAC environment variable.
Without a subcommand all available information is printed.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return s.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runState(cmd, s)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&s.mac, "mac", os.Getenv("EQ3_MAC"), "Thermostat MAC address (env EQ3_MAC)")
	flags.StringVar(&s.iface, "interface", "", "Bluetooth adapter, e.g. hci0")
	flags.BoolVar(&s.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&s.backend, "backend", eq3.BackendBLE, "Link backend: "+strings.Join(eq3.Backends, ", "))
	flags.StringVarP(&s.portName, "port", "p", "", "Serial port of the BLE proxy")
	flags.IntVarP(&s.baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	flags.StringVarP(&s.wsURL, "url", "u", "", "WebSocket URL of the BLE proxy (ws:// or wss://)")
	flags.IntVar(&s.handleOffset, "handle-offset", 0, "Offset applied to GATT handles on the proxy wire")
	flags.DurationVar(&s.timeout, "timeout", 10*time.Second, "Wait for each reply")

	rootCmd.AddCommand(
		newTempCmd(s),
		newModeCmd(s),
		newBoostCmd(s),
		newValveStateCmd(s),
		newLockedCmd(s),
		newLowBatteryCmd(s),
		newWindowOpenCmd(s),
		newPresetsCmd(s),
		newScheduleCmd(s),
		newOffsetCmd(s),
		newAwayCmd(s),
		newDeviceCmd(s),
		newStateCmd(s),
	)

	return rootCmd
}

// open connects to the thermostat and reads its status.
func (s *session) open(cmd *cobra.Command) error {
	if s.mac == "" {
		return errors.New("--mac or EQ3_MAC is required")
	}
	if !eq3.ValidMAC(s.mac) {
		return fmt.Errorf("%s is no valid mac address", s.mac)
	}

	level := "info"
	if s.debug {
		level = "debug"
	}
	log := logging.NewWithWriter(config.LoggingConfig{Level: level, Format: "text"}, version, cmd.ErrOrStderr())

	link, err := newLink(eq3.LinkConfig{
		Backend:      s.backend,
		Address:      s.mac,
		Interface:    s.iface,
		SerialPort:   s.portName,
		BaudRate:     s.baudRate,
		URL:          s.wsURL,
		HandleOffset: s.handleOffset,
	}, log)
	if err != nil {
		return err
	}

	s.dev = eq3.NewDevice(link, eq3.DeviceOptions{
		Logger:              log,
		NotificationTimeout: s.timeout,
	})
	if err := s.dev.Update(cmd.Context()); err != nil {
		return fmt.Errorf("reading %s: %w", s.mac, err)
	}
	return nil
}

func (s *session) close() error {
	if s.dev == nil {
		return nil
	}
	return s.dev.Close()
}
