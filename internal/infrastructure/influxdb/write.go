package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	measurementThermostat = "thermostat"
	measurementLink       = "eq3_link"
)

// ThermostatSample is one observation of a thermostat's mirrored state.
type ThermostatSample struct {
	DeviceID          string
	Address           string
	Mode              string
	TargetTemperature float64
	ValvePercent      int
	LowBattery        bool
	WindowOpen        bool
	Locked            bool
	Boost             bool

	// Time is when the state was observed. Zero means now.
	Time time.Time
}

// LinkSample is a snapshot of one device session's link counters.
type LinkSample struct {
	DeviceID             string
	Backend              string
	Connected            bool
	Transactions         uint64
	Timeouts             uint64
	MalformedPayloads    uint64
	WritesTotal          uint64
	NotificationsTotal   uint64
	NotificationsDropped uint64
	ConnectFailures      uint64
}

// WriteThermostatMetric records one thermostat state observation.
//
// Mode is written as a tag so dashboards can group by it; the numeric
// values and flags are fields.
func (c *Client) WriteThermostatMetric(s ThermostatSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(thermostatPoint(s))
}

// WriteLinkMetric records a device session's link counters.
func (c *Client) WriteLinkMetric(s LinkSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(linkPoint(s, time.Now()))
}

func thermostatPoint(s ThermostatSample) *write.Point {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{
		"device_id": s.DeviceID,
		"mode":      s.Mode,
	}
	if s.Address != "" {
		tags["address"] = s.Address
	}

	return write.NewPoint(
		measurementThermostat,
		tags,
		map[string]interface{}{
			"target_c":      s.TargetTemperature,
			"valve_percent": s.ValvePercent,
			"low_battery":   s.LowBattery,
			"window_open":   s.WindowOpen,
			"locked":        s.Locked,
			"boost":         s.Boost,
		},
		ts,
	)
}

func linkPoint(s LinkSample, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementLink,
		map[string]string{
			"device_id": s.DeviceID,
			"backend":   s.Backend,
		},
		map[string]interface{}{
			"connected":             s.Connected,
			"transactions":          s.Transactions,
			"timeouts":              s.Timeouts,
			"malformed_payloads":    s.MalformedPayloads,
			"writes_total":          s.WritesTotal,
			"notifications_total":   s.NotificationsTotal,
			"notifications_dropped": s.NotificationsDropped,
			"connect_failures":      s.ConnectFailures,
		},
		ts,
	)
}
