package influxdb

import (
	"testing"
	"time"

	lp "github.com/influxdata/line-protocol"
)

func fieldMap(fields []*lp.Field) map[string]interface{} {
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}

func tagMap(tags []*lp.Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}

func TestThermostatPoint(t *testing.T) {
	ts := time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)
	p := thermostatPoint(ThermostatSample{
		DeviceID:          "living-room",
		Address:           "00:1A:22:0C:3D:4E",
		Mode:              "manual",
		TargetTemperature: 19.5,
		ValvePercent:      20,
		LowBattery:        true,
		Time:              ts,
	})

	if p.Name() != measurementThermostat {
		t.Errorf("Name() = %q, want %q", p.Name(), measurementThermostat)
	}
	if !p.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", p.Time(), ts)
	}

	tags := tagMap(p.TagList())
	if tags["device_id"] != "living-room" || tags["mode"] != "manual" || tags["address"] != "00:1A:22:0C:3D:4E" {
		t.Errorf("tags = %v", tags)
	}

	fields := fieldMap(p.FieldList())
	if fields["target_c"] != 19.5 {
		t.Errorf("target_c = %v, want 19.5", fields["target_c"])
	}
	if fields["valve_percent"] != int64(20) {
		t.Errorf("valve_percent = %v (%T), want 20", fields["valve_percent"], fields["valve_percent"])
	}
	if fields["low_battery"] != true {
		t.Errorf("low_battery = %v, want true", fields["low_battery"])
	}
	if fields["window_open"] != false {
		t.Errorf("window_open = %v, want false", fields["window_open"])
	}
}

func TestThermostatPoint_DefaultsTime(t *testing.T) {
	before := time.Now()
	p := thermostatPoint(ThermostatSample{DeviceID: "d"})
	if p.Time().Before(before) {
		t.Errorf("Time() = %v, want >= %v", p.Time(), before)
	}
	if _, ok := tagMap(p.TagList())["address"]; ok {
		t.Error("empty address should not be tagged")
	}
}

func TestLinkPoint(t *testing.T) {
	ts := time.Now()
	p := linkPoint(LinkSample{DeviceID: "d", Backend: "serial", Timeouts: 2, Connected: true}, ts)

	if p.Name() != measurementLink {
		t.Errorf("Name() = %q, want %q", p.Name(), measurementLink)
	}
	if got := tagMap(p.TagList())["backend"]; got != "serial" {
		t.Errorf("backend tag = %q, want serial", got)
	}
	fields := fieldMap(p.FieldList())
	if fields["timeouts"] != uint64(2) {
		t.Errorf("timeouts = %v (%T), want 2", fields["timeouts"], fields["timeouts"])
	}
	if fields["connected"] != true {
		t.Errorf("connected = %v, want true", fields["connected"])
	}
}
