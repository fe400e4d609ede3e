package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/eq3-bridge/internal/bridges/eq3"
)

// fakeLink implements eq3.Link with a thermostat that answers every write
// with a status record.
type fakeLink struct {
	mu        sync.Mutex
	address   string
	connected bool
	writes    []string
	rec       eq3.StatusRecord
	sink      eq3.NotificationSink
	replies   chan []byte
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		rec: eq3.StatusRecord{
			TargetTemperature: 20.0,
			Valve:             35,
			Presets: &eq3.Presets{
				WindowOpenTemperature: 12.0,
				WindowOpenTime:        15 * time.Minute,
				ComfortTemperature:    21.0,
				EcoTemperature:        17.0,
			},
		},
		replies: make(chan []byte, 4),
	}
}

func (f *fakeLink) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeLink) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeLink) Write(_ context.Context, _ uint16, payload []byte) error {
	f.mu.Lock()
	f.writes = append(f.writes, hex.EncodeToString(payload))
	reply := f.answer(payload)
	sink := f.sink
	f.mu.Unlock()

	if sink != nil {
		sink(eq3.NotifyHandle, reply)
	}
	f.replies <- reply
	return nil
}

// answer must be called with mu held.
func (f *fakeLink) answer(cmd []byte) []byte {
	switch cmd[0] {
	case eq3.TagIDQuery:
		data, _ := eq3.EncodeDeviceInfo(eq3.DeviceInfo{FirmwareVersion: 120, Serial: "PEQ2130075"}) //nolint:errcheck // fixed input
		return data
	case eq3.TagScheduleQuery:
		data, _ := eq3.EncodeSchedule(eq3.ScheduleDay{ //nolint:errcheck // fixed input
			Day:             eq3.Weekday(cmd[1]),
			BaseTemperature: 17.0,
			NextChangeAt:    eq3.ScheduleTime{Hour: 6},
			Periods:         []eq3.SchedulePeriod{{Temperature: 21.0, NextChangeAt: eq3.EndOfDay}},
		})
		return data
	case eq3.TagTemperature:
		f.rec.TargetTemperature = eq3.DecodeTemperature(cmd[1])
	case eq3.TagLock:
		if cmd[1] == 1 {
			f.rec.Flags |= eq3.FlagLocked
		} else {
			f.rec.Flags &^= eq3.FlagLocked
		}
	}
	data, _ := eq3.EncodeStatus(f.rec) //nolint:errcheck // record is valid
	return data
}

func (f *fakeLink) AwaitNotification(ctx context.Context, timeout time.Duration) ([]byte, bool) {
	select {
	case p := <-f.replies:
		return p, true
	case <-time.After(timeout):
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

func (f *fakeLink) SetNotificationSink(_ uint16, sink eq3.NotificationSink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
}

func (f *fakeLink) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeLink) Address() string { return f.address }

func (f *fakeLink) Stats() eq3.LinkStats { return eq3.LinkStats{} }

func (f *fakeLink) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// runCLI executes eq3cli against link and returns stdout.
func runCLI(t *testing.T, link *fakeLink, args ...string) (string, error) {
	t.Helper()

	orig := newLink
	t.Cleanup(func() { newLink = orig })
	var gotCfg eq3.LinkConfig
	newLink = func(cfg eq3.LinkConfig, _ eq3.Logger) (eq3.Link, error) {
		gotCfg = cfg
		link.address = cfg.Address
		return link, nil
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	if err == nil && gotCfg.Address == "" {
		t.Error("link was never built")
	}
	return out.String(), err
}

const testMAC = "00:1A:22:0C:3D:4E"

func TestRoot_MACValidation(t *testing.T) {
	t.Setenv("EQ3_MAC", "")

	tests := []struct {
		name string
		args []string
	}{
		{"missing", []string{"temp"}},
		{"malformed", []string{"--mac", "00:1A:22:0C:3D", "temp"}},
		{"not hex", []string{"--mac", "00:1A:22:0C:3D:ZZ", "temp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := newFakeLink()
			if _, err := runCLI(t, link, tt.args...); err == nil {
				t.Error("expected error")
			}
			if len(link.Writes()) != 0 {
				t.Errorf("writes = %v, want none", link.Writes())
			}
		})
	}
}

func TestRoot_MACFromEnv(t *testing.T) {
	t.Setenv("EQ3_MAC", testMAC)
	link := newFakeLink()

	out, err := runCLI(t, link, "temp")
	if err != nil {
		t.Fatalf("execute error = %v", err)
	}
	if !strings.Contains(out, "Current target temp: 20.0") {
		t.Errorf("output = %q", out)
	}
	if writes := link.Writes(); len(writes) != 1 || !strings.HasPrefix(writes[0], "03") {
		t.Errorf("writes = %v, want one status query", writes)
	}
	if link.IsConnected() {
		t.Error("link left connected")
	}
}

func TestRoot_UnknownBackend(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--mac", testMAC, "--backend", "carrier-pigeon", "temp"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantOut   []string
		wantWrite string
	}{
		{
			name:    "state by default",
			args:    nil,
			wantOut: []string{"Target 20.0C (mode: auto, away: no)", "Locked: false", "Battery low: false", "Window open time: 15m0s", "Current comfort temp: 21.0", "Current temp offset: 0.0", "Current mode: auto", "Valve: 35%"},
		},
		{
			name:      "set temperature",
			args:      []string{"temp", "--target", "22.5"},
			wantOut:   []string{"Current target temp: 20.0", "Setting target temp: 22.5"},
			wantWrite: "412d",
		},
		{
			name:      "set mode by number",
			args:      []string{"mode", "--target", "3"},
			wantOut:   []string{"Current mode: auto", "Setting mode: manual"},
			wantWrite: "4068",
		},
		{
			name:      "boost on",
			args:      []string{"boost", "--target", "on"},
			wantOut:   []string{"Boost: false", "Setting boost: true"},
			wantWrite: "4501",
		},
		{
			name:      "lock",
			args:      []string{"locked", "--target", "yes"},
			wantWrite: "8001",
		},
		{
			name:      "window open",
			args:      []string{"window-open", "--temp", "10", "--duration", "20"},
			wantOut:   []string{"Window open: false", "Window open temp: 12.0"},
			wantWrite: "141404",
		},
		{
			name:      "presets",
			args:      []string{"presets", "--comfort", "22", "--eco", "16.5"},
			wantOut:   []string{"Current eco temp: 17.0", "Setting presets: comfort 22.0, eco 16.5"},
			wantWrite: "112c21",
		},
		{
			name:      "offset",
			args:      []string{"offset", "1.5"},
			wantOut:   []string{"Setting the offset to 1.5"},
			wantWrite: "130a",
		},
		{
			name:      "disable away",
			args:      []string{"away"},
			wantOut:   []string{"Disabling away mode"},
			wantWrite: "4000",
		},
		{
			name:      "set away",
			args:      []string{"away", "2030-06-01 08:30", "14"},
			wantOut:   []string{"Setting away until 2030-06-01 08:30, temperature: 14.0"},
			wantWrite: "409c01",
		},
		{
			name:      "device",
			args:      []string{"device"},
			wantOut:   []string{"Firmware version: 120", "Device serial:    PEQ2130075"},
			wantWrite: "00",
		},
		{
			name:      "schedule one day",
			args:      []string{"schedule", "--day", "mon"},
			wantOut:   []string{"Day mon, base temp: 17.0", "[00:00-06:00] 17.0", "[06:00-24:00] 21.0"},
			wantWrite: "2002",
		},
		{
			name:      "set schedule",
			args:      []string{"schedule", "--day", "fri", "--set", "17@06:00,21@24:00"},
			wantOut:   []string{"Setting schedule for fri"},
			wantWrite: "100622242a90",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := newFakeLink()
			args := append([]string{"--mac", testMAC, "--timeout", "100ms"}, tt.args...)

			out, err := runCLI(t, link, args...)
			if err != nil {
				t.Fatalf("execute error = %v", err)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			if tt.wantWrite == "" {
				return
			}
			found := false
			for _, w := range link.Writes() {
				if strings.HasPrefix(w, tt.wantWrite) {
					found = true
				}
			}
			if !found {
				t.Errorf("writes = %v, want one starting with %s", link.Writes(), tt.wantWrite)
			}
		})
	}
}

func TestCommands_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"temperature out of range", []string{"temp", "--target", "31"}},
		{"unknown mode", []string{"mode", "--target", "party"}},
		{"bad boost value", []string{"boost", "--target", "maybe"}},
		{"offset not a number", []string{"offset", "warm"}},
		{"set without day", []string{"schedule", "--set", "17@06:00"}},
		{"bad away end", []string{"away", "next week"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := newFakeLink()
			args := append([]string{"--mac", testMAC, "--timeout", "100ms"}, tt.args...)
			if _, err := runCLI(t, link, args...); err == nil {
				t.Error("expected error")
			}
			if writes := link.Writes(); len(writes) != 1 {
				t.Errorf("writes = %v, want only the status query", writes)
			}
		})
	}
}

func TestParseScheduleSpec(t *testing.T) {
	sched, err := parseScheduleSpec(eq3.Weekday(2), "17@06:00, 21@22:00,17@24:00")
	if err != nil {
		t.Fatalf("parseScheduleSpec() error = %v", err)
	}
	if sched.BaseTemperature != 17.0 || sched.NextChangeAt != (eq3.ScheduleTime{Hour: 6}) {
		t.Errorf("base = %.1f until %s", sched.BaseTemperature, sched.NextChangeAt)
	}
	if len(sched.Periods) != 2 || sched.Periods[1].NextChangeAt != eq3.EndOfDay {
		t.Errorf("periods = %+v", sched.Periods)
	}

	for _, bad := range []string{"17", "warm@06:00", "17@25:00"} {
		if _, err := parseScheduleSpec(eq3.Weekday(2), bad); err == nil {
			t.Errorf("parseScheduleSpec(%q) expected error", bad)
		}
	}
}
