package eq3

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockLink implements Link. Writes are answered synchronously by respond;
// a nil reply means the device stays silent.
type mockLink struct {
	mu          sync.Mutex
	address     string
	connected   bool
	connects    int
	disconnects int
	connectErr  error
	writeErr    error
	writes      [][]byte
	inFlight    bool
	overlapped  bool
	respond     func(payload []byte) []byte
	sink        NotificationSink
	queue       chan []byte
}

func newMockLink(respond func([]byte) []byte) *mockLink {
	return &mockLink{
		address: "00:1A:22:0C:3D:4E",
		respond: respond,
		queue:   make(chan []byte, notificationQueueSize),
	}
}

func (m *mockLink) Connect(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connects++
	m.connected = true
	return nil
}

func (m *mockLink) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		m.disconnects++
	}
	m.connected = false
	return nil
}

func (m *mockLink) Write(_ context.Context, handle uint16, payload []byte) error {
	m.mu.Lock()
	if handle != WriteHandle {
		m.mu.Unlock()
		return fmt.Errorf("write to handle 0x%03X", handle)
	}
	if m.writeErr != nil {
		m.mu.Unlock()
		return m.writeErr
	}
	if !m.connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	if m.inFlight {
		m.overlapped = true
	}
	m.inFlight = true
	m.writes = append(m.writes, append([]byte(nil), payload...))
	respond, sink := m.respond, m.sink
	m.mu.Unlock()

	for {
		select {
		case <-m.queue:
			continue
		default:
		}
		break
	}

	if respond == nil {
		return nil
	}
	if reply := respond(payload); reply != nil {
		if sink != nil {
			sink(NotifyHandle, reply)
		}
		m.queue <- reply
	}
	return nil
}

func (m *mockLink) AwaitNotification(ctx context.Context, timeout time.Duration) ([]byte, bool) {
	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	select {
	case p := <-m.queue:
		return p, true
	case <-time.After(timeout):
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

func (m *mockLink) SetNotificationSink(_ uint16, sink NotificationSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

func (m *mockLink) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockLink) Address() string { return m.address }

func (m *mockLink) Stats() LinkStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return LinkStats{
		WritesTotal:   uint64(len(m.writes)),
		ConnectsTotal: uint64(m.connects),
		Connected:     m.connected,
	}
}

func (m *mockLink) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	for i, w := range m.writes {
		out[i] = hex.EncodeToString(w)
	}
	return out
}

func (m *mockLink) ClearWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}

// fakeThermostat answers commands the way the device does: every write is
// answered with a status record, except the id and schedule queries.
type fakeThermostat struct {
	mu        sync.Mutex
	rec       StatusRecord
	schedules map[Weekday]ScheduleDay
}

func newFakeThermostat() *fakeThermostat {
	return &fakeThermostat{
		rec: StatusRecord{
			TargetTemperature: 20.0,
			Presets: &Presets{
				WindowOpenTemperature: 12.0,
				WindowOpenTime:        15 * time.Minute,
				ComfortTemperature:    21.0,
				EcoTemperature:        17.0,
			},
		},
		schedules: map[Weekday]ScheduleDay{},
	}
}

func (f *fakeThermostat) setFlags(flags ModeFlags) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rec.Flags = flags
}

func (f *fakeThermostat) respond(cmd []byte) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd[0] {
	case TagIDQuery:
		data, _ := EncodeDeviceInfo(DeviceInfo{FirmwareVersion: 120, Serial: "PEQ2130075"}) //nolint:errcheck // fixed input
		return data
	case TagScheduleQuery:
		day := Weekday(cmd[1])
		sched, ok := f.schedules[day]
		if !ok {
			sched = ScheduleDay{Day: day, BaseTemperature: 17.0, NextChangeAt: EndOfDay}
		}
		data, _ := EncodeSchedule(sched) //nolint:errcheck // stored schedules are valid
		return data
	case TagScheduleWrite:
		if sched, err := DecodeSchedule(append([]byte{TagScheduleReturn}, cmd[1:]...)); err == nil {
			f.schedules[sched.Day] = sched
		}
	case TagTemperature:
		f.rec.TargetTemperature = DecodeTemperature(cmd[1])
	case TagModeWrite:
		f.rec.Flags &^= FlagManual | FlagAway
		f.rec.AwayEnd = nil
		switch {
		case cmd[1]&modeAway != 0:
			f.rec.Flags |= FlagAway
			f.rec.TargetTemperature = DecodeTemperature(cmd[1] &^ modeAway)
			if end, err := DecodeAwayEnd(cmd[2:]); err == nil {
				f.rec.AwayEnd = &end
			}
		case cmd[1]&modeManual != 0:
			f.rec.Flags |= FlagManual
			f.rec.TargetTemperature = DecodeTemperature(cmd[1] &^ modeManual)
		}
	case TagBoost:
		f.rec.Flags = setFlag(f.rec.Flags, FlagBoost, cmd[1] == 1)
	case TagLock:
		f.rec.Flags = setFlag(f.rec.Flags, FlagLocked, cmd[1] == 1)
	case TagPresets:
		f.rec.Presets.ComfortTemperature = DecodeTemperature(cmd[1])
		f.rec.Presets.EcoTemperature = DecodeTemperature(cmd[2])
	case TagOffset:
		f.rec.Presets.Offset = DecodeOffset(cmd[1])
	case TagWindowOpen:
		f.rec.Presets.WindowOpenTemperature = DecodeTemperature(cmd[1])
		f.rec.Presets.WindowOpenTime = DecodeWindowOpenTime(cmd[2])
	case TagComfort:
		f.rec.TargetTemperature = f.rec.Presets.ComfortTemperature
	case TagEco:
		f.rec.TargetTemperature = f.rec.Presets.EcoTemperature
	}

	data, err := EncodeStatus(f.rec)
	if err != nil {
		return nil
	}
	return data
}

func setFlag(flags, flag ModeFlags, on bool) ModeFlags {
	if on {
		return flags | flag
	}
	return flags &^ flag
}

var testNow = time.Date(2024, time.January, 10, 12, 0, 0, 0, time.Local)

func newTestDevice(t *testing.T, link Link, keepConnected bool) *Device {
	t.Helper()
	return NewDevice(link, DeviceOptions{
		NotificationTimeout: 50 * time.Millisecond,
		KeepConnected:       keepConnected,
		Now:                 func() time.Time { return testNow },
	})
}

func TestDevice_Update(t *testing.T) {
	fake := newFakeThermostat()
	link := newMockLink(fake.respond)
	dev := newTestDevice(t, link, false)

	if err := dev.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	writes := link.Writes()
	if len(writes) != 1 || writes[0] != "031801"+"0a0c0000" {
		t.Errorf("writes = %v, want one status query", writes)
	}

	st := dev.State()
	if !st.HasStatus || st.Mode != ModeAuto || st.TargetTemperature != 20.0 {
		t.Errorf("State() = %+v, want auto at 20.0", st)
	}
	if st.Presets == nil || st.Presets.ComfortTemperature != 21.0 {
		t.Errorf("Presets = %+v, want comfort 21.0", st.Presets)
	}
	if link.IsConnected() {
		t.Error("link left connected without keep_connected")
	}
	if link.connects != 1 || link.disconnects != 1 {
		t.Errorf("connects=%d disconnects=%d, want 1 and 1", link.connects, link.disconnects)
	}
}

func TestDevice_KeepConnected(t *testing.T) {
	link := newMockLink(newFakeThermostat().respond)
	dev := newTestDevice(t, link, true)

	for i := 0; i < 3; i++ {
		if err := dev.Update(context.Background()); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}
	if link.connects != 1 || link.disconnects != 0 {
		t.Errorf("connects=%d disconnects=%d, want 1 and 0", link.connects, link.disconnects)
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if link.IsConnected() {
		t.Error("link still connected after Close()")
	}
}

func TestDevice_SetModeLeavingBoost(t *testing.T) {
	fake := newFakeThermostat()
	fake.setFlags(FlagBoost)
	link := newMockLink(fake.respond)
	dev := newTestDevice(t, link, false)

	if err := dev.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if dev.State().Mode != ModeBoost {
		t.Fatalf("Mode = %s, want boost", dev.State().Mode)
	}
	link.ClearWrites()

	if err := dev.SetMode(context.Background(), ModeManual); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}

	writes := link.Writes()
	want := []string{"4500", "4068"}
	if len(writes) != len(want) || writes[0] != want[0] || writes[1] != want[1] {
		t.Errorf("writes = %v, want %v", writes, want)
	}
	if st := dev.State(); st.Mode != ModeManual || st.TargetTemperature != 20.0 {
		t.Errorf("State() mode=%s target=%.1f, want manual 20.0", st.Mode, st.TargetTemperature)
	}
}

func TestDevice_ValidationNeverReachesLink(t *testing.T) {
	link := newMockLink(newFakeThermostat().respond)
	dev := newTestDevice(t, link, false)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"temperature", func() error { return dev.SetTargetTemperature(ctx, 35) }, ErrTemperatureOutOfRange},
		{"offset", func() error { return dev.SetOffset(ctx, 5) }, ErrOffsetOutOfRange},
		{"day", func() error { return dev.QuerySchedule(ctx, 9) }, ErrInvalidDay},
		{"presets", func() error { return dev.SetPresets(ctx, 21, 2) }, ErrTemperatureOutOfRange},
		{"window", func() error { return dev.SetWindowOpen(ctx, 12, 2*time.Hour) }, ErrWindowTimeOutOfRange},
		{"mode", func() error { return dev.SetMode(ctx, ModeUnknown) }, ErrInvalidMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if !IsValidation(err) {
				t.Errorf("IsValidation(%v) = false", err)
			}
		})
	}

	if writes := link.Writes(); len(writes) != 0 {
		t.Errorf("writes = %v, want none", writes)
	}
	if link.connects != 0 {
		t.Errorf("connects = %d, want 0", link.connects)
	}
}

func TestDevice_SilentDeviceIsNotAnError(t *testing.T) {
	link := newMockLink(nil)
	dev := newTestDevice(t, link, false)

	if err := dev.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v, want nil on notification timeout", err)
	}
	if dev.State().HasStatus {
		t.Error("HasStatus = true without any notification")
	}
	if stats := dev.Stats(); stats.Timeouts != 1 || stats.Transactions != 1 {
		t.Errorf("Stats() = %+v, want 1 transaction and 1 timeout", stats)
	}
}

func TestDevice_LinkErrorsPropagate(t *testing.T) {
	link := newMockLink(newFakeThermostat().respond)
	link.connectErr = fmt.Errorf("%w: unable to connect", ErrLinkFailed)
	dev := newTestDevice(t, link, false)

	err := dev.Update(context.Background())
	if !errors.Is(err, ErrLinkFailed) {
		t.Fatalf("Update() error = %v, want ErrLinkFailed", err)
	}
	if KindOf(err) != KindLink {
		t.Errorf("KindOf() = %s, want link", KindOf(err))
	}
	if stats := dev.Stats(); stats.TransactionErrors != 1 {
		t.Errorf("TransactionErrors = %d, want 1", stats.TransactionErrors)
	}

	link.connectErr = nil
	link.writeErr = fmt.Errorf("%w: write: gatt error", ErrLinkFailed)
	if err := dev.Update(context.Background()); !errors.Is(err, ErrLinkFailed) {
		t.Errorf("Update() error = %v, want ErrLinkFailed on write failure", err)
	}
	if link.IsConnected() {
		t.Error("link left connected after a failed write")
	}
}

func TestDevice_MalformedNotificationCounted(t *testing.T) {
	link := newMockLink(func([]byte) []byte { return []byte{0x02, 0x01, 0x00} })
	dev := newTestDevice(t, link, false)

	if err := dev.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if dev.State().HasStatus {
		t.Error("malformed status reached the mirror")
	}
	if stats := dev.Stats(); stats.MalformedPayloads != 1 {
		t.Errorf("MalformedPayloads = %d, want 1", stats.MalformedPayloads)
	}
}

func TestDevice_QueryIDAndSchedule(t *testing.T) {
	fake := newFakeThermostat()
	link := newMockLink(fake.respond)
	dev := newTestDevice(t, link, false)
	ctx := context.Background()

	if err := dev.QueryID(ctx); err != nil {
		t.Fatalf("QueryID() error = %v", err)
	}
	if info := dev.State().DeviceInfo; info == nil || info.Serial != "PEQ2130075" {
		t.Errorf("DeviceInfo = %+v", info)
	}

	sched := ScheduleDay{
		Day:             Tuesday,
		BaseTemperature: 17.0,
		NextChangeAt:    ScheduleTime{Hour: 6},
		Periods:         []SchedulePeriod{{Temperature: 21.0, NextChangeAt: EndOfDay}},
	}
	if err := dev.SetSchedule(ctx, sched); err != nil {
		t.Fatalf("SetSchedule() error = %v", err)
	}
	if err := dev.QuerySchedule(ctx, Tuesday); err != nil {
		t.Fatalf("QuerySchedule() error = %v", err)
	}
	got, ok := dev.State().Schedule[Tuesday]
	if !ok || len(got.Periods) != 1 || got.Periods[0].Temperature != 21.0 {
		t.Errorf("Schedule[tue] = %+v, %v", got, ok)
	}
}

func TestDevice_SetAwayDefaults(t *testing.T) {
	link := newMockLink(newFakeThermostat().respond)
	dev := newTestDevice(t, link, false)

	if err := dev.SetAway(context.Background(), time.Time{}, 0); err != nil {
		t.Fatalf("SetAway() error = %v", err)
	}

	want, err := AwayCommand(testNow.Add(DefaultAwayDuration), DefaultAwayTemperature)
	if err != nil {
		t.Fatalf("AwayCommand() error = %v", err)
	}
	if writes := link.Writes(); len(writes) != 1 || writes[0] != hex.EncodeToString(want) {
		t.Errorf("writes = %v, want %x", writes, want)
	}

	st := dev.State()
	if st.Mode != ModeAway || st.TargetTemperature != DefaultAwayTemperature || st.AwayEnd == nil {
		t.Errorf("State() = %+v, want away at 12.0 with an end", st)
	}

	if err := dev.DisableAway(context.Background()); err != nil {
		t.Fatalf("DisableAway() error = %v", err)
	}
	if dev.State().Mode != ModeAuto {
		t.Errorf("Mode = %s after DisableAway, want auto", dev.State().Mode)
	}
}

func TestDevice_Operations(t *testing.T) {
	fake := newFakeThermostat()
	link := newMockLink(fake.respond)
	dev := newTestDevice(t, link, false)
	ctx := context.Background()

	steps := []struct {
		name  string
		call  func() error
		check func(st State) bool
	}{
		{"target", func() error { return dev.SetTargetTemperature(ctx, 22.5) }, func(st State) bool { return st.TargetTemperature == 22.5 }},
		{"boost", func() error { return dev.SetBoost(ctx, true) }, func(st State) bool { return st.Boost() }},
		{"unboost", func() error { return dev.SetBoost(ctx, false) }, func(st State) bool { return !st.Boost() }},
		{"lock", func() error { return dev.SetLocked(ctx, true) }, func(st State) bool { return st.Locked() }},
		{"presets", func() error { return dev.SetPresets(ctx, 22, 16) }, func(st State) bool {
			return st.Presets.ComfortTemperature == 22 && st.Presets.EcoTemperature == 16
		}},
		{"offset", func() error { return dev.SetOffset(ctx, -1.5) }, func(st State) bool { return st.Presets.Offset == -1.5 }},
		{"window", func() error { return dev.SetWindowOpen(ctx, 10, 30*time.Minute) }, func(st State) bool {
			return st.Presets.WindowOpenTemperature == 10 && st.Presets.WindowOpenTime == 30*time.Minute
		}},
		{"eco", func() error { return dev.ActivateEco(ctx) }, func(st State) bool { return st.TargetTemperature == 16 }},
		{"comfort", func() error { return dev.ActivateComfort(ctx) }, func(st State) bool { return st.TargetTemperature == 22 }},
		{"closed", func() error { return dev.SetMode(ctx, ModeClosed) }, func(st State) bool { return st.Mode == ModeClosed }},
		{"open", func() error { return dev.SetTargetTemperature(ctx, OnTemperature) }, func(st State) bool { return st.Mode == ModeOpen }},
		{"auto", func() error { return dev.SetMode(ctx, ModeAuto) }, func(st State) bool { return st.Mode == ModeAuto }},
	}

	for _, s := range steps {
		if err := s.call(); err != nil {
			t.Fatalf("%s: error = %v", s.name, err)
		}
		if st := dev.State(); !s.check(st) {
			t.Errorf("%s: unexpected state %+v (presets %+v)", s.name, st, st.Presets)
		}
	}
}

func TestDevice_OneTransactionAtATime(t *testing.T) {
	link := newMockLink(newFakeThermostat().respond)
	dev := newTestDevice(t, link, true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dev.Update(context.Background()); err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}()
	}
	wg.Wait()

	link.mu.Lock()
	defer link.mu.Unlock()
	if link.overlapped {
		t.Error("a write was issued while another transaction was waiting")
	}
	if len(link.writes) != 8 {
		t.Errorf("writes = %d, want 8", len(link.writes))
	}
}

func TestDevice_String(t *testing.T) {
	link := newMockLink(newFakeThermostat().respond)
	dev := newTestDevice(t, link, false)
	if err := dev.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	want := "[00:1A:22:0C:3D:4E] Target 20.0C (mode: auto, away: no)"
	if got := dev.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
