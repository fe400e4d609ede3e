package eq3

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// defaultNotificationTimeout bounds the wait for the reply to one write.
const defaultNotificationTimeout = 10 * time.Second

// DeviceOptions configures a Device session.
type DeviceOptions struct {
	// Logger receives session and state events. Default: no-op.
	Logger Logger

	// NotificationTimeout bounds the wait after each write. Default: 10s.
	NotificationTimeout time.Duration

	// KeepConnected holds the link open between transactions. When false
	// the link is connected per transaction to save the device's battery.
	KeepConnected bool

	// AwayTemperature and AwayDuration are used when SetMode(ModeAway) or
	// SetAway omit them. Defaults: 12.0 °C and 30 days.
	AwayTemperature float64
	AwayDuration    time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// DeviceStats holds session counters.
type DeviceStats struct {
	Transactions      uint64
	Timeouts          uint64
	MalformedPayloads uint64
	IgnoredPayloads   uint64
	TransactionErrors uint64
	Link              LinkStats
}

// Device is a session with one thermostat. It owns the link and the state
// mirror and allows one transaction in flight at a time.
//
// A transaction writes one command to WriteHandle and waits up to
// NotificationTimeout for the next notification. The notification reaches
// the mirror through the sink registered on the link; a timeout leaves the
// mirror untouched and is not an error.
type Device struct {
	link       Link
	thermostat *Thermostat
	opts       DeviceOptions
	logger     Logger

	sem *semaphore.Weighted

	transactions      atomic.Uint64
	timeouts          atomic.Uint64
	malformedPayloads atomic.Uint64
	ignoredPayloads   atomic.Uint64
	transactionErrors atomic.Uint64
}

// NewDevice creates a session over link and registers the notification
// sink. It does not connect.
func NewDevice(link Link, opts DeviceOptions) *Device {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.NotificationTimeout <= 0 {
		opts.NotificationTimeout = defaultNotificationTimeout
	}
	if opts.AwayTemperature == 0 {
		opts.AwayTemperature = DefaultAwayTemperature
	}
	if opts.AwayDuration <= 0 {
		opts.AwayDuration = DefaultAwayDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	d := &Device{
		link:       link,
		thermostat: NewThermostat(opts.Logger),
		opts:       opts,
		logger:     opts.Logger,
		sem:        semaphore.NewWeighted(1),
	}
	d.thermostat.now = opts.Now
	link.SetNotificationSink(NotifyHandle, d.handleNotification)
	return d
}

func (d *Device) handleNotification(_ uint16, payload []byte) {
	kind, err := d.thermostat.HandleNotification(payload)
	if err != nil {
		d.malformedPayloads.Add(1)
		d.logger.Warn("malformed notification dropped",
			"address", d.link.Address(),
			"kind", kind.String(),
			"payload", fmt.Sprintf("%X", payload),
			"error", err,
		)
		return
	}
	if kind == NotificationIgnored {
		d.ignoredPayloads.Add(1)
	}
}

// transact runs cmds as consecutive writes, waiting for a notification after
// each one.
func (d *Device) transact(ctx context.Context, cmds ...[]byte) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.sem.Release(1)

	if !d.link.IsConnected() {
		if err := d.link.Connect(ctx); err != nil {
			d.transactionErrors.Add(1)
			return err
		}
	}
	if !d.opts.KeepConnected {
		defer func() {
			if err := d.link.Disconnect(); err != nil {
				d.logger.Warn("disconnect failed", "address", d.link.Address(), "error", err)
			}
		}()
	}

	for _, cmd := range cmds {
		d.transactions.Add(1)
		if err := d.link.Write(ctx, WriteHandle, cmd); err != nil {
			d.transactionErrors.Add(1)
			return err
		}
		if _, ok := d.link.AwaitNotification(ctx, d.opts.NotificationTimeout); !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			d.timeouts.Add(1)
			d.logger.Debug("no reply to command", "address", d.link.Address(), "command", fmt.Sprintf("%X", cmd))
		}
	}
	return nil
}

// Update sends the status query, which also sets the device clock.
func (d *Device) Update(ctx context.Context) error {
	return d.transact(ctx, StatusQueryCommand(d.opts.Now()))
}

// QueryID requests firmware version and serial number.
func (d *Device) QueryID(ctx context.Context) error {
	return d.transact(ctx, IDQueryCommand())
}

// QuerySchedule requests the program of day.
func (d *Device) QuerySchedule(ctx context.Context, day Weekday) error {
	cmd, err := ScheduleQueryCommand(day)
	if err != nil {
		return err
	}
	return d.transact(ctx, cmd)
}

// SetSchedule writes the program of one day.
func (d *Device) SetSchedule(ctx context.Context, sched ScheduleDay) error {
	cmd, err := ScheduleWriteCommand(sched)
	if err != nil {
		return err
	}
	return d.transact(ctx, cmd)
}

// SetTargetTemperature sets the target. The sentinels 4.5 and 30.0 switch
// the valve closed or fully open.
func (d *Device) SetTargetTemperature(ctx context.Context, celsius float64) error {
	cmd, err := TemperatureCommand(celsius)
	if err != nil {
		return err
	}
	return d.transact(ctx, cmd)
}

// SetMode moves the device to mode. Leaving boost takes two writes.
func (d *Device) SetMode(ctx context.Context, mode Mode) error {
	st := d.thermostat.State()
	cmds, err := ModeCommands(ModeTransition{
		Current:         st.Mode,
		CurrentTarget:   st.TargetTemperature,
		Now:             d.opts.Now(),
		AwayDuration:    d.opts.AwayDuration,
		AwayTemperature: d.opts.AwayTemperature,
	}, mode)
	if err != nil {
		return err
	}
	return d.transact(ctx, cmds...)
}

// SetAway switches to away mode until end at celsius. A zero end or
// temperature falls back to the session's away defaults.
func (d *Device) SetAway(ctx context.Context, end time.Time, celsius float64) error {
	if end.IsZero() {
		end = d.opts.Now().Add(d.opts.AwayDuration)
	}
	if celsius == 0 {
		celsius = d.opts.AwayTemperature
	}
	cmd, err := AwayCommand(end, celsius)
	if err != nil {
		return err
	}
	return d.transact(ctx, cmd)
}

// DisableAway returns to the weekly program.
func (d *Device) DisableAway(ctx context.Context) error {
	return d.transact(ctx, AutoModeCommand())
}

// SetBoost turns boost on or off.
func (d *Device) SetBoost(ctx context.Context, on bool) error {
	return d.transact(ctx, BoostCommand(on))
}

// SetLocked locks or unlocks the device buttons.
func (d *Device) SetLocked(ctx context.Context, locked bool) error {
	return d.transact(ctx, LockCommand(locked))
}

// SetPresets sets the comfort and eco temperatures.
func (d *Device) SetPresets(ctx context.Context, comfort, eco float64) error {
	cmd, err := PresetsCommand(comfort, eco)
	if err != nil {
		return err
	}
	return d.transact(ctx, cmd)
}

// SetOffset sets the temperature offset.
func (d *Device) SetOffset(ctx context.Context, offset float64) error {
	cmd, err := OffsetCommand(offset)
	if err != nil {
		return err
	}
	return d.transact(ctx, cmd)
}

// SetWindowOpen configures the open-window temperature and how long it is
// held.
func (d *Device) SetWindowOpen(ctx context.Context, celsius float64, hold time.Duration) error {
	cmd, err := WindowOpenCommand(celsius, hold)
	if err != nil {
		return err
	}
	return d.transact(ctx, cmd)
}

// ActivateComfort switches to the comfort temperature.
func (d *Device) ActivateComfort(ctx context.Context) error {
	return d.transact(ctx, ComfortCommand())
}

// ActivateEco switches to the eco temperature.
func (d *Device) ActivateEco(ctx context.Context) error {
	return d.transact(ctx, EcoCommand())
}

// Close drops the link.
func (d *Device) Close() error {
	return d.link.Disconnect()
}

// Address returns the device MAC address.
func (d *Device) Address() string {
	return d.link.Address()
}

// State returns a copy of the mirrored state.
func (d *Device) State() State {
	return d.thermostat.State()
}

// ModeReadable describes the current mode and flags.
func (d *Device) ModeReadable() string {
	return d.thermostat.State().ModeReadable()
}

// Stats returns session and link counters.
func (d *Device) Stats() DeviceStats {
	return DeviceStats{
		Transactions:      d.transactions.Load(),
		Timeouts:          d.timeouts.Load(),
		MalformedPayloads: d.malformedPayloads.Load(),
		IgnoredPayloads:   d.ignoredPayloads.Load(),
		TransactionErrors: d.transactionErrors.Load(),
		Link:              d.link.Stats(),
	}
}

// String renders e.g. "[00:1A:22:0C:3D:4E] Target 21.5C (mode: auto, away: no)".
func (d *Device) String() string {
	st := d.thermostat.State()
	away := "no"
	if st.Mode == ModeAway && st.AwayEnd != nil {
		away = st.AwayEnd.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("[%s] Target %.1fC (mode: %s, away: %s)", d.link.Address(), st.TargetTemperature, st.ModeReadable(), away)
}
