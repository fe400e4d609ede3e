//go:build linux

package eq3

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// bleCharacteristic is the part of a discovered characteristic the link uses.
// The thermostat takes commands as write-without-response.
type bleCharacteristic interface {
	WriteWithoutResponse(p []byte) (n int, err error)
	EnableNotifications(callback func(buf []byte)) error
}

// blePeer is a connected thermostat.
type blePeer interface {
	Characteristics() (write, notify bleCharacteristic, err error)
	Disconnect() error
}

// tinygoPeer adapts a tinygo device to blePeer.
type tinygoPeer struct {
	device bluetooth.Device
}

func (p tinygoPeer) Characteristics() (write, notify bleCharacteristic, err error) {
	return discoverCharacteristics(p.device)
}

func (p tinygoPeer) Disconnect() error {
	return p.device.Disconnect()
}

// BLELink talks GATT to the thermostat through BlueZ.
//
// The thermostat's fixed handles map onto characteristic UUIDs: WriteHandle
// onto WriteCharUUID and NotifyHandle onto NotifyCharUUID.
type BLELink struct {
	*notifier

	cfg LinkConfig

	// enable and dial reach the adapter; tests replace them.
	enable func() error
	dial   func(addr bluetooth.Address) (blePeer, error)

	enableOnce sync.Once
	enableErr  error

	mu        sync.Mutex
	device    blePeer
	write     bleCharacteristic
	connected bool
}

// Ensure BLELink implements Link.
var _ Link = (*BLELink)(nil)

func newBLELink(cfg LinkConfig, logger Logger) (Link, error) {
	if _, err := bluetooth.ParseMAC(cfg.Address); err != nil {
		return nil, fmt.Errorf("%w: invalid address %q: %w", ErrLinkFailed, cfg.Address, err)
	}

	adapter := bluetooth.DefaultAdapter
	if cfg.Interface != "" {
		adapter = bluetooth.NewAdapter(cfg.Interface)
	}

	return &BLELink{
		notifier: newNotifier(cfg.Address, logger),
		cfg:      cfg,
		enable:   adapter.Enable,
		dial: func(addr bluetooth.Address) (blePeer, error) {
			dev, err := adapter.Connect(addr, bluetooth.ConnectionParams{})
			if err != nil {
				return nil, err
			}
			return tinygoPeer{device: dev}, nil
		},
	}, nil
}

// Connect enables the adapter, connects to the device and subscribes to the
// notify characteristic.
func (l *BLELink) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connected {
		return nil
	}

	l.enableOnce.Do(func() {
		l.enableErr = l.enable()
	})
	if l.enableErr != nil {
		return fmt.Errorf("%w: enabling BLE adapter: %w", ErrLinkFailed, l.enableErr)
	}

	return l.connectWithRetry(ctx, l.cfg.ConnectTimeout, BackendBLE, l.connectOnce)
}

func (l *BLELink) connectOnce(ctx context.Context) error {
	mac, err := bluetooth.ParseMAC(l.cfg.Address)
	if err != nil {
		return err
	}

	type result struct {
		device blePeer
		err    error
	}
	done := make(chan result, 1)
	go func() {
		dev, err := l.dial(bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}})
		done <- result{device: dev, err: err}
	}()

	var device blePeer
	select {
	case res := <-done:
		if res.err != nil {
			return res.err
		}
		device = res.device
	case <-ctx.Done():
		// A late connection is torn down so the device is not left attached.
		go func() {
			if res := <-done; res.err == nil {
				_ = res.device.Disconnect() //nolint:errcheck // best effort
			}
		}()
		return ctx.Err()
	}

	write, notify, err := device.Characteristics()
	if err != nil {
		_ = device.Disconnect() //nolint:errcheck // best effort on error path
		return err
	}

	if err := notify.EnableNotifications(func(buf []byte) {
		l.deliver(NotifyHandle, buf)
	}); err != nil {
		_ = device.Disconnect() //nolint:errcheck // best effort on error path
		return fmt.Errorf("enabling notifications: %w", err)
	}

	l.device = device
	l.write = write
	l.connected = true
	return nil
}

// discoverCharacteristics finds the write and notify characteristics of the
// thermostat service.
func discoverCharacteristics(device bluetooth.Device) (write, notify bleCharacteristic, err error) {
	serviceUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return nil, nil, err
	}
	writeUUID, err := bluetooth.ParseUUID(WriteCharUUID)
	if err != nil {
		return nil, nil, err
	}
	notifyUUID, err := bluetooth.ParseUUID(NotifyCharUUID)
	if err != nil {
		return nil, nil, err
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return nil, nil, fmt.Errorf("discovering services: %w", err)
	}
	if len(services) == 0 {
		return nil, nil, fmt.Errorf("service %s not found", ServiceUUID)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{writeUUID, notifyUUID})
	if err != nil {
		return nil, nil, fmt.Errorf("discovering characteristics: %w", err)
	}
	for i := range chars {
		switch chars[i].UUID() {
		case writeUUID:
			write = &chars[i]
		case notifyUUID:
			notify = &chars[i]
		}
	}
	if write == nil || notify == nil {
		return nil, nil, fmt.Errorf("thermostat characteristics not found (%d discovered)", len(chars))
	}
	return write, notify, nil
}

// Disconnect drops the connection. It is a no-op when not connected.
func (l *BLELink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		return nil
	}
	l.connected = false
	l.write = nil
	device := l.device
	l.device = nil

	if err := device.Disconnect(); err != nil {
		return fmt.Errorf("%w: disconnecting: %w", ErrLinkFailed, err)
	}
	l.logger.Debug("disconnected", "address", l.address)
	return nil
}

// Write writes payload to the characteristic behind handle. Only
// WriteHandle is writable.
func (l *BLELink) Write(ctx context.Context, handle uint16, payload []byte) error {
	if handle != WriteHandle {
		return fmt.Errorf("%w: handle 0x%03X is not writable", ErrLinkFailed, handle)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	write := l.write
	l.mu.Unlock()
	if write == nil {
		return ErrNotConnected
	}

	l.clearQueue()
	l.logger.Debug("writing", "address", l.address, "handle", fmt.Sprintf("0x%03X", handle), "payload", fmt.Sprintf("%X", payload))
	if _, err := write.WriteWithoutResponse(payload); err != nil {
		return fmt.Errorf("%w: write: %w", ErrLinkFailed, err)
	}
	l.recordWrite()
	return nil
}

// IsConnected reports whether the device is connected.
func (l *BLELink) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Stats returns link counters.
func (l *BLELink) Stats() LinkStats {
	return l.stats(l.IsConnected())
}
